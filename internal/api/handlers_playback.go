package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/Iwan-Teague/Rustyfin/internal/ffmpeg"
	"github.com/Iwan-Teague/Rustyfin/internal/httputil"
	"github.com/google/uuid"
)

type playbackInfoRequest struct {
	Caps *ffmpeg.ClientCaps `json:"caps,omitempty"`
}

type playbackInfoResponse struct {
	ItemID   uuid.UUID           `json:"item_id"`
	FileID   uuid.UUID           `json:"file_id"`
	Decision ffmpeg.PlayDecision `json:"decision"`
	Media    *ffmpeg.MediaInfo   `json:"media"`
}

// handlePlaybackInfo probes the item's media file and decides between direct
// play, remux and transcode for the client's declared capabilities. Probe
// results are cached on the file row so repeat requests skip ffprobe.
func (s *Server) handlePlaybackInfo(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid item id")
		return
	}

	// An empty body means default capabilities.
	var req playbackInfoRequest
	if err := httputil.ReadJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid request body")
		return
	}
	caps := ffmpeg.DefaultCaps()
	if req.Caps != nil {
		caps = *req.Caps
	}

	item, err := s.itemRepo.GetByID(id)
	if err != nil {
		httputil.WriteError(w, httputil.CodeNotFound, "item not found")
		return
	}
	if !s.canAccessLibrary(s.getUserID(r), s.getUserRole(r), item.LibraryID) {
		httputil.WriteError(w, httputil.CodeForbidden, "no access to this library")
		return
	}

	fileID, err := s.itemRepo.GetItemFileID(id)
	if err != nil || fileID == nil {
		httputil.WriteError(w, httputil.CodeNotFound, "item has no media file")
		return
	}

	info, err := s.mediaInfoFor(*fileID)
	if err != nil {
		log.Printf("API: probe failed for file %s: %v", fileID, err)
		httputil.WriteError(w, httputil.CodeInternal, "failed to probe media file")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, playbackInfoResponse{
		ItemID:   id,
		FileID:   *fileID,
		Decision: ffmpeg.Decide(info, caps),
		Media:    info,
	})
}

// mediaInfoFor returns probe info for a file, consulting the stored stream
// info first and persisting a fresh probe on a miss.
func (s *Server) mediaInfoFor(fileID uuid.UUID) (*ffmpeg.MediaInfo, error) {
	file, err := s.fileRepo.GetByID(fileID)
	if err != nil {
		return nil, err
	}

	if file.StreamInfoJSON != nil && *file.StreamInfoJSON != "" {
		var info ffmpeg.MediaInfo
		if err := json.Unmarshal([]byte(*file.StreamInfoJSON), &info); err == nil {
			return &info, nil
		}
	}

	info, err := s.probe.Probe(file.Path)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(info); err == nil {
		durationMS := int64(info.DurationSecs * 1000)
		if err := s.fileRepo.UpdateProbeInfo(fileID, info.Container, durationMS, string(raw)); err != nil {
			log.Printf("API: error caching probe info for %s: %v", fileID, err)
		}
	}
	return info, nil
}

type progressRequest struct {
	ProgressMS int64 `json:"progress_ms"`
	Played     bool  `json:"played"`
}

func (s *Server) handleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid item id")
		return
	}

	var req progressRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid request body")
		return
	}
	if req.ProgressMS < 0 {
		httputil.WriteError(w, httputil.CodeValidationFailed, "progress_ms must be non-negative")
		return
	}

	if _, err := s.itemRepo.GetByID(id); err != nil {
		httputil.WriteError(w, httputil.CodeNotFound, "item not found")
		return
	}

	if err := s.playRepo.UpdateProgress(s.getUserID(r), id, req.ProgressMS, req.Played); err != nil {
		httputil.WriteError(w, httputil.CodeInternal, "failed to update progress")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid item id")
		return
	}

	state, err := s.playRepo.Get(s.getUserID(r), id)
	if err != nil {
		httputil.WriteError(w, httputil.CodeInternal, "failed to load playstate")
		return
	}
	if state == nil {
		// No row yet: report the zero state rather than a 404.
		httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"item_id": id, "played": false, "progress_ms": 0, "favorite": false,
		})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, state)
}

type favoriteRequest struct {
	Favorite bool `json:"favorite"`
}

func (s *Server) handleSetFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid item id")
		return
	}

	var req favoriteRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid request body")
		return
	}

	if _, err := s.itemRepo.GetByID(id); err != nil {
		httputil.WriteError(w, httputil.CodeNotFound, "item not found")
		return
	}

	if err := s.playRepo.SetFavorite(s.getUserID(r), id, req.Favorite); err != nil {
		httputil.WriteError(w, httputil.CodeInternal, "failed to update favorite")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"favorite": req.Favorite})
}
