package api

import (
	"errors"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/Iwan-Teague/Rustyfin/internal/httputil"
	"github.com/Iwan-Teague/Rustyfin/internal/metrics"
	"github.com/Iwan-Teague/Rustyfin/internal/models"
	"github.com/Iwan-Teague/Rustyfin/internal/stream"
	"github.com/google/uuid"
)

// libraryRoots returns every configured library path. Serving is refused
// for any path outside these roots.
func (s *Server) libraryRoots() ([]string, error) {
	return s.libRepo.GetAllPaths()
}

// rootsFor narrows the root set to the caller's library grants. Admins get
// every root; a non-admin with no grants gets none, so every path check on
// the streaming endpoints refuses.
func (s *Server) rootsFor(r *http.Request) ([]string, error) {
	if s.getUserRole(r) == models.RoleAdmin {
		return s.libraryRoots()
	}
	allowed, err := s.userRepo.GetLibraryAccess(s.getUserID(r))
	if err != nil {
		return nil, err
	}

	var roots []string
	for _, libID := range allowed {
		paths, err := s.libRepo.GetPaths(libID)
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			roots = append(roots, p.Path)
		}
	}
	return roots, nil
}

// handleStreamFile serves a media file with RFC 7233 single-range support.
func (s *Server) handleStreamFile(w http.ResponseWriter, r *http.Request) {
	fileID, ok := pathUUID(r, "fileID")
	if !ok {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid file id")
		return
	}

	// A scoped stream token only unlocks the file it was minted for.
	if scoped := r.Header.Get("X-Stream-File"); scoped != "" && scoped != fileID.String() {
		httputil.WriteError(w, httputil.CodeForbidden, "stream token not valid for this file")
		return
	}

	file, err := s.fileRepo.GetByID(fileID)
	if err != nil {
		httputil.WriteError(w, httputil.CodeNotFound, "file not found")
		return
	}

	roots, err := s.rootsFor(r)
	if err != nil {
		httputil.WriteError(w, httputil.CodeInternal, "failed to load library paths")
		return
	}
	if !stream.PathAllowed(file.Path, roots) {
		httputil.WriteError(w, httputil.CodeForbidden, "file is outside accessible library roots")
		return
	}

	metrics.StreamRequests.WithLabelValues("direct").Inc()
	// Range errors get their status written inside; anything surfacing here
	// is an I/O problem (file vanished, client hung up mid-copy).
	if err := stream.ServeFileRange(w, r, file.Path); err != nil {
		log.Printf("API: error streaming file %s: %v", fileID, err)
	}
}

type createSessionRequest struct {
	ItemID        string  `json:"item_id,omitempty"`
	FileID        string  `json:"file_id,omitempty"`
	StartSecs     float64 `json:"start_secs,omitempty"`
	CodecOverride string  `json:"codec,omitempty"`
}

type createSessionResponse struct {
	SessionID   string `json:"session_id"`
	PlaylistURL string `json:"playlist_url"`
}

// handleCreateSession starts an HLS transcode session. The concurrency cap
// is enforced atomically by the transcoder; hitting it returns 429.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid request body")
		return
	}

	path, err := s.resolveSessionInput(req)
	if err != nil {
		httputil.WriteError(w, httputil.CodeNotFound, err.Error())
		return
	}
	if req.StartSecs < 0 {
		httputil.WriteError(w, httputil.CodeValidationFailed, "start_secs must be non-negative")
		return
	}

	roots, err := s.rootsFor(r)
	if err != nil {
		httputil.WriteError(w, httputil.CodeInternal, "failed to load library paths")
		return
	}
	if !stream.PathAllowed(path, roots) {
		httputil.WriteError(w, httputil.CodeForbidden, "file is outside accessible library roots")
		return
	}

	session, err := s.transcoder.Create(path, req.StartSecs, req.CodecOverride)
	if err != nil {
		var maxErr *stream.MaxTranscodesError
		if errors.As(err, &maxErr) {
			metrics.TranscodesRefused.Inc()
			httputil.WriteErrorDetails(w, httputil.CodeTooManyRequests, "maximum concurrent transcodes reached",
				map[string]any{"max_concurrent": maxErr.Limit})
			return
		}
		log.Printf("API: error starting transcode: %v", err)
		httputil.WriteError(w, httputil.CodeInternal, "failed to start transcode")
		return
	}

	metrics.TranscodesStarted.Inc()
	metrics.ActiveTranscodes.Set(float64(s.transcoder.ActiveCount()))

	httputil.WriteJSON(w, http.StatusCreated, createSessionResponse{
		SessionID:   session.ID,
		PlaylistURL: "/api/v1/stream/sessions/" + session.ID + "/" + stream.MasterPlaylistName,
	})
}

func (s *Server) resolveSessionInput(req createSessionRequest) (string, error) {
	if req.FileID != "" {
		fileID, err := uuid.Parse(req.FileID)
		if err != nil {
			return "", errors.New("invalid file id")
		}
		file, err := s.fileRepo.GetByID(fileID)
		if err != nil {
			return "", errors.New("file not found")
		}
		return file.Path, nil
	}
	if req.ItemID != "" {
		itemID, err := uuid.Parse(req.ItemID)
		if err != nil {
			return "", errors.New("invalid item id")
		}
		fileID, err := s.itemRepo.GetItemFileID(itemID)
		if err != nil || fileID == nil {
			return "", errors.New("item has no media file")
		}
		file, err := s.fileRepo.GetByID(*fileID)
		if err != nil {
			return "", errors.New("file not found")
		}
		return file.Path, nil
	}
	return "", errors.New("item_id or file_id is required")
}

// handleSessionFile serves the playlist or a segment from a session's output
// directory, waiting briefly for ffmpeg to produce the file.
func (s *Server) handleSessionFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	filename := r.PathValue("filename")

	if scoped := r.Header.Get("X-Stream-Session"); scoped != "" && scoped != id {
		httputil.WriteError(w, httputil.CodeForbidden, "stream token not valid for this session")
		return
	}
	if !stream.ValidSessionFilename(filename) {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid filename")
		return
	}

	path, ok := s.transcoder.GetFilePath(id, filename)
	if !ok {
		httputil.WriteError(w, httputil.CodeNotFound, "session not found")
		return
	}
	s.transcoder.Ping(id)

	// A playlist that never appears means ffmpeg failed to start producing
	// output, so that is a server error; a late segment is just not there yet.
	if strings.HasSuffix(filename, ".m3u8") {
		if !stream.WaitForPlaylist(path) {
			httputil.WriteError(w, httputil.CodeInternal, "playlist not ready")
			return
		}
	} else if !stream.WaitForSegment(path) {
		httputil.WriteError(w, httputil.CodeNotFound, "segment not ready")
		return
	}

	metrics.StreamRequests.WithLabelValues("hls").Inc()
	w.Header().Set("Content-Type", stream.HLSContentType(filename))
	w.Header().Set("Cache-Control", "no-store")
	http.ServeFile(w, r, path)
}

func (s *Server) handlePingSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if scoped := r.Header.Get("X-Stream-Session"); scoped != "" && scoped != id {
		httputil.WriteError(w, httputil.CodeForbidden, "stream token not valid for this session")
		return
	}
	if !s.transcoder.Ping(id) {
		httputil.WriteError(w, httputil.CodeNotFound, "session not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"alive": true})
}

func (s *Server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if scoped := r.Header.Get("X-Stream-Session"); scoped != "" && scoped != id {
		httputil.WriteError(w, httputil.CodeForbidden, "stream token not valid for this session")
		return
	}
	if !s.transcoder.Stop(id) {
		httputil.WriteError(w, httputil.CodeNotFound, "session not found")
		return
	}
	metrics.ActiveTranscodes.Set(float64(s.transcoder.ActiveCount()))
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"stopped": true})
}

// handleStreamSubtitle serves a sidecar subtitle file referenced by the
// opaque token from the subtitle listing. The decoded path still has to
// sit under a library root.
func (s *Server) handleStreamSubtitle(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	path, err := stream.DecodeSubtitlePath(token)
	if err != nil {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid subtitle token")
		return
	}

	roots, err := s.rootsFor(r)
	if err != nil {
		httputil.WriteError(w, httputil.CodeInternal, "failed to load library paths")
		return
	}
	if !stream.PathAllowed(path, roots) {
		httputil.WriteError(w, httputil.CodeForbidden, "subtitle is outside accessible library roots")
		return
	}

	metrics.StreamRequests.WithLabelValues("subtitle").Inc()
	w.Header().Set("Content-Type", stream.SubtitleContentType(filepath.Base(path)))
	w.Header().Set("Cache-Control", "no-store")
	http.ServeFile(w, r, path)
}
