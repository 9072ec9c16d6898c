package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Iwan-Teague/Rustyfin/internal/httputil"
	"github.com/Iwan-Teague/Rustyfin/internal/jobs"
	"github.com/Iwan-Teague/Rustyfin/internal/metadata"
	"github.com/Iwan-Teague/Rustyfin/internal/models"
	"github.com/Iwan-Teague/Rustyfin/internal/scanner"
	"github.com/Iwan-Teague/Rustyfin/internal/stream"
)

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid item id")
		return
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

	providerIDs, _ := s.itemRepo.GetProviderIDs(id)
	fileID, _ := s.itemRepo.GetItemFileID(id)

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"item":         item,
		"provider_ids": providerIDs,
		"file_id":      fileID,
	})
}

func (s *Server) handleItemChildren(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid item id")
		return
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

	children, err := s.itemRepo.GetChildren(id)
	if err != nil {
		httputil.WriteError(w, httputil.CodeInternal, "failed to list children")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, children)
}

// handleMissingEpisodes reports expected-but-absent episodes for a series.
// The report is informational only; nothing is ever deleted from it.
func (s *Server) handleMissingEpisodes(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid item id")
		return
	}

	item, err := s.itemRepo.GetByID(id)
	if err != nil {
		httputil.WriteError(w, httputil.CodeNotFound, "item not found")
		return
	}
	if item.Kind != models.ItemSeries {
		httputil.WriteError(w, httputil.CodeBadRequest, "missing episodes only apply to series")
		return
	}

	missing, err := s.episodeRepo.GetMissing(id)
	if err != nil {
		httputil.WriteError(w, httputil.CodeInternal, "failed to compute missing episodes")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"series_id": id,
		"missing":   missing,
	})
}

func (s *Server) handleListLocks(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid item id")
		return
	}

	fields, err := s.itemRepo.GetLockedFields(id)
	if err != nil {
		httputil.WriteError(w, httputil.CodeInternal, "failed to load locks")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"locked_fields": fields})
}

// handleLockField pins a metadata field so refreshes never overwrite it.
func (s *Server) handleLockField(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid item id")
		return
	}
	field := r.PathValue("field")
	if !metadata.KnownField(field) {
		httputil.WriteError(w, httputil.CodeValidationFailed, "unknown metadata field")
		return
	}

	if _, err := s.itemRepo.GetByID(id); err != nil {
		httputil.WriteError(w, httputil.CodeNotFound, "item not found")
		return
	}
	if err := s.itemRepo.LockField(id, field); err != nil {
		httputil.WriteError(w, httputil.CodeInternal, "failed to lock field")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"locked": true})
}

func (s *Server) handleUnlockField(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid item id")
		return
	}
	field := r.PathValue("field")

	if err := s.itemRepo.UnlockField(id, field); err != nil {
		httputil.WriteError(w, httputil.CodeInternal, "failed to unlock field")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"locked": false})
}

// handleRefreshMetadata queues a metadata refresh job for the item.
func (s *Server) handleRefreshMetadata(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid item id")
		return
	}

	item, err := s.itemRepo.GetByID(id)
	if err != nil {
		httputil.WriteError(w, httputil.CodeNotFound, "item not found")
		return
	}
	if item.Kind != models.ItemMovie && item.Kind != models.ItemSeries {
		httputil.WriteError(w, httputil.CodeBadRequest, "metadata refresh only applies to movies and series")
		return
	}

	payload := jobs.MetadataRefreshPayload{ItemID: id.String()}
	payloadJSON, _ := json.Marshal(payload)
	payloadStr := string(payloadJSON)

	job, err := s.jobRepo.Create("metadata:refresh", &payloadStr)
	if err != nil {
		httputil.WriteError(w, httputil.CodeInternal, "failed to create job")
		return
	}
	payload.JobID = job.ID.String()

	if _, err := s.queue.EnqueueUnique(jobs.TaskMetadataRefresh, payload, "metadata:"+id.String()); err != nil {
		msg := err.Error()
		s.jobRepo.UpdateStatusWithRetry(job.ID, models.JobFailed, 0, &msg)
		httputil.WriteError(w, httputil.CodeInternal, "failed to enqueue refresh")
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, job)
}

var imageTypes = map[string]bool{
	"poster": true, "backdrop": true, "logo": true, "thumb": true,
}

// handleItemImage serves item artwork from the local cache, fetching the
// remote URL on first use. Cached files are immutable per (item, type)
// so the client gets a long-lived Cache-Control plus an ETag.
func (s *Server) handleItemImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid item id")
		return
	}
	imageType := r.PathValue("type")
	if !imageTypes[imageType] {
		httputil.WriteError(w, httputil.CodeBadRequest, "unknown image type")
		return
	}

	urlPtr, err := s.itemRepo.GetImageURL(id, imageType)
	if err != nil {
		httputil.WriteError(w, httputil.CodeNotFound, "item not found")
		return
	}
	if urlPtr == nil || *urlPtr == "" {
		httputil.WriteError(w, httputil.CodeNotFound, "no image of this type")
		return
	}

	width, _ := strconv.Atoi(r.URL.Query().Get("w"))
	height, _ := strconv.Atoi(r.URL.Query().Get("h"))

	cachePath, err := s.cachedImage(id.String(), imageType, width, height, *urlPtr)
	if err != nil {
		log.Printf("API: error caching image for %s: %v", id, err)
		httputil.WriteError(w, httputil.CodeInternal, "failed to fetch image")
		return
	}

	info, err := os.Stat(cachePath)
	if err != nil {
		httputil.WriteError(w, httputil.CodeInternal, "failed to read cached image")
		return
	}

	etag := fmt.Sprintf(`"%x-%x"`, info.Size(), info.ModTime().Unix())
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if match := r.Header.Get("If-None-Match"); match != "" && strings.Contains(match, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	http.ServeFile(w, r, cachePath)
}

// cachedImage returns the local path for the image, downloading it on a miss.
// Requested dimensions are part of the cache key so size variants coexist.
func (s *Server) cachedImage(itemID, imageType string, width, height int, url string) (string, error) {
	ext := filepath.Ext(url)
	if ext == "" || len(ext) > 5 {
		ext = ".jpg"
	}
	dir := filepath.Join(s.config.CacheDir, "images")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	cachePath := filepath.Join(dir, fmt.Sprintf("%s_%s_%d_%d%s", itemID, imageType, width, height, ext))

	if _, err := os.Stat(cachePath); err == nil {
		return cachePath, nil
	}

	resp, err := http.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image fetch returned %d", resp.StatusCode)
	}

	tmp := cachePath + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", err
	}
	f.Close()
	return cachePath, os.Rename(tmp, cachePath)
}

// handleListSubtitles lists sidecar subtitle files next to the item's media
// file, with opaque tokens for fetching them over the stream endpoint.
func (s *Server) handleListSubtitles(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid item id")
		return
	}

	fileID, err := s.itemRepo.GetItemFileID(id)
	if err != nil || fileID == nil {
		httputil.WriteError(w, httputil.CodeNotFound, "item has no media file")
		return
	}
	file, err := s.fileRepo.GetByID(*fileID)
	if err != nil {
		httputil.WriteError(w, httputil.CodeNotFound, "media file not found")
		return
	}

	subs, err := scanner.DiscoverSubtitles(file.Path)
	if err != nil {
		httputil.WriteError(w, httputil.CodeInternal, "failed to discover subtitles")
		return
	}

	type subtitleEntry struct {
		scanner.SidecarSubtitle
		Token string `json:"token"`
	}
	out := make([]subtitleEntry, 0, len(subs))
	for _, sub := range subs {
		out = append(out, subtitleEntry{
			SidecarSubtitle: sub,
			Token:           stream.EncodeSubtitlePath(sub.Path),
		})
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}
