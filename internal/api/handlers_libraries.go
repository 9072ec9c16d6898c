package api

import (
	"encoding/json"
	"log"
	"net/http"
	"os"

	"github.com/Iwan-Teague/Rustyfin/internal/events"
	"github.com/Iwan-Teague/Rustyfin/internal/httputil"
	"github.com/Iwan-Teague/Rustyfin/internal/jobs"
	"github.com/Iwan-Teague/Rustyfin/internal/models"
	"github.com/google/uuid"
)

func (s *Server) handleListLibraries(w http.ResponseWriter, r *http.Request) {
	libs, err := s.libRepo.List()
	if err != nil {
		httputil.WriteError(w, httputil.CodeInternal, "failed to list libraries")
		return
	}

	libs = s.filterAccessible(s.getUserID(r), s.getUserRole(r), libs)
	httputil.WriteJSON(w, http.StatusOK, libs)
}

// filterAccessible drops libraries the user has no grant for. Admins and
// users with an empty grant list see everything.
func (s *Server) filterAccessible(userID uuid.UUID, role models.UserRole, libs []*models.Library) []*models.Library {
	if role == models.RoleAdmin {
		return libs
	}
	allowed, err := s.userRepo.GetLibraryAccess(userID)
	if err != nil || len(allowed) == 0 {
		return libs
	}
	allowedSet := make(map[uuid.UUID]bool, len(allowed))
	for _, id := range allowed {
		allowedSet[id] = true
	}
	filtered := make([]*models.Library, 0, len(libs))
	for _, lib := range libs {
		if allowedSet[lib.ID] {
			filtered = append(filtered, lib)
		}
	}
	return filtered
}

func (s *Server) canAccessLibrary(userID uuid.UUID, role models.UserRole, libraryID uuid.UUID) bool {
	if role == models.RoleAdmin {
		return true
	}
	allowed, err := s.userRepo.GetLibraryAccess(userID)
	if err != nil || len(allowed) == 0 {
		return true
	}
	for _, id := range allowed {
		if id == libraryID {
			return true
		}
	}
	return false
}

type createLibraryRequest struct {
	Name  string             `json:"name"`
	Kind  models.LibraryKind `json:"kind"`
	Paths []string           `json:"paths"`
}

func (s *Server) handleCreateLibrary(w http.ResponseWriter, r *http.Request) {
	var req createLibraryRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		httputil.WriteErrorDetails(w, httputil.CodeValidationFailed, "name is required",
			map[string]any{"fields": []string{"name"}})
		return
	}
	if req.Kind != models.LibraryMovies && req.Kind != models.LibraryTVShows {
		httputil.WriteErrorDetails(w, httputil.CodeValidationFailed, "kind must be movies or tv_shows",
			map[string]any{"fields": []string{"kind"}})
		return
	}
	if len(req.Paths) == 0 {
		httputil.WriteErrorDetails(w, httputil.CodeValidationFailed, "at least one path is required",
			map[string]any{"fields": []string{"paths"}})
		return
	}
	for _, p := range req.Paths {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			httputil.WriteErrorDetails(w, httputil.CodeValidationFailed,
				"path is not a readable directory", map[string]any{"path": p})
			return
		}
	}

	lib, err := s.libRepo.Create(req.Name, req.Kind, req.Paths)
	if err != nil {
		httputil.WriteError(w, httputil.CodeInternal, "failed to create library")
		return
	}

	s.notifyLibrariesChanged()
	httputil.WriteJSON(w, http.StatusCreated, lib)
}

func (s *Server) handleGetLibrary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid library id")
		return
	}

	lib, err := s.libRepo.GetByID(id)
	if err != nil || lib == nil {
		httputil.WriteError(w, httputil.CodeNotFound, "library not found")
		return
	}
	if !s.canAccessLibrary(s.getUserID(r), s.getUserRole(r), id) {
		httputil.WriteError(w, httputil.CodeForbidden, "no access to this library")
		return
	}

	paths, err := s.libRepo.GetPaths(id)
	if err != nil {
		httputil.WriteError(w, httputil.CodeInternal, "failed to load library paths")
		return
	}
	count, _ := s.libRepo.CountTopLevelItems(id)

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"library":    lib,
		"paths":      paths,
		"item_count": count,
	})
}

type updateLibraryRequest struct {
	Name  string   `json:"name,omitempty"`
	Paths []string `json:"paths,omitempty"`
}

func (s *Server) handleUpdateLibrary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid library id")
		return
	}

	var req updateLibraryRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid request body")
		return
	}

	if req.Name != "" {
		renamed, err := s.libRepo.Rename(id, req.Name)
		if err != nil {
			httputil.WriteError(w, httputil.CodeInternal, "failed to rename library")
			return
		}
		if !renamed {
			httputil.WriteError(w, httputil.CodeNotFound, "library not found")
			return
		}
	}
	if len(req.Paths) > 0 {
		for _, p := range req.Paths {
			info, err := os.Stat(p)
			if err != nil || !info.IsDir() {
				httputil.WriteErrorDetails(w, httputil.CodeValidationFailed,
					"path is not a readable directory", map[string]any{"path": p})
				return
			}
		}
		if _, err := s.libRepo.ReplacePaths(id, req.Paths); err != nil {
			httputil.WriteError(w, httputil.CodeInternal, "failed to update library paths")
			return
		}
	}

	s.notifyLibrariesChanged()
	lib, err := s.libRepo.GetByID(id)
	if err != nil || lib == nil {
		httputil.WriteError(w, httputil.CodeNotFound, "library not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, lib)
}

func (s *Server) handleDeleteLibrary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid library id")
		return
	}

	deleted, err := s.libRepo.Delete(id)
	if err != nil {
		httputil.WriteError(w, httputil.CodeInternal, "failed to delete library")
		return
	}
	if !deleted {
		httputil.WriteError(w, httputil.CodeNotFound, "library not found")
		return
	}

	s.notifyLibrariesChanged()
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// handleScanLibrary records a job row and dispatches the scan task. Repeat
// requests while a scan for the same library is queued or running collapse
// into the existing task.
func (s *Server) handleScanLibrary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid library id")
		return
	}

	lib, err := s.libRepo.GetByID(id)
	if err != nil || lib == nil {
		httputil.WriteError(w, httputil.CodeNotFound, "library not found")
		return
	}

	payload := jobs.ScanPayload{LibraryID: id.String()}
	payloadJSON, _ := json.Marshal(payload)
	payloadStr := string(payloadJSON)

	job, err := s.jobRepo.Create("scan:library", &payloadStr)
	if err != nil {
		httputil.WriteError(w, httputil.CodeInternal, "failed to create job")
		return
	}
	payload.JobID = job.ID.String()

	taskID, err := s.queue.EnqueueUnique(jobs.TaskScanLibrary, payload, "scan:"+id.String())
	if err != nil {
		msg := err.Error()
		s.jobRepo.UpdateStatusWithRetry(job.ID, models.JobFailed, 0, &msg)
		httputil.WriteError(w, httputil.CodeInternal, "failed to enqueue scan")
		return
	}

	log.Printf("API: scan queued for library %s (job %s, task %s)", lib.Name, job.ID, taskID)
	s.hub.Broadcast(events.KindJobUpdate, map[string]interface{}{
		"job_id": job.ID.String(), "status": models.JobQueued, "progress": 0,
	})
	httputil.WriteJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleLibraryItems(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid library id")
		return
	}
	if !s.canAccessLibrary(s.getUserID(r), s.getUserRole(r), id) {
		httputil.WriteError(w, httputil.CodeForbidden, "no access to this library")
		return
	}

	items, err := s.itemRepo.GetTopLevel(id)
	if err != nil {
		httputil.WriteError(w, httputil.CodeInternal, "failed to list items")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, items)
}

func (s *Server) notifyLibrariesChanged() {
	if s.OnLibrariesChanged != nil {
		s.OnLibrariesChanged()
	}
}
