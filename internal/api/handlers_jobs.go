package api

import (
	"net/http"

	"github.com/Iwan-Teague/Rustyfin/internal/events"
	"github.com/Iwan-Teague/Rustyfin/internal/httputil"
	"github.com/Iwan-Teague/Rustyfin/internal/models"
)

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobList, err := s.jobRepo.List()
	if err != nil {
		httputil.WriteError(w, httputil.CodeInternal, "failed to list jobs")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, jobList)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid job id")
		return
	}

	job, err := s.jobRepo.GetByID(id)
	if err != nil {
		httputil.WriteError(w, httputil.CodeNotFound, "job not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, job)
}

// handleCancelJob marks a queued or running job cancelled. Terminal jobs
// cannot be cancelled again; that surfaces as a conflict.
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid job id")
		return
	}

	job, err := s.jobRepo.GetByID(id)
	if err != nil {
		httputil.WriteError(w, httputil.CodeNotFound, "job not found")
		return
	}
	if job.Status.IsTerminal() {
		httputil.WriteError(w, httputil.CodeConflict, "job already finished")
		return
	}

	cancelled, err := s.jobRepo.Cancel(id)
	if err != nil {
		httputil.WriteError(w, httputil.CodeInternal, "failed to cancel job")
		return
	}
	if !cancelled {
		httputil.WriteError(w, httputil.CodeConflict, "job already finished")
		return
	}

	s.hub.Broadcast(events.KindJobUpdate, map[string]interface{}{
		"job_id": id.String(), "status": models.JobCancelled, "progress": job.Progress,
	})
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}
