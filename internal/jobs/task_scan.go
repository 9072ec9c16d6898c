package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/Iwan-Teague/Rustyfin/internal/metrics"
	"github.com/Iwan-Teague/Rustyfin/internal/models"
	"github.com/Iwan-Teague/Rustyfin/internal/repository"
	"github.com/Iwan-Teague/Rustyfin/internal/scanner"
)

type ScanHandler struct {
	scanner  *scanner.Scanner
	libRepo  *repository.LibraryRepository
	jobRepo  *repository.JobRepository
	notifier EventNotifier
}

func NewScanHandler(sc *scanner.Scanner, libRepo *repository.LibraryRepository,
	jobRepo *repository.JobRepository, notifier EventNotifier) *ScanHandler {
	return &ScanHandler{scanner: sc, libRepo: libRepo, jobRepo: jobRepo, notifier: notifier}
}

func (h *ScanHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p ScanPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}

	jobID, err := uuid.Parse(p.JobID)
	if err != nil {
		return fmt.Errorf("parse job id: %w", err)
	}
	libID, err := uuid.Parse(p.LibraryID)
	if err != nil {
		return fmt.Errorf("parse library id: %w", err)
	}

	library, err := h.libRepo.GetByID(libID)
	if err != nil {
		h.fail(jobID, p, err)
		return fmt.Errorf("get library: %w", err)
	}

	log.Printf("Job: scanning library %q", library.Name)
	h.jobRepo.UpdateStatusWithRetry(jobID, models.JobRunning, 0, nil)
	h.broadcastJob(p.JobID, models.JobRunning, 0)

	// Throttled live progress; the walk has no cheap total, so raw counts go
	// out and clients render an indeterminate bar.
	var lastBroadcast time.Time
	progressFn := func(scanned, total int) {
		if h.notifier == nil {
			return
		}
		now := time.Now()
		if now.Sub(lastBroadcast) < 500*time.Millisecond {
			return
		}
		lastBroadcast = now
		h.notifier.Broadcast("scan_progress", map[string]interface{}{
			"library_id": p.LibraryID,
			"job_id":     p.JobID,
			"scanned":    scanned,
			"total":      total,
		})
	}

	result, err := h.scanner.ScanLibrary(library, progressFn)
	if err != nil {
		metrics.ScansCompleted.WithLabelValues("failed").Inc()
		h.fail(jobID, p, err)
		return fmt.Errorf("scan: %w", err)
	}

	metrics.ScansCompleted.WithLabelValues("completed").Inc()
	metrics.ItemsScanned.Add(float64(result.Added))
	h.jobRepo.UpdateStatusWithRetry(jobID, models.JobCompleted, 1, nil)
	h.broadcastJob(p.JobID, models.JobCompleted, 1)
	if h.notifier != nil {
		h.notifier.Broadcast("scan_complete", map[string]interface{}{
			"library_id":  p.LibraryID,
			"job_id":      p.JobID,
			"items_added": result.Added,
			"skipped":     result.Skipped,
			"missing":     result.Missing,
		})
	}

	log.Printf("Job: scan of %q complete: %d added, %d skipped", library.Name, result.Added, result.Skipped)
	return nil
}

func (h *ScanHandler) fail(jobID uuid.UUID, p ScanPayload, cause error) {
	msg := cause.Error()
	h.jobRepo.UpdateStatusWithRetry(jobID, models.JobFailed, 0, &msg)
	h.broadcastJob(p.JobID, models.JobFailed, 0)
}

func (h *ScanHandler) broadcastJob(jobID string, status models.JobStatus, progress float64) {
	if h.notifier == nil {
		return
	}
	h.notifier.Broadcast("job_update", map[string]interface{}{
		"job_id":   jobID,
		"status":   status,
		"progress": progress,
	})
}
