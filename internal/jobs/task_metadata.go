package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/Iwan-Teague/Rustyfin/internal/metadata"
	"github.com/Iwan-Teague/Rustyfin/internal/models"
	"github.com/Iwan-Teague/Rustyfin/internal/repository"
)

type MetadataRefreshHandler struct {
	manager  *metadata.Manager
	jobRepo  *repository.JobRepository
	notifier EventNotifier
}

func NewMetadataRefreshHandler(manager *metadata.Manager, jobRepo *repository.JobRepository,
	notifier EventNotifier) *MetadataRefreshHandler {
	return &MetadataRefreshHandler{manager: manager, jobRepo: jobRepo, notifier: notifier}
}

func (h *MetadataRefreshHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p MetadataRefreshPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}

	jobID, err := uuid.Parse(p.JobID)
	if err != nil {
		return fmt.Errorf("parse job id: %w", err)
	}
	itemID, err := uuid.Parse(p.ItemID)
	if err != nil {
		return fmt.Errorf("parse item id: %w", err)
	}

	h.jobRepo.UpdateStatusWithRetry(jobID, models.JobRunning, 0, nil)

	result, err := h.manager.RefreshItem(itemID)
	if err != nil {
		msg := err.Error()
		h.jobRepo.UpdateStatusWithRetry(jobID, models.JobFailed, 0, &msg)
		if h.notifier != nil {
			h.notifier.Broadcast("job_update", map[string]interface{}{
				"job_id": p.JobID, "status": models.JobFailed, "progress": 0,
			})
		}
		return fmt.Errorf("refresh metadata: %w", err)
	}

	h.jobRepo.UpdateStatusWithRetry(jobID, models.JobCompleted, 1, nil)
	if h.notifier != nil {
		h.notifier.Broadcast("metadata_refresh", map[string]interface{}{
			"item_id":        p.ItemID,
			"job_id":         p.JobID,
			"matched":        result.Matched,
			"provider":       result.Provider,
			"updated_fields": result.UpdatedFields,
		})
		h.notifier.Broadcast("job_update", map[string]interface{}{
			"job_id": p.JobID, "status": models.JobCompleted, "progress": 1,
		})
	}

	log.Printf("Job: metadata refresh for %s done (matched=%v, %d fields)",
		p.ItemID, result.Matched, len(result.UpdatedFields))
	return nil
}
