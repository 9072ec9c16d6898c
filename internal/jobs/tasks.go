package jobs

import (
	"github.com/Iwan-Teague/Rustyfin/internal/metadata"
	"github.com/Iwan-Teague/Rustyfin/internal/repository"
	"github.com/Iwan-Teague/Rustyfin/internal/scanner"
)

// Payloads carry string UUIDs: the job row id ties the task back to the
// persistent job table.

type ScanPayload struct {
	LibraryID string `json:"library_id"`
	JobID     string `json:"job_id"`
}

type MetadataRefreshPayload struct {
	ItemID string `json:"item_id"`
	JobID  string `json:"job_id"`
}

// EventNotifier decouples task handlers from the event hub.
type EventNotifier interface {
	Broadcast(event string, data interface{})
}

func RegisterHandlers(q *Queue, sc *scanner.Scanner, libRepo *repository.LibraryRepository,
	jobRepo *repository.JobRepository, manager *metadata.Manager, notifier EventNotifier) {

	q.RegisterHandler(TaskScanLibrary, NewScanHandler(sc, libRepo, jobRepo, notifier))
	q.RegisterHandler(TaskMetadataRefresh, NewMetadataRefreshHandler(manager, jobRepo, notifier))
}
