package scheduler

import (
	"log"

	"github.com/Iwan-Teague/Rustyfin/internal/repository"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// OnScanDue is called for each library when the schedule fires.
type OnScanDue func(libraryID uuid.UUID)

// Scheduler triggers periodic full-library scans on a cron spec.
type Scheduler struct {
	libRepo  *repository.LibraryRepository
	callback OnScanDue
	cron     *cron.Cron
}

func New(libRepo *repository.LibraryRepository, cb OnScanDue) *Scheduler {
	return &Scheduler{
		libRepo:  libRepo,
		callback: cb,
		cron:     cron.New(),
	}
}

// Start registers the scan job and starts the cron loop. An empty spec
// disables scheduled scans.
func (s *Scheduler) Start(spec string) error {
	if spec == "" {
		log.Println("[scheduler] scheduled scans disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(spec, s.scanAll); err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("[scheduler] scheduled scans registered (%s)", spec)
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) scanAll() {
	libs, err := s.libRepo.List()
	if err != nil {
		log.Printf("[scheduler] error listing libraries: %v", err)
		return
	}
	for _, lib := range libs {
		log.Printf("[scheduler] library %q due for scan", lib.Name)
		s.callback(lib.ID)
	}
}
