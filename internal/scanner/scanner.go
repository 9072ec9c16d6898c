package scanner

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/Iwan-Teague/Rustyfin/internal/models"
	"github.com/Iwan-Teague/Rustyfin/internal/repository"
	"github.com/google/uuid"
)

// ScanResult summarizes one library scan. Missing counts files the database
// knows under the scanned roots that are no longer on disk; they are reported
// only, never deleted.
type ScanResult struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
	Missing int `json:"missing"`
}

// ProgressFunc is called as the scan advances; scanned counts files visited so
// far, total is 0 while unknown.
type ProgressFunc func(scanned, total int)

type Scanner struct {
	libraryRepo *repository.LibraryRepository
	itemRepo    *repository.ItemRepository
	fileRepo    *repository.MediaFileRepository
}

func NewScanner(libraryRepo *repository.LibraryRepository, itemRepo *repository.ItemRepository,
	fileRepo *repository.MediaFileRepository) *Scanner {
	return &Scanner{
		libraryRepo: libraryRepo,
		itemRepo:    itemRepo,
		fileRepo:    fileRepo,
	}
}

// ScanLibrary walks every root path of the library, registers new video files
// and builds the item hierarchy for them. Each file is committed independently
// so a failure mid-scan loses at most the file being processed.
func (s *Scanner) ScanLibrary(library *models.Library, progress ProgressFunc) (*ScanResult, error) {
	paths, err := s.libraryRepo.GetPaths(library.ID)
	if err != nil {
		return nil, fmt.Errorf("load library paths: %w", err)
	}

	result := &ScanResult{}
	scanned := 0

	for _, root := range paths {
		log.Printf("Scan: walking %s (library %q)", root.Path, library.Name)
		err := filepath.WalkDir(root.Path, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				log.Printf("Scan: cannot access %s: %v", path, err)
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if path != root.Path && ShouldIgnoreDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if !IsVideoFile(path) {
				return nil
			}

			scanned++
			if progress != nil {
				progress(scanned, 0)
			}

			if err := s.processFile(library, root.Path, path, result); err != nil {
				log.Printf("Scan: failed to process %s: %v", path, err)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root.Path, err)
		}
	}

	missing, err := s.countVanished(paths)
	if err != nil {
		return nil, fmt.Errorf("reconcile files: %w", err)
	}
	result.Missing = missing

	log.Printf("Scan: library %q done: %d added, %d skipped, %d missing",
		library.Name, result.Added, result.Skipped, result.Missing)
	return result, nil
}

// countVanished checks every known media file under the scanned roots and
// counts those that have disappeared from disk.
func (s *Scanner) countVanished(roots []*models.LibraryPath) (int, error) {
	known, err := s.fileRepo.ListPaths()
	if err != nil {
		return 0, err
	}

	missing := 0
	for _, path := range known {
		if !underAnyRoot(path, roots) {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			log.Printf("Scan: file vanished: %s", path)
			missing++
		}
	}
	return missing, nil
}

func underAnyRoot(path string, roots []*models.LibraryPath) bool {
	for _, root := range roots {
		rel, err := filepath.Rel(root.Path, path)
		if err != nil {
			continue
		}
		if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (s *Scanner) processFile(library *models.Library, root, path string, result *ScanResult) error {
	existing, err := s.fileRepo.GetByPath(path)
	if err != nil {
		return err
	}
	if existing != nil {
		result.Skipped++
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	var itemID uuid.UUID
	switch library.Kind {
	case models.LibraryTVShows:
		itemID, err = s.registerEpisode(library, root, path)
	default:
		itemID, err = s.registerMovie(library, path)
	}
	if err != nil {
		return err
	}

	file, err := s.fileRepo.Create(path, info.Size(), info.ModTime().Unix())
	if err != nil {
		return err
	}
	if err := s.itemRepo.CreateFileMap(itemID, file.ID); err != nil {
		return err
	}

	result.Added++
	return nil
}

func (s *Scanner) registerMovie(library *models.Library, path string) (uuid.UUID, error) {
	parsed := ParseMovie(path)
	return s.itemRepo.FindOrCreate(library.ID, models.ItemMovie, nil, parsed.Title, parsed.Year, nil, nil)
}

// registerEpisode builds the series → season → episode chain. Files without
// recognizable episode numbering fall back to a movie-style flat entry so the
// content is still reachable.
func (s *Scanner) registerEpisode(library *models.Library, root, path string) (uuid.UUID, error) {
	relPath, err := filepath.Rel(root, path)
	if err != nil {
		relPath = filepath.Base(path)
	}

	parsed, ok := ParseEpisode(relPath)
	if !ok || parsed.SeriesTitle == "" {
		return s.registerMovie(library, path)
	}

	seriesID, err := s.itemRepo.FindOrCreate(library.ID, models.ItemSeries, nil, parsed.SeriesTitle, nil, nil, nil)
	if err != nil {
		return uuid.Nil, err
	}

	seasonTitle := fmt.Sprintf("Season %d", parsed.Season)
	if parsed.Season == 0 {
		seasonTitle = "Specials"
	}
	seasonID, err := s.itemRepo.FindOrCreate(library.ID, models.ItemSeason, &seriesID,
		seasonTitle, nil, &parsed.Season, nil)
	if err != nil {
		return uuid.Nil, err
	}

	episodeTitle := parsed.EpisodeTitle
	if episodeTitle == "" {
		episodeTitle = fmt.Sprintf("Episode %d", parsed.Episode)
	}
	episodeID, err := s.itemRepo.FindOrCreate(library.ID, models.ItemEpisode, &seasonID,
		episodeTitle, nil, &parsed.Season, &parsed.Episode)
	if err != nil {
		return uuid.Nil, err
	}

	// Provider tags on the series folder seed metadata matching.
	if first := firstPathComponent(relPath); first != "" {
		for provider, value := range ProviderTags(first) {
			if err := s.itemRepo.SetProviderID(seriesID, provider, value); err != nil {
				log.Printf("Scan: failed to set provider id %s=%s: %v", provider, value, err)
			}
		}
	}

	return episodeID, nil
}

func firstPathComponent(relPath string) string {
	rel := filepath.ToSlash(relPath)
	for i := 0; i < len(rel); i++ {
		if rel[i] == '/' {
			return rel[:i]
		}
	}
	return ""
}
