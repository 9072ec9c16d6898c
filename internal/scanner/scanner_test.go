package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Iwan-Teague/Rustyfin/internal/db"
	"github.com/Iwan-Teague/Rustyfin/internal/models"
	"github.com/Iwan-Teague/Rustyfin/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScanner(t *testing.T) (*Scanner, *repository.LibraryRepository, *repository.ItemRepository) {
	t.Helper()

	database, err := db.Connect(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.Migrate(database))

	libraryRepo := repository.NewLibraryRepository(database.DB)
	itemRepo := repository.NewItemRepository(database.DB)
	fileRepo := repository.NewMediaFileRepository(database.DB)
	return NewScanner(libraryRepo, itemRepo, fileRepo), libraryRepo, itemRepo
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("fake video data"), 0o644))
}

func TestScanMovieLibrary(t *testing.T) {
	s, libraryRepo, itemRepo := newTestScanner(t)

	root := t.TempDir()
	touch(t, filepath.Join(root, "The Matrix (1999)", "The.Matrix.1999.1080p.mkv"))
	touch(t, filepath.Join(root, "Inception (2010)", "Inception (2010).mp4"))
	touch(t, filepath.Join(root, "The Matrix (1999)", "cover.jpg"))
	touch(t, filepath.Join(root, "@eaDir", "thumbs.mkv"))

	lib, err := libraryRepo.Create("Movies", models.LibraryMovies, []string{root})
	require.NoError(t, err)

	result, err := s.ScanLibrary(lib, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Added)
	assert.Equal(t, 0, result.Skipped)

	items, err := itemRepo.GetTopLevel(lib.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	titles := []string{items[0].Title, items[1].Title}
	assert.Contains(t, titles, "The Matrix")
	assert.Contains(t, titles, "Inception")
}

func TestScanIsIdempotent(t *testing.T) {
	s, libraryRepo, _ := newTestScanner(t)

	root := t.TempDir()
	touch(t, filepath.Join(root, "Heat (1995)", "Heat.1995.mkv"))

	lib, err := libraryRepo.Create("Movies", models.LibraryMovies, []string{root})
	require.NoError(t, err)

	first, err := s.ScanLibrary(lib, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Added)

	second, err := s.ScanLibrary(lib, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Added)
	assert.Equal(t, 1, second.Skipped)
}

func TestScanReportsVanishedFiles(t *testing.T) {
	s, libraryRepo, _ := newTestScanner(t)

	root := t.TempDir()
	keep := filepath.Join(root, "Heat (1995)", "Heat.1995.mkv")
	gone := filepath.Join(root, "Ronin (1998)", "Ronin.1998.mkv")
	touch(t, keep)
	touch(t, gone)

	lib, err := libraryRepo.Create("Movies", models.LibraryMovies, []string{root})
	require.NoError(t, err)

	first, err := s.ScanLibrary(lib, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Added)
	assert.Equal(t, 0, first.Missing)

	// Deleting a known file surfaces it in the next scan's missing count;
	// the database row stays.
	require.NoError(t, os.Remove(gone))

	second, err := s.ScanLibrary(lib, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Added)
	assert.Equal(t, 1, second.Skipped)
	assert.Equal(t, 1, second.Missing)
}

func TestScanTVLibraryBuildsHierarchy(t *testing.T) {
	s, libraryRepo, itemRepo := newTestScanner(t)

	root := t.TempDir()
	touch(t, filepath.Join(root, "Breaking Bad", "Season 1", "Breaking.Bad.S01E01.Pilot.mkv"))
	touch(t, filepath.Join(root, "Breaking Bad", "Season 1", "Breaking.Bad.S01E02.mkv"))
	touch(t, filepath.Join(root, "Breaking Bad", "Season 2", "Breaking.Bad.S02E01.mkv"))

	lib, err := libraryRepo.Create("TV", models.LibraryTVShows, []string{root})
	require.NoError(t, err)

	result, err := s.ScanLibrary(lib, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Added)

	series, err := itemRepo.GetTopLevel(lib.ID)
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, "Breaking Bad", series[0].Title)
	assert.Equal(t, models.ItemSeries, series[0].Kind)

	seasons, err := itemRepo.GetChildren(series[0].ID)
	require.NoError(t, err)
	require.Len(t, seasons, 2)
	assert.Equal(t, "Season 1", seasons[0].Title)
	assert.Equal(t, "Season 2", seasons[1].Title)

	episodes, err := itemRepo.GetChildren(seasons[0].ID)
	require.NoError(t, err)
	require.Len(t, episodes, 2)
	assert.Equal(t, "Pilot", episodes[0].Title)
	require.NotNil(t, episodes[0].EpisodeNumber)
	assert.Equal(t, 1, *episodes[0].EpisodeNumber)
}

func TestScanTVSpecialsSeason(t *testing.T) {
	s, libraryRepo, itemRepo := newTestScanner(t)

	root := t.TempDir()
	touch(t, filepath.Join(root, "Doctor Who", "Specials", "Doctor.Who.S00E01.mkv"))

	lib, err := libraryRepo.Create("TV", models.LibraryTVShows, []string{root})
	require.NoError(t, err)

	_, err = s.ScanLibrary(lib, nil)
	require.NoError(t, err)

	series, err := itemRepo.GetTopLevel(lib.ID)
	require.NoError(t, err)
	require.Len(t, series, 1)

	seasons, err := itemRepo.GetChildren(series[0].ID)
	require.NoError(t, err)
	require.Len(t, seasons, 1)
	assert.Equal(t, "Specials", seasons[0].Title)
}

func TestScanProgressCallback(t *testing.T) {
	s, libraryRepo, _ := newTestScanner(t)

	root := t.TempDir()
	touch(t, filepath.Join(root, "A (2000)", "a.mkv"))
	touch(t, filepath.Join(root, "B (2001)", "b.mkv"))

	lib, err := libraryRepo.Create("Movies", models.LibraryMovies, []string{root})
	require.NoError(t, err)

	var calls int
	_, err = s.ScanLibrary(lib, func(scanned, total int) { calls = scanned })
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
