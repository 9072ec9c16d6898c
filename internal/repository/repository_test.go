package repository

import (
	"path/filepath"
	"testing"

	"github.com/Iwan-Teague/Rustyfin/internal/db"
	"github.com/Iwan-Teague/Rustyfin/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.Connect(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.Migrate(database))
	return database
}

func TestItemFindOrCreateIsIdempotent(t *testing.T) {
	database := newTestDB(t)
	libRepo := NewLibraryRepository(database.DB)
	itemRepo := NewItemRepository(database.DB)

	lib, err := libRepo.Create("Movies", models.LibraryMovies, []string{t.TempDir()})
	require.NoError(t, err)

	year := 1999
	first, err := itemRepo.FindOrCreate(lib.ID, models.ItemMovie, nil, "The Matrix", &year, nil, nil)
	require.NoError(t, err)
	second, err := itemRepo.FindOrCreate(lib.ID, models.ItemMovie, nil, "The Matrix", &year, nil, nil)
	require.NoError(t, err)
	require.Equal(t, first, second)

	// Same title under a different parent is a distinct item.
	seriesLib, err := libRepo.Create("TV", models.LibraryTVShows, []string{t.TempDir()})
	require.NoError(t, err)
	other, err := itemRepo.FindOrCreate(seriesLib.ID, models.ItemMovie, nil, "The Matrix", &year, nil, nil)
	require.NoError(t, err)
	require.NotEqual(t, first, other)
}

func TestItemTopLevelUniqueEnforced(t *testing.T) {
	database := newTestDB(t)
	libRepo := NewLibraryRepository(database.DB)

	lib, err := libRepo.Create("Movies", models.LibraryMovies, []string{t.TempDir()})
	require.NoError(t, err)

	// NULL parent rows have to be constrained too: a second identical
	// top-level insert must hit the partial unique index, not slip past the
	// table constraint's NULL-is-distinct semantics.
	insert := func() error {
		_, err := database.Exec(`INSERT INTO item (id, library_id, kind, parent_id, title, created_ts, updated_ts)
			VALUES (?, ?, 'movie', NULL, 'Dup', 0, 0)`, uuid.New(), lib.ID)
		return err
	}
	require.NoError(t, insert())
	require.Error(t, insert())

	var count int
	require.NoError(t, database.QueryRow(
		`SELECT COUNT(*) FROM item WHERE library_id = ? AND title = 'Dup'`, lib.ID).Scan(&count))
	require.Equal(t, 1, count)
}

func TestItemProviderIDsAndLocks(t *testing.T) {
	database := newTestDB(t)
	libRepo := NewLibraryRepository(database.DB)
	itemRepo := NewItemRepository(database.DB)

	lib, err := libRepo.Create("Movies", models.LibraryMovies, []string{t.TempDir()})
	require.NoError(t, err)
	id, err := itemRepo.FindOrCreate(lib.ID, models.ItemMovie, nil, "Dune", nil, nil, nil)
	require.NoError(t, err)

	require.NoError(t, itemRepo.SetProviderID(id, "tmdb", "438631"))
	// Re-setting replaces rather than duplicating.
	require.NoError(t, itemRepo.SetProviderID(id, "tmdb", "438631"))

	ids, err := itemRepo.GetProviderIDs(id)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	require.Equal(t, "438631", ids[0].Value)

	require.NoError(t, itemRepo.LockField(id, "title"))
	require.NoError(t, itemRepo.LockField(id, "title"))
	fields, err := itemRepo.GetLockedFields(id)
	require.NoError(t, err)
	require.Equal(t, []string{"title"}, fields)
}

func TestJobLifecycle(t *testing.T) {
	database := newTestDB(t)
	jobRepo := NewJobRepository(database.DB)

	job, err := jobRepo.Create("scan:library", nil)
	require.NoError(t, err)
	require.Equal(t, models.JobQueued, job.Status)

	ok, err := jobRepo.UpdateStatus(job.ID, models.JobRunning, 0.5, nil)
	require.NoError(t, err)
	require.True(t, ok)

	cancelled, err := jobRepo.Cancel(job.ID)
	require.NoError(t, err)
	require.True(t, cancelled)

	// Cancel is not repeatable once the job is terminal.
	cancelled, err = jobRepo.Cancel(job.ID)
	require.NoError(t, err)
	require.False(t, cancelled)

	got, err := jobRepo.GetByID(job.ID)
	require.NoError(t, err)
	require.Equal(t, models.JobCancelled, got.Status)
	require.True(t, got.Status.IsTerminal())
}

func TestLibraryDeleteCascades(t *testing.T) {
	database := newTestDB(t)
	libRepo := NewLibraryRepository(database.DB)
	itemRepo := NewItemRepository(database.DB)

	lib, err := libRepo.Create("Movies", models.LibraryMovies, []string{t.TempDir()})
	require.NoError(t, err)
	id, err := itemRepo.FindOrCreate(lib.ID, models.ItemMovie, nil, "Heat", nil, nil, nil)
	require.NoError(t, err)

	deleted, err := libRepo.Delete(lib.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	_, err = itemRepo.GetByID(id)
	require.Error(t, err)
}

func TestPlaystateUpsert(t *testing.T) {
	database := newTestDB(t)
	libRepo := NewLibraryRepository(database.DB)
	itemRepo := NewItemRepository(database.DB)
	userRepo := NewUserRepository(database.DB)
	playRepo := NewPlaystateRepository(database.DB)

	lib, err := libRepo.Create("Movies", models.LibraryMovies, []string{t.TempDir()})
	require.NoError(t, err)
	itemID, err := itemRepo.FindOrCreate(lib.ID, models.ItemMovie, nil, "Alien", nil, nil, nil)
	require.NoError(t, err)
	user, err := userRepo.Create("sam", "hash", models.RoleUser)
	require.NoError(t, err)

	state, err := playRepo.Get(user.ID, itemID)
	require.NoError(t, err)
	require.Nil(t, state)

	require.NoError(t, playRepo.UpdateProgress(user.ID, itemID, 1000, false))
	require.NoError(t, playRepo.UpdateProgress(user.ID, itemID, 5000, true))

	state, err = playRepo.Get(user.ID, itemID)
	require.NoError(t, err)
	require.Equal(t, int64(5000), state.ProgressMS)
	require.True(t, state.Played)
}

func TestSettingsRoundTrip(t *testing.T) {
	database := newTestDB(t)
	repo := NewSettingsRepository(database.DB)

	require.NoError(t, repo.Set("max_transcodes", "8"))
	require.Equal(t, 8, repo.GetInt("max_transcodes", 4))
	require.Equal(t, 4, repo.GetInt("missing_key", 4))

	require.NoError(t, repo.Set("max_transcodes", "2"))
	v, err := repo.Get("max_transcodes")
	require.NoError(t, err)
	require.Equal(t, "2", v)

	deleted, err := repo.Delete("max_transcodes")
	require.NoError(t, err)
	require.True(t, deleted)
}
