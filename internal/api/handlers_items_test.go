package api

import (
	"net/http"
	"testing"

	"github.com/Iwan-Teague/Rustyfin/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func seedMovie(t *testing.T, env *testEnv) uuid.UUID {
	t.Helper()

	lib, err := env.server.libRepo.Create("Movies", models.LibraryMovies, []string{t.TempDir()})
	require.NoError(t, err)

	year := 2020
	id, err := env.server.itemRepo.FindOrCreate(lib.ID, models.ItemMovie, nil, "Some Movie", &year, nil, nil)
	require.NoError(t, err)
	return id
}

func TestGetItem(t *testing.T) {
	env := newTestEnv(t)
	id := seedMovie(t, env)

	rec := env.request(t, http.MethodGet, "/api/v1/items/"+id.String(), nil, env.token)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[map[string]interface{}](t, rec)
	item := resp["item"].(map[string]interface{})
	require.Equal(t, "Some Movie", item["title"])
}

func TestGetItemNotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := env.request(t, http.MethodGet, "/api/v1/items/"+uuid.NewString(), nil, env.token)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMissingEpisodesRequiresSeries(t *testing.T) {
	env := newTestEnv(t)
	id := seedMovie(t, env)

	rec := env.request(t, http.MethodGet, "/api/v1/items/"+id.String()+"/missing-episodes", nil, env.token)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMissingEpisodesReport(t *testing.T) {
	env := newTestEnv(t)

	lib, err := env.server.libRepo.Create("TV", models.LibraryTVShows, []string{t.TempDir()})
	require.NoError(t, err)
	seriesID, err := env.server.itemRepo.FindOrCreate(lib.ID, models.ItemSeries, nil, "Show", nil, nil, nil)
	require.NoError(t, err)

	season := 1
	seasonID, err := env.server.itemRepo.FindOrCreate(lib.ID, models.ItemSeason, &seriesID, "Season 1", nil, &season, nil)
	require.NoError(t, err)
	epOne := 1
	_, err = env.server.itemRepo.FindOrCreate(lib.ID, models.ItemEpisode, &seasonID, "Pilot", nil, &season, &epOne)
	require.NoError(t, err)

	for ep := 1; ep <= 3; ep++ {
		require.NoError(t, env.server.episodeRepo.UpsertExpected(&models.ExpectedEpisode{
			SeriesID: seriesID, SeasonNumber: 1, EpisodeNumber: ep,
		}))
	}

	rec := env.request(t, http.MethodGet, "/api/v1/items/"+seriesID.String()+"/missing-episodes", nil, env.token)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[struct {
		Missing []models.MissingEpisode `json:"missing"`
	}](t, rec)
	require.Len(t, resp.Missing, 2)
}

func TestFieldLocks(t *testing.T) {
	env := newTestEnv(t)
	id := seedMovie(t, env)

	rec := env.request(t, http.MethodPut, "/api/v1/items/"+id.String()+"/locks/title", nil, env.token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodPut, "/api/v1/items/"+id.String()+"/locks/bogus", nil, env.token)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/v1/items/"+id.String()+"/locks", nil, env.token)
	resp := decodeBody[map[string][]string](t, rec)
	require.Equal(t, []string{"title"}, resp["locked_fields"])

	rec = env.request(t, http.MethodDelete, "/api/v1/items/"+id.String()+"/locks/title", nil, env.token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/v1/items/"+id.String()+"/locks", nil, env.token)
	resp = decodeBody[map[string][]string](t, rec)
	require.Empty(t, resp["locked_fields"])
}

func TestItemImageMissing(t *testing.T) {
	env := newTestEnv(t)
	id := seedMovie(t, env)

	rec := env.request(t, http.MethodGet, "/api/v1/items/"+id.String()+"/images/poster", nil, env.token)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/v1/items/"+id.String()+"/images/selfie", nil, env.token)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaystateRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	id := seedMovie(t, env)

	// Zero state before any progress is recorded.
	rec := env.request(t, http.MethodGet, "/api/v1/items/"+id.String()+"/state", nil, env.token)
	require.Equal(t, http.StatusOK, rec.Code)
	zero := decodeBody[map[string]interface{}](t, rec)
	require.Equal(t, false, zero["played"])

	rec = env.request(t, http.MethodPost, "/api/v1/items/"+id.String()+"/progress",
		map[string]interface{}{"progress_ms": 90000, "played": false}, env.token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/v1/items/"+id.String()+"/favorite",
		map[string]bool{"favorite": true}, env.token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/v1/items/"+id.String()+"/state", nil, env.token)
	state := decodeBody[models.UserItemState](t, rec)
	require.Equal(t, int64(90000), state.ProgressMS)
	require.True(t, state.Favorite)
}

func TestProgressValidation(t *testing.T) {
	env := newTestEnv(t)
	id := seedMovie(t, env)

	rec := env.request(t, http.MethodPost, "/api/v1/items/"+id.String()+"/progress",
		map[string]interface{}{"progress_ms": -5}, env.token)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPlaybackInfoWithoutFile(t *testing.T) {
	env := newTestEnv(t)
	id := seedMovie(t, env)

	rec := env.request(t, http.MethodPost, "/api/v1/items/"+id.String()+"/playback-info", nil, env.token)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
