package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/Iwan-Teague/Rustyfin/internal/auth"
	"github.com/Iwan-Teague/Rustyfin/internal/config"
	"github.com/Iwan-Teague/Rustyfin/internal/db"
	"github.com/Iwan-Teague/Rustyfin/internal/events"
	"github.com/Iwan-Teague/Rustyfin/internal/jobs"
	"github.com/Iwan-Teague/Rustyfin/internal/metadata"
	"github.com/Iwan-Teague/Rustyfin/internal/models"
	"github.com/Iwan-Teague/Rustyfin/internal/stream"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	server *Server
	admin  *models.User
	token  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	database, err := db.Connect(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.Migrate(database))

	cfg := &config.Config{
		JWTSecret:    "test-secret",
		CacheDir:     filepath.Join(dir, "cache"),
		TranscodeDir: filepath.Join(dir, "transcode"),
		FFmpegPath:   "sleep",
		FFprobePath:  "ffprobe",
	}

	transcoder := stream.NewTranscoder(stream.TranscoderConfig{
		FFmpegPath:    cfg.FFmpegPath,
		TranscodeRoot: cfg.TranscodeDir,
		MaxConcurrent: 2,
		IdleTimeout:   time.Minute,
	})

	srv := NewServer(cfg, database.DB, jobs.NewQueue("localhost:6379"),
		transcoder, events.NewHub(), metadata.NewManager(nil, nil, nil))

	hash, err := auth.HashPassword("correct horse")
	require.NoError(t, err)
	admin, err := srv.userRepo.Create("admin", hash, models.RoleAdmin)
	require.NoError(t, err)

	token, err := srv.tokens.Issue(admin)
	require.NoError(t, err)

	return &testEnv{server: srv, admin: admin, token: token}
}

func (e *testEnv) request(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.request(t, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"username": "admin", "password": "correct horse"}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[map[string]interface{}](t, rec)
	require.NotEmpty(t, resp["token"])
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"username": "admin", "password": "wrong"}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Unknown usernames get the identical response.
	rec2 := env.request(t, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"username": "nobody", "password": "wrong"}, "")
	require.Equal(t, rec.Body.String(), rec2.Body.String())
}

func TestLoginRateLimited(t *testing.T) {
	env := newTestEnv(t)

	var last int
	for i := 0; i < loginBurst+2; i++ {
		rec := env.request(t, http.MethodPost, "/api/v1/auth/login",
			map[string]string{"username": "admin", "password": "wrong"}, "")
		last = rec.Code
	}
	require.Equal(t, http.StatusTooManyRequests, last)
}

func TestAuthMiddlewareMissingToken(t *testing.T) {
	env := newTestEnv(t)
	rec := env.request(t, http.MethodGet, "/api/v1/libraries", nil, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareRejectsStreamTokenOnAPIRoutes(t *testing.T) {
	env := newTestEnv(t)

	st, err := env.server.tokens.IssueStream(env.admin.ID, env.admin.Role, "", "")
	require.NoError(t, err)

	rec := env.request(t, http.MethodGet, "/api/v1/libraries", nil, st)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRouteForbiddenForUser(t *testing.T) {
	env := newTestEnv(t)

	hash, err := auth.HashPassword("password1")
	require.NoError(t, err)
	user, err := env.server.userRepo.Create("viewer", hash, models.RoleUser)
	require.NoError(t, err)
	token, err := env.server.tokens.Issue(user)
	require.NoError(t, err)

	rec := env.request(t, http.MethodGet, "/api/v1/users", nil, token)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateUserValidation(t *testing.T) {
	env := newTestEnv(t)

	// Password below the minimum length.
	rec := env.request(t, http.MethodPost, "/api/v1/users",
		map[string]string{"username": "bob", "password": "short"}, env.token)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/v1/users",
		map[string]string{"username": "bob", "password": "long enough"}, env.token)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Duplicate username.
	rec = env.request(t, http.MethodPost, "/api/v1/users",
		map[string]string{"username": "bob", "password": "long enough"}, env.token)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeleteOwnUserRefused(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodDelete, "/api/v1/users/"+env.admin.ID.String(), nil, env.token)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestLibraryCRUD(t *testing.T) {
	env := newTestEnv(t)
	mediaDir := t.TempDir()

	rec := env.request(t, http.MethodPost, "/api/v1/libraries", map[string]interface{}{
		"name": "Movies", "kind": "movies", "paths": []string{mediaDir},
	}, env.token)
	require.Equal(t, http.StatusCreated, rec.Code)
	lib := decodeBody[models.Library](t, rec)

	rec = env.request(t, http.MethodGet, "/api/v1/libraries", nil, env.token)
	require.Equal(t, http.StatusOK, rec.Code)
	libs := decodeBody[[]models.Library](t, rec)
	require.Len(t, libs, 1)

	rec = env.request(t, http.MethodPut, "/api/v1/libraries/"+lib.ID.String(),
		map[string]string{"name": "Films"}, env.token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Films", decodeBody[models.Library](t, rec).Name)

	rec = env.request(t, http.MethodDelete, "/api/v1/libraries/"+lib.ID.String(), nil, env.token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/v1/libraries/"+lib.ID.String(), nil, env.token)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateLibraryRejectsBadPath(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/v1/libraries", map[string]interface{}{
		"name": "Movies", "kind": "movies", "paths": []string{"/does/not/exist"},
	}, env.token)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/v1/libraries", map[string]interface{}{
		"name": "Movies", "kind": "vinyl", "paths": []string{t.TempDir()},
	}, env.token)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestLibraryAccessFiltering(t *testing.T) {
	env := newTestEnv(t)

	libA, err := env.server.libRepo.Create("A", models.LibraryMovies, []string{t.TempDir()})
	require.NoError(t, err)
	_, err = env.server.libRepo.Create("B", models.LibraryMovies, []string{t.TempDir()})
	require.NoError(t, err)

	hash, err := auth.HashPassword("password1")
	require.NoError(t, err)
	user, err := env.server.userRepo.Create("viewer", hash, models.RoleUser)
	require.NoError(t, err)
	token, err := env.server.tokens.Issue(user)
	require.NoError(t, err)

	// No grants: user sees everything.
	rec := env.request(t, http.MethodGet, "/api/v1/libraries", nil, token)
	require.Len(t, decodeBody[[]models.Library](t, rec), 2)

	// Grant only A.
	rec = env.request(t, http.MethodPut, "/api/v1/users/"+user.ID.String()+"/libraries",
		map[string]interface{}{"library_ids": []string{libA.ID.String()}}, env.token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/v1/libraries", nil, token)
	libs := decodeBody[[]models.Library](t, rec)
	require.Len(t, libs, 1)
	require.Equal(t, "A", libs[0].Name)

	// Admins are never filtered.
	rec = env.request(t, http.MethodGet, "/api/v1/libraries", nil, env.token)
	require.Len(t, decodeBody[[]models.Library](t, rec), 2)
}
