package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/Iwan-Teague/Rustyfin/internal/auth"
	"github.com/Iwan-Teague/Rustyfin/internal/models"
	"github.com/Iwan-Teague/Rustyfin/internal/stream"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// seedMediaFile registers a library rooted at a temp dir plus one media file
// inside it, returning the file id and payload.
func seedMediaFile(t *testing.T, env *testEnv) (string, []byte) {
	t.Helper()

	root := t.TempDir()
	_, err := env.server.libRepo.Create("Movies", models.LibraryMovies, []string{root})
	require.NoError(t, err)

	payload := []byte("0123456789abcdef")
	path := filepath.Join(root, "Movie (2020).mp4")
	require.NoError(t, os.WriteFile(path, payload, 0o644))

	file, err := env.server.fileRepo.Create(path, int64(len(payload)), 0)
	require.NoError(t, err)
	return file.ID.String(), payload
}

func TestStreamFileWithStreamToken(t *testing.T) {
	env := newTestEnv(t)
	fileID, payload := seedMediaFile(t, env)

	st, err := env.server.tokens.IssueStream(env.admin.ID, env.admin.Role, fileID, "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stream/file/"+fileID+"?st="+st, nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, payload, rec.Body.Bytes())
	require.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
}

func TestStreamFileRangeRequest(t *testing.T) {
	env := newTestEnv(t)
	fileID, payload := seedMediaFile(t, env)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stream/file/"+fileID, nil)
	req.Header.Set("Authorization", "Bearer "+env.token)
	req.Header.Set("Range", "bytes=4-7")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusPartialContent, rec.Code)
	require.Equal(t, payload[4:8], rec.Body.Bytes())
	require.Contains(t, rec.Header().Get("Content-Range"), "bytes 4-7/")
}

func TestStreamFileScopedTokenMismatch(t *testing.T) {
	env := newTestEnv(t)
	fileID, _ := seedMediaFile(t, env)

	// Token minted for a different file.
	st, err := env.server.tokens.IssueStream(env.admin.ID, env.admin.Role,
		"00000000-0000-0000-0000-000000000001", "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stream/file/"+fileID+"?st="+st, nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStreamFileRejectsBearerInQuery(t *testing.T) {
	env := newTestEnv(t)
	fileID, _ := seedMediaFile(t, env)

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/stream/file/"+fileID+"?token="+env.token, nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "stream token")
}

func TestStreamFileOutsideLibraryRoots(t *testing.T) {
	env := newTestEnv(t)
	seedMediaFile(t, env)

	// File row pointing outside every library root.
	outside := filepath.Join(t.TempDir(), "escape.mp4")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))
	file, err := env.server.fileRepo.Create(outside, 1, 0)
	require.NoError(t, err)

	rec := env.request(t, http.MethodGet, "/api/v1/stream/file/"+file.ID.String(), nil, env.token)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStreamFileDeniedWithoutLibraryGrants(t *testing.T) {
	env := newTestEnv(t)
	fileID, _ := seedMediaFile(t, env)

	hash, err := auth.HashPassword("password1")
	require.NoError(t, err)
	user, err := env.server.userRepo.Create("viewer", hash, models.RoleUser)
	require.NoError(t, err)
	token, err := env.server.tokens.Issue(user)
	require.NoError(t, err)

	// A non-admin with no library grants may not stream anything.
	rec := env.request(t, http.MethodGet, "/api/v1/stream/file/"+fileID, nil, token)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Granting the library opens it up.
	libs, err := env.server.libRepo.List()
	require.NoError(t, err)
	require.Len(t, libs, 1)
	require.NoError(t, env.server.userRepo.SetLibraryAccess(user.ID, []uuid.UUID{libs[0].ID}))

	rec = env.request(t, http.MethodGet, "/api/v1/stream/file/"+fileID, nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionFilenameValidation(t *testing.T) {
	env := newTestEnv(t)

	session, err := env.server.transcoder.Create("/dev/null", 0, "")
	require.NoError(t, err)
	defer env.server.transcoder.Stop(session.ID)

	rec := env.request(t, http.MethodGet,
		"/api/v1/stream/sessions/"+session.ID+"/..%2Fmaster.m3u8", nil, env.token)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionPingAndStop(t *testing.T) {
	env := newTestEnv(t)

	session, err := env.server.transcoder.Create("/dev/null", 0, "")
	require.NoError(t, err)

	rec := env.request(t, http.MethodPost,
		"/api/v1/stream/sessions/"+session.ID+"/ping", nil, env.token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodDelete,
		"/api/v1/stream/sessions/"+session.ID, nil, env.token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodPost,
		"/api/v1/stream/sessions/"+session.ID+"/ping", nil, env.token)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateSessionCapReturns429(t *testing.T) {
	env := newTestEnv(t)
	fileID, _ := seedMediaFile(t, env)

	body := map[string]interface{}{"file_id": fileID}
	for i := 0; i < 2; i++ {
		rec := env.request(t, http.MethodPost, "/api/v1/stream/sessions", body, env.token)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := env.request(t, http.MethodPost, "/api/v1/stream/sessions", body, env.token)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	// The refusal tells the client the configured limit.
	resp := decodeBody[struct {
		Error struct {
			Details map[string]interface{} `json:"details"`
		} `json:"error"`
	}](t, rec)
	require.EqualValues(t, 2, resp.Error.Details["max_concurrent"])

	env.server.transcoder.StopAll()
}

func TestSubtitleOutsideRootsForbidden(t *testing.T) {
	env := newTestEnv(t)
	seedMediaFile(t, env)

	outside := filepath.Join(t.TempDir(), "escape.srt")
	require.NoError(t, os.WriteFile(outside, []byte("1\n"), 0o644))

	token := stream.EncodeSubtitlePath(outside)
	rec := env.request(t, http.MethodGet, "/api/v1/stream/subtitles/"+token, nil, env.token)
	require.Equal(t, http.StatusForbidden, rec.Code)
}
