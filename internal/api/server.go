package api

import (
	"bufio"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/Iwan-Teague/Rustyfin/internal/auth"
	"github.com/Iwan-Teague/Rustyfin/internal/config"
	"github.com/Iwan-Teague/Rustyfin/internal/events"
	"github.com/Iwan-Teague/Rustyfin/internal/ffmpeg"
	"github.com/Iwan-Teague/Rustyfin/internal/httputil"
	"github.com/Iwan-Teague/Rustyfin/internal/jobs"
	"github.com/Iwan-Teague/Rustyfin/internal/metadata"
	"github.com/Iwan-Teague/Rustyfin/internal/metrics"
	"github.com/Iwan-Teague/Rustyfin/internal/models"
	"github.com/Iwan-Teague/Rustyfin/internal/repository"
	"github.com/Iwan-Teague/Rustyfin/internal/stream"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

type Server struct {
	config       *config.Config
	tokens       *auth.Tokens
	userRepo     *repository.UserRepository
	libRepo      *repository.LibraryRepository
	itemRepo     *repository.ItemRepository
	fileRepo     *repository.MediaFileRepository
	jobRepo      *repository.JobRepository
	playRepo     *repository.PlaystateRepository
	episodeRepo  *repository.EpisodeRepository
	settingsRepo *repository.SettingsRepository
	probe        *ffmpeg.FFprobe
	transcoder   *stream.Transcoder
	queue        *jobs.Queue
	hub          *events.Hub
	manager      *metadata.Manager
	router       *http.ServeMux

	// OnLibrariesChanged fires after a library is created, edited or
	// deleted so the filesystem watcher can re-sync its watch list.
	OnLibrariesChanged func()

	limiterMu     sync.Mutex
	loginLimiters map[string]*rate.Limiter
}

func NewServer(cfg *config.Config, database *sql.DB, queue *jobs.Queue,
	transcoder *stream.Transcoder, hub *events.Hub, manager *metadata.Manager) *Server {

	s := &Server{
		config:        cfg,
		tokens:        auth.NewTokens(cfg.JWTSecret),
		userRepo:      repository.NewUserRepository(database),
		libRepo:       repository.NewLibraryRepository(database),
		itemRepo:      repository.NewItemRepository(database),
		fileRepo:      repository.NewMediaFileRepository(database),
		jobRepo:       repository.NewJobRepository(database),
		playRepo:      repository.NewPlaystateRepository(database),
		episodeRepo:   repository.NewEpisodeRepository(database),
		settingsRepo:  repository.NewSettingsRepository(database),
		probe:         ffmpeg.NewFFprobe(cfg.FFprobePath),
		transcoder:    transcoder,
		queue:         queue,
		hub:           hub,
		manager:       manager,
		router:        http.NewServeMux(),
		loginLimiters: make(map[string]*rate.Limiter),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Public
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("POST /api/v1/auth/login", s.handleLogin)
	s.router.Handle("GET /metrics", promhttp.Handler())

	// Auth / session
	s.router.HandleFunc("GET /api/v1/auth/me", s.authMiddleware(s.handleMe, models.RoleUser))
	s.router.HandleFunc("POST /api/v1/auth/stream-token", s.authMiddleware(s.handleStreamToken, models.RoleUser))

	// Users (admin)
	s.router.HandleFunc("GET /api/v1/users", s.authMiddleware(s.handleListUsers, models.RoleAdmin))
	s.router.HandleFunc("POST /api/v1/users", s.authMiddleware(s.handleCreateUser, models.RoleAdmin))
	s.router.HandleFunc("DELETE /api/v1/users/{id}", s.authMiddleware(s.handleDeleteUser, models.RoleAdmin))
	s.router.HandleFunc("PUT /api/v1/users/{id}/role", s.authMiddleware(s.handleUpdateUserRole, models.RoleAdmin))
	s.router.HandleFunc("GET /api/v1/users/{id}/libraries", s.authMiddleware(s.handleGetLibraryAccess, models.RoleAdmin))
	s.router.HandleFunc("PUT /api/v1/users/{id}/libraries", s.authMiddleware(s.handleSetLibraryAccess, models.RoleAdmin))

	// Libraries
	s.router.HandleFunc("GET /api/v1/libraries", s.authMiddleware(s.handleListLibraries, models.RoleUser))
	s.router.HandleFunc("POST /api/v1/libraries", s.authMiddleware(s.handleCreateLibrary, models.RoleAdmin))
	s.router.HandleFunc("GET /api/v1/libraries/{id}", s.authMiddleware(s.handleGetLibrary, models.RoleUser))
	s.router.HandleFunc("PUT /api/v1/libraries/{id}", s.authMiddleware(s.handleUpdateLibrary, models.RoleAdmin))
	s.router.HandleFunc("DELETE /api/v1/libraries/{id}", s.authMiddleware(s.handleDeleteLibrary, models.RoleAdmin))
	s.router.HandleFunc("POST /api/v1/libraries/{id}/scan", s.authMiddleware(s.handleScanLibrary, models.RoleAdmin))
	s.router.HandleFunc("GET /api/v1/libraries/{id}/items", s.authMiddleware(s.handleLibraryItems, models.RoleUser))

	// Items
	s.router.HandleFunc("GET /api/v1/items/{id}", s.authMiddleware(s.handleGetItem, models.RoleUser))
	s.router.HandleFunc("GET /api/v1/items/{id}/children", s.authMiddleware(s.handleItemChildren, models.RoleUser))
	s.router.HandleFunc("GET /api/v1/items/{id}/missing-episodes", s.authMiddleware(s.handleMissingEpisodes, models.RoleUser))
	s.router.HandleFunc("GET /api/v1/items/{id}/locks", s.authMiddleware(s.handleListLocks, models.RoleUser))
	s.router.HandleFunc("PUT /api/v1/items/{id}/locks/{field}", s.authMiddleware(s.handleLockField, models.RoleAdmin))
	s.router.HandleFunc("DELETE /api/v1/items/{id}/locks/{field}", s.authMiddleware(s.handleUnlockField, models.RoleAdmin))
	s.router.HandleFunc("POST /api/v1/items/{id}/refresh-metadata", s.authMiddleware(s.handleRefreshMetadata, models.RoleAdmin))
	s.router.HandleFunc("GET /api/v1/items/{id}/images/{type}", s.authMiddleware(s.handleItemImage, models.RoleUser))
	s.router.HandleFunc("GET /api/v1/items/{id}/subtitles", s.authMiddleware(s.handleListSubtitles, models.RoleUser))

	// Playback
	s.router.HandleFunc("POST /api/v1/items/{id}/playback-info", s.authMiddleware(s.handlePlaybackInfo, models.RoleUser))
	s.router.HandleFunc("POST /api/v1/items/{id}/progress", s.authMiddleware(s.handleUpdateProgress, models.RoleUser))
	s.router.HandleFunc("GET /api/v1/items/{id}/state", s.authMiddleware(s.handleGetState, models.RoleUser))
	s.router.HandleFunc("POST /api/v1/items/{id}/favorite", s.authMiddleware(s.handleSetFavorite, models.RoleUser))

	// Streaming. File and HLS fetches come from players that cannot set
	// headers, so they also accept a scoped stream token.
	s.router.HandleFunc("GET /api/v1/stream/file/{fileID}", s.streamAuthMiddleware(s.handleStreamFile))
	s.router.HandleFunc("HEAD /api/v1/stream/file/{fileID}", s.streamAuthMiddleware(s.handleStreamFile))
	s.router.HandleFunc("POST /api/v1/stream/sessions", s.authMiddleware(s.handleCreateSession, models.RoleUser))
	s.router.HandleFunc("GET /api/v1/stream/sessions/{id}/{filename}", s.streamAuthMiddleware(s.handleSessionFile))
	s.router.HandleFunc("POST /api/v1/stream/sessions/{id}/ping", s.streamAuthMiddleware(s.handlePingSession))
	s.router.HandleFunc("DELETE /api/v1/stream/sessions/{id}", s.streamAuthMiddleware(s.handleStopSession))
	s.router.HandleFunc("GET /api/v1/stream/subtitles/{token}", s.streamAuthMiddleware(s.handleStreamSubtitle))

	// Jobs
	s.router.HandleFunc("GET /api/v1/jobs", s.authMiddleware(s.handleListJobs, models.RoleUser))
	s.router.HandleFunc("GET /api/v1/jobs/{id}", s.authMiddleware(s.handleGetJob, models.RoleUser))
	s.router.HandleFunc("POST /api/v1/jobs/{id}/cancel", s.authMiddleware(s.handleCancelJob, models.RoleAdmin))

	// Events
	s.router.HandleFunc("GET /api/v1/events", s.handleSSE)
	s.router.HandleFunc("GET /api/v1/ws", s.handleWebSocket)

	// System (admin)
	s.router.HandleFunc("GET /api/v1/system/info", s.authMiddleware(s.handleSystemInfo, models.RoleUser))
	s.router.HandleFunc("GET /api/v1/system/hwaccel", s.authMiddleware(s.handleHWAccelInfo, models.RoleAdmin))
	s.router.HandleFunc("GET /api/v1/system/settings", s.authMiddleware(s.handleGetSettings, models.RoleAdmin))
	s.router.HandleFunc("PUT /api/v1/system/settings", s.authMiddleware(s.handlePutSettings, models.RoleAdmin))
}

// Handler returns the full middleware-wrapped handler chain.
func (s *Server) Handler() http.Handler {
	return s.securityHeadersMiddleware(s.metricsMiddleware(s.router))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ──────────────────── Middleware ────────────────────

// authMiddleware validates the bearer token and enforces the required role.
// The caller's identity is passed down via request headers, overwriting
// anything the client may have sent.
func (s *Server) authMiddleware(next http.HandlerFunc, requiredRole models.UserRole) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString := bearerToken(r)
		if tokenString == "" {
			httputil.WriteError(w, httputil.CodeUnauthorized, "missing authorization")
			return
		}

		claims, err := s.tokens.Validate(tokenString)
		if err != nil {
			httputil.WriteError(w, httputil.CodeUnauthorized, "invalid token")
			return
		}

		if requiredRole == models.RoleAdmin && claims.Role != string(models.RoleAdmin) {
			httputil.WriteError(w, httputil.CodeForbidden, "admin access required")
			return
		}

		r.Header.Set("X-User-ID", claims.Subject)
		r.Header.Set("X-User-Role", claims.Role)
		next(w, r)
	}
}

// streamAuthMiddleware accepts either a normal bearer token or a scoped
// stream token in the `st` query parameter. Raw bearer tokens in the query
// string are refused so full-power credentials never land in player URLs
// or access logs.
func (s *Server) streamAuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if tokenString := bearerToken(r); tokenString != "" {
			claims, err := s.tokens.Validate(tokenString)
			if err != nil {
				httputil.WriteError(w, httputil.CodeUnauthorized, "invalid token")
				return
			}
			r.Header.Set("X-User-ID", claims.Subject)
			r.Header.Set("X-User-Role", claims.Role)
			r.Header.Del("X-Stream-File")
			r.Header.Del("X-Stream-Session")
			next(w, r)
			return
		}

		if st := r.URL.Query().Get("st"); st != "" {
			claims, err := s.tokens.ValidateStream(st)
			if err != nil {
				httputil.WriteError(w, httputil.CodeUnauthorized, "invalid stream token")
				return
			}
			r.Header.Set("X-User-ID", claims.Subject)
			r.Header.Set("X-User-Role", claims.Role)
			r.Header.Set("X-Stream-File", claims.FileID)
			r.Header.Set("X-Stream-Session", claims.SessionID)
			next(w, r)
			return
		}

		if r.URL.Query().Get("token") != "" {
			httputil.WriteError(w, httputil.CodeUnauthorized,
				"bearer tokens are not accepted in the query string; request a stream token")
			return
		}

		httputil.WriteError(w, httputil.CodeUnauthorized, "missing authorization")
	}
}

func (s *Server) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush and Hijack pass through so SSE and websocket upgrades keep working
// behind the metrics wrapper.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := r.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacking not supported")
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.HTTPRequests.WithLabelValues(r.Method, statusClass(rec.status)).Inc()
	})
}

func statusClass(status int) string {
	switch {
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// ──────────────────── Helpers ────────────────────

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	return strings.TrimPrefix(h, "Bearer ")
}

func (s *Server) getUserID(r *http.Request) uuid.UUID {
	id, _ := uuid.Parse(r.Header.Get("X-User-ID"))
	return id
}

func (s *Server) getUserRole(r *http.Request) models.UserRole {
	return models.UserRole(r.Header.Get("X-User-Role"))
}

func pathUUID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	return id, err == nil
}
