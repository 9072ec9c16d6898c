package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Iwan-Teague/Rustyfin/internal/api"
	"github.com/Iwan-Teague/Rustyfin/internal/auth"
	"github.com/Iwan-Teague/Rustyfin/internal/config"
	"github.com/Iwan-Teague/Rustyfin/internal/db"
	"github.com/Iwan-Teague/Rustyfin/internal/events"
	"github.com/Iwan-Teague/Rustyfin/internal/ffmpeg"
	"github.com/Iwan-Teague/Rustyfin/internal/jobs"
	"github.com/Iwan-Teague/Rustyfin/internal/metadata"
	"github.com/Iwan-Teague/Rustyfin/internal/models"
	"github.com/Iwan-Teague/Rustyfin/internal/repository"
	"github.com/Iwan-Teague/Rustyfin/internal/scanner"
	"github.com/Iwan-Teague/Rustyfin/internal/scheduler"
	"github.com/Iwan-Teague/Rustyfin/internal/stream"
	"github.com/Iwan-Teague/Rustyfin/internal/version"
	"github.com/Iwan-Teague/Rustyfin/internal/watcher"
	"github.com/google/uuid"
)

func main() {
	ver := version.Load()
	log.Printf("Rustyfin %s starting...", ver.Version)

	cfg := config.Load()

	database, err := db.Connect(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	cfg.MergeFromDB(database.DB)

	if cfg.JWTSecret == "" {
		// Random per-process secret: fine for a single node, but sessions
		// do not survive restarts. Set JWT_SECRET to keep them.
		cfg.JWTSecret = randomSecret()
		log.Println("JWT_SECRET not set; using a random per-process secret")
	}

	userRepo := repository.NewUserRepository(database.DB)
	libRepo := repository.NewLibraryRepository(database.DB)
	itemRepo := repository.NewItemRepository(database.DB)
	fileRepo := repository.NewMediaFileRepository(database.DB)
	jobRepo := repository.NewJobRepository(database.DB)
	episodeRepo := repository.NewEpisodeRepository(database.DB)
	settingsRepo := repository.NewSettingsRepository(database.DB)

	bootstrapAdmin(userRepo)

	hub := events.NewHub()
	stop := make(chan struct{})
	go hub.RunHeartbeat(30*time.Second, stop)

	hwAccel := ffmpeg.ResolveHWAccel(cfg.HWAccelType, cfg.FFmpegPath)
	log.Printf("hardware acceleration: %s", hwAccel)

	transcoder := stream.NewTranscoder(stream.TranscoderConfig{
		FFmpegPath:    cfg.FFmpegPath,
		TranscodeRoot: cfg.TranscodeDir,
		HWAccel:       hwAccel,
		MaxConcurrent: cfg.MaxTranscodes,
		SegmentSecs:   cfg.SegmentSecs,
		IdleTimeout:   time.Duration(cfg.IdleTimeoutSecs) * time.Second,
	})
	go transcoder.RunCleanupLoop(stop)

	var providers []metadata.Provider
	if key, _ := settingsRepo.Get("tmdb_api_key"); key != "" {
		providers = append(providers, metadata.NewTMDBProvider(key))
	} else if key := os.Getenv("TMDB_API_KEY"); key != "" {
		providers = append(providers, metadata.NewTMDBProvider(key))
	}
	manager := metadata.NewManager(providers, itemRepo, episodeRepo)

	sc := scanner.NewScanner(libRepo, itemRepo, fileRepo)

	queue := jobs.NewQueue(cfg.RedisAddr)
	jobs.RegisterHandlers(queue, sc, libRepo, jobRepo, manager, hub)
	if err := queue.Start(); err != nil {
		log.Fatalf("job queue failed to start: %v", err)
	}
	defer queue.Stop()

	enqueueScan := func(libraryID uuid.UUID) {
		payload := jobs.ScanPayload{LibraryID: libraryID.String()}
		raw, _ := json.Marshal(payload)
		payloadStr := string(raw)
		job, err := jobRepo.Create("scan:library", &payloadStr)
		if err != nil {
			log.Printf("error creating scan job for %s: %v", libraryID, err)
			return
		}
		payload.JobID = job.ID.String()
		if _, err := queue.EnqueueUnique(jobs.TaskScanLibrary, payload, "scan:"+libraryID.String()); err != nil {
			log.Printf("error enqueueing scan for %s: %v", libraryID, err)
		}
	}

	sched := scheduler.New(libRepo, enqueueScan)
	if err := sched.Start(cfg.ScanCronSpec); err != nil {
		log.Fatalf("scheduler failed to start: %v", err)
	}
	defer sched.Stop()

	fw, err := watcher.New(libRepo, enqueueScan)
	if err != nil {
		log.Printf("filesystem watcher unavailable: %v", err)
	} else {
		fw.Start()
		defer fw.Stop()
	}

	srv := api.NewServer(cfg, database.DB, queue, transcoder, hub, manager)
	if fw != nil {
		srv.OnLibrariesChanged = fw.Refresh
	}

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	close(stop)
	transcoder.StopAll()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpServer.Shutdown(ctx)
}

// bootstrapAdmin creates the default admin account on an empty user table.
func bootstrapAdmin(userRepo *repository.UserRepository) {
	count, err := userRepo.Count()
	if err != nil {
		log.Printf("error counting users: %v", err)
		return
	}
	if count > 0 {
		return
	}

	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "admin"
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Printf("error hashing bootstrap password: %v", err)
		return
	}
	if _, err := userRepo.Create("admin", hash, models.RoleAdmin); err != nil {
		log.Printf("error creating bootstrap admin: %v", err)
		return
	}
	log.Println("created default admin user (change the password immediately)")
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		log.Fatalf("error generating JWT secret: %v", err)
	}
	return hex.EncodeToString(buf)
}
