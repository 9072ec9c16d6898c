package config

import (
	"database/sql"
	"log"
	"os"
	"path/filepath"
	"strconv"
)

type Config struct {
	Host         string
	Port         int
	DatabasePath string
	JWTSecret    string
	DataDir      string
	CacheDir     string
	TranscodeDir string
	RedisAddr    string

	FFmpegPath  string
	FFprobePath string
	HWAccelType string

	MaxTranscodes   int
	SegmentSecs     int
	IdleTimeoutSecs int

	ScanCronSpec string
}

func Load() *Config {
	dataDir := env("DATA_DIR", "/var/lib/rustyfin")
	return &Config{
		Host:         env("HOST", "0.0.0.0"),
		Port:         envInt("PORT", 8096),
		DatabasePath: env("DATABASE_PATH", filepath.Join(dataDir, "rustyfin.db")),
		JWTSecret:    env("JWT_SECRET", ""),
		DataDir:      dataDir,
		CacheDir:     env("CACHE_DIR", filepath.Join(dataDir, "cache")),
		TranscodeDir: env("TRANSCODE_DIR", "/tmp/rustyfin_transcode"),
		RedisAddr:    env("REDIS_ADDR", "localhost:6379"),

		FFmpegPath:  env("FFMPEG_PATH", "ffmpeg"),
		FFprobePath: env("FFPROBE_PATH", "ffprobe"),
		HWAccelType: env("HW_ACCEL_TYPE", "auto"),

		MaxTranscodes:   envInt("MAX_TRANSCODES", 4),
		SegmentSecs:     envInt("HLS_SEGMENT_SECS", 4),
		IdleTimeoutSecs: envInt("TRANSCODE_IDLE_TIMEOUT_SECS", 60),

		ScanCronSpec: env("SCAN_CRON", ""),
	}
}

// MergeFromDB overlays persisted settings on top of the env-derived config.
// Missing keys keep their defaults.
func (c *Config) MergeFromDB(db *sql.DB) {
	rows, err := db.Query("SELECT key, value FROM settings")
	if err != nil {
		log.Printf("config: skipping DB merge: %v", err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			continue
		}
		switch key {
		case "hw_accel_type":
			c.HWAccelType = value
		case "max_transcodes":
			if v, err := strconv.Atoi(value); err == nil {
				c.MaxTranscodes = v
			}
		case "transcode_idle_timeout_secs":
			if v, err := strconv.Atoi(value); err == nil {
				c.IdleTimeoutSecs = v
			}
		case "scan_cron":
			c.ScanCronSpec = value
		}
	}
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
