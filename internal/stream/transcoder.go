package stream

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/Iwan-Teague/Rustyfin/internal/ffmpeg"
	"github.com/google/uuid"
)

// ErrMaxTranscodes matches any admission refusal under errors.Is.
var ErrMaxTranscodes = errors.New("maximum concurrent transcodes reached")

// MaxTranscodesError reports an admission refusal along with the configured
// session limit.
type MaxTranscodesError struct {
	Limit int
}

func (e *MaxTranscodesError) Error() string {
	return fmt.Sprintf("maximum concurrent transcodes reached (limit %d)", e.Limit)
}

func (e *MaxTranscodesError) Is(target error) bool { return target == ErrMaxTranscodes }

const MasterPlaylistName = "master.m3u8"

// TranscoderConfig carries the knobs for the HLS session manager.
type TranscoderConfig struct {
	FFmpegPath    string
	TranscodeRoot string
	HWAccel       ffmpeg.HWAccelType
	MaxConcurrent int
	SegmentSecs   int
	IdleTimeout   time.Duration
}

// Transcoder manages live HLS transcode sessions. All session bookkeeping
// happens under one mutex. Admission reserves the slot in the same critical
// section that checks the cap, so the limit cannot be raced past, while the
// directory setup and process launch run outside the lock.
type Transcoder struct {
	cfg TranscoderConfig

	mu       sync.Mutex
	sessions map[string]*Session
}

type Session struct {
	ID        string
	InputPath string
	OutputDir string
	StartedAt time.Time

	cmd      *exec.Cmd
	lastPing time.Time
}

func NewTranscoder(cfg TranscoderConfig) *Transcoder {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.SegmentSecs <= 0 {
		cfg.SegmentSecs = 4
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	return &Transcoder{
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new ffmpeg HLS session for the input file. startSecs seeks
// before decode; codecOverride forces a specific video encoder (empty picks
// hardware when available, libx264 otherwise).
func (t *Transcoder) Create(inputPath string, startSecs float64, codecOverride string) (*Session, error) {
	id := uuid.New().String()
	outputDir := filepath.Join(t.cfg.TranscodeRoot, id)
	now := time.Now()
	session := &Session{
		ID:        id,
		InputPath: inputPath,
		OutputDir: outputDir,
		StartedAt: now,
		lastPing:  now,
	}

	// Admission happens before any disk or process work: either the slot is
	// reserved here or the request is refused with nothing to undo.
	t.mu.Lock()
	if len(t.sessions) >= t.cfg.MaxConcurrent {
		t.mu.Unlock()
		return nil, &MaxTranscodesError{Limit: t.cfg.MaxConcurrent}
	}
	t.sessions[id] = session
	t.mu.Unlock()

	release := func() {
		t.mu.Lock()
		delete(t.sessions, id)
		t.mu.Unlock()
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		release()
		return nil, fmt.Errorf("create transcode dir: %w", err)
	}

	cmd := exec.Command(t.cfg.FFmpegPath, t.buildArgs(inputPath, outputDir, startSecs, codecOverride)...)
	logFile, err := os.Create(filepath.Join(outputDir, "ffmpeg.log"))
	if err != nil {
		release()
		os.RemoveAll(outputDir)
		return nil, fmt.Errorf("create ffmpeg log: %w", err)
	}
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		release()
		logFile.Close()
		os.RemoveAll(outputDir)
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	t.mu.Lock()
	if _, ok := t.sessions[id]; !ok {
		// StopAll raced the launch; the reservation is gone, so kill the
		// orphan rather than leak it.
		t.mu.Unlock()
		cmd.Process.Kill()
		cmd.Wait()
		logFile.Close()
		os.RemoveAll(outputDir)
		return nil, errors.New("transcoder shutting down")
	}
	session.cmd = cmd
	t.mu.Unlock()

	go func() {
		cmd.Wait()
		logFile.Close()
	}()

	log.Printf("Transcode: session %s started for %s (seek %.1fs)", id, inputPath, startSecs)
	return session, nil
}

func (t *Transcoder) buildArgs(inputPath, outputDir string, startSecs float64, codecOverride string) []string {
	args := []string{"-hide_banner", "-y"}

	switch t.cfg.HWAccel {
	case ffmpeg.HWAccelNVENC:
		args = append(args, "-hwaccel", "cuda")
	case ffmpeg.HWAccelVAAPI:
		args = append(args, "-hwaccel", "vaapi",
			"-hwaccel_output_format", "vaapi",
			"-vaapi_device", "/dev/dri/renderD128")
	case ffmpeg.HWAccelQSV:
		args = append(args, "-hwaccel", "qsv")
	case ffmpeg.HWAccelVideoToolbox:
		args = append(args, "-hwaccel", "videotoolbox")
	}

	if startSecs > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.3f", startSecs))
	}
	args = append(args, "-i", inputPath)

	videoCodec := codecOverride
	if videoCodec == "" {
		videoCodec = t.cfg.HWAccel.H264Encoder()
	}
	args = append(args, "-c:v", videoCodec)
	if videoCodec == "libx264" {
		args = append(args, "-preset", "veryfast", "-crf", "23")
	}

	args = append(args, "-c:a", "aac", "-b:a", "128k")

	args = append(args,
		"-f", "hls",
		"-hls_time", fmt.Sprintf("%d", t.cfg.SegmentSecs),
		"-hls_playlist_type", "event",
		"-hls_segment_filename", filepath.Join(outputDir, "seg_%05d.ts"),
		"-hls_flags", "independent_segments",
		filepath.Join(outputDir, MasterPlaylistName),
	)
	return args
}

// Get returns the session if it exists.
func (t *Transcoder) Get(id string) (*Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[id]
	return s, ok
}

// Ping marks the session as still watched, deferring idle cleanup.
func (t *Transcoder) Ping(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[id]
	if !ok {
		return false
	}
	s.lastPing = time.Now()
	return true
}

// GetFilePath resolves a playlist or segment file inside the session dir.
func (t *Transcoder) GetFilePath(id, filename string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[id]
	if !ok {
		return "", false
	}
	return filepath.Join(s.OutputDir, filename), true
}

// Stop removes the session, kills the encoder and deletes its output.
// The kill and delete happen outside the lock.
func (t *Transcoder) Stop(id string) bool {
	t.mu.Lock()
	s, ok := t.sessions[id]
	if ok {
		delete(t.sessions, id)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}

	t.teardown(s)
	log.Printf("Transcode: session %s stopped", id)
	return true
}

// StopAll terminates every active session; used on shutdown.
func (t *Transcoder) StopAll() {
	t.mu.Lock()
	sessions := make([]*Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		sessions = append(sessions, s)
	}
	t.sessions = make(map[string]*Session)
	t.mu.Unlock()

	for _, s := range sessions {
		t.teardown(s)
	}
}

// CleanupIdle reaps sessions that have not been pinged within the idle
// timeout. Returns the number of sessions removed.
func (t *Transcoder) CleanupIdle() int {
	cutoff := time.Now().Add(-t.cfg.IdleTimeout)

	t.mu.Lock()
	var idle []*Session
	for id, s := range t.sessions {
		if s.lastPing.Before(cutoff) {
			idle = append(idle, s)
			delete(t.sessions, id)
		}
	}
	t.mu.Unlock()

	for _, s := range idle {
		log.Printf("Transcode: reaping idle session %s", s.ID)
		t.teardown(s)
	}
	return len(idle)
}

// ActiveCount returns the number of live sessions.
func (t *Transcoder) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// RunCleanupLoop reaps idle sessions every 20 seconds until stop is closed.
func (t *Transcoder) RunCleanupLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.CleanupIdle()
		case <-stop:
			return
		}
	}
}

func (t *Transcoder) teardown(s *Session) {
	if s.cmd != nil && s.cmd.Process != nil {
		s.cmd.Process.Kill()
		s.cmd.Wait()
	}
	if err := os.RemoveAll(s.OutputDir); err != nil {
		log.Printf("Transcode: failed to remove %s: %v", s.OutputDir, err)
	}
}
