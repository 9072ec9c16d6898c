package api

import (
	"net/http"

	"github.com/Iwan-Teague/Rustyfin/internal/ffmpeg"
	"github.com/Iwan-Teague/Rustyfin/internal/httputil"
	"github.com/Iwan-Teague/Rustyfin/internal/version"
)

func (s *Server) handleSystemInfo(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"name":              "Rustyfin",
		"version":           version.Load().Version,
		"active_transcodes": s.transcoder.ActiveCount(),
		"event_subscribers": s.hub.SubscriberCount(),
	})
}

// handleHWAccelInfo reports detected hardware encoders and the one in use.
func (s *Server) handleHWAccelInfo(w http.ResponseWriter, r *http.Request) {
	detected := ffmpeg.DetectHWAccels(s.config.FFmpegPath)
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"configured": s.config.HWAccelType,
		"detected":   detected,
		"selected":   ffmpeg.ResolveHWAccel(s.config.HWAccelType, s.config.FFmpegPath),
	})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	all, err := s.settingsRepo.All()
	if err != nil {
		httputil.WriteError(w, httputil.CodeInternal, "failed to load settings")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, all)
}

// settableKeys are the persisted settings the API accepts. Changes take
// effect on the next process start (the transcoder and scheduler read
// config at boot).
var settableKeys = map[string]bool{
	"hw_accel_type":               true,
	"max_transcodes":              true,
	"transcode_idle_timeout_secs": true,
	"scan_cron":                   true,
	"tmdb_api_key":                true,
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, httputil.CodeBadRequest, "invalid request body")
		return
	}

	for key := range req {
		if !settableKeys[key] {
			httputil.WriteErrorDetails(w, httputil.CodeValidationFailed,
				"unknown setting", map[string]any{"key": key})
			return
		}
	}
	for key, value := range req {
		if err := s.settingsRepo.Set(key, value); err != nil {
			httputil.WriteError(w, httputil.CodeInternal, "failed to save settings")
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"updated": true})
}
