package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Iwan-Teague/Rustyfin/internal/httputil"
	"github.com/Iwan-Teague/Rustyfin/internal/metrics"
)

const sseKeepAlive = 15 * time.Second

// handleSSE streams hub events as server-sent events. Auth happens here
// rather than in middleware because EventSource cannot set headers; a
// scoped stream token or a bearer token both work.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeEventStream(r) {
		httputil.WriteError(w, httputil.CodeUnauthorized, "missing or invalid authorization")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, httputil.CodeInternal, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(ch)
	metrics.EventSubscribers.Inc()
	defer metrics.EventSubscribers.Dec()

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case event, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, event.JSON())
			flusher.Flush()
		}
	}
}

func (s *Server) authorizeEventStream(r *http.Request) bool {
	if token := bearerToken(r); token != "" {
		_, err := s.tokens.Validate(token)
		return err == nil
	}
	if st := r.URL.Query().Get("st"); st != "" {
		_, err := s.tokens.ValidateStream(st)
		return err == nil
	}
	return false
}
