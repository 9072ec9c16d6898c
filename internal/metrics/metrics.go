package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry-backed gauges and counters for the /metrics endpoint.
var (
	ActiveTranscodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rustyfin_active_transcode_sessions",
		Help: "Number of live HLS transcode sessions.",
	})

	TranscodesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rustyfin_transcode_sessions_started_total",
		Help: "Transcode sessions started since boot.",
	})

	TranscodesRefused = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rustyfin_transcode_sessions_refused_total",
		Help: "Transcode session requests refused at the concurrency cap.",
	})

	ScansCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rustyfin_library_scans_total",
		Help: "Library scans by outcome.",
	}, []string{"outcome"})

	ItemsScanned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rustyfin_scan_items_added_total",
		Help: "Items added to libraries by scans.",
	})

	StreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rustyfin_stream_requests_total",
		Help: "Media stream requests by kind (direct, hls, subtitle).",
	}, []string{"kind"})

	EventSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rustyfin_event_subscribers",
		Help: "Connected SSE and websocket event subscribers.",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rustyfin_http_requests_total",
		Help: "HTTP requests by method and status class.",
	}, []string{"method", "class"})
)
