package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Chat-API Metrics
var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "moopoint",
			Subsystem: "chat_api",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "moopoint",
			Subsystem: "chat_api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"method", "endpoint"},
	)

	// Completion turn counters
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "moopoint",
			Subsystem: "chat_api",
			Name:      "turns_total",
			Help:      "Total completion turns by provider and outcome",
		},
		[]string{"provider", "status"},
	)

	// Streamed event counter
	StreamEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "moopoint",
			Subsystem: "chat_api",
			Name:      "stream_events_total",
			Help:      "Total SSE events sent to clients",
		},
		[]string{"event"},
	)

	// Tool call counters
	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "moopoint",
			Subsystem: "chat_api",
			Name:      "tool_calls_total",
			Help:      "Total remote tool invocations by outcome",
		},
		[]string{"status"},
	)

	// Tool duration histogram
	ToolDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "moopoint",
			Subsystem: "chat_api",
			Name:      "tool_duration_seconds",
			Help:      "Remote tool invocation duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	// Catalog refresh counter
	CatalogRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "moopoint",
			Subsystem: "chat_api",
			Name:      "catalog_refresh_total",
			Help:      "Total tool catalog refreshes",
		},
		[]string{"origin", "status"},
	)
)
