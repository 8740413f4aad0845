package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics
var (
	// EventsReceived tracks inbound platform events by kind.
	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_events_received_total",
			Help: "Inbound platform events by kind",
		},
		[]string{"kind"},
	)

	// GateDecisions tracks gate outcomes by event kind and result
	// (accepted, disabled, deduplicated, filtered).
	GateDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_decisions_total",
			Help: "Event gate outcomes by kind and result",
		},
		[]string{"kind", "result"},
	)

	// QueueDepth tracks the current number of queued response requests.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "response_queue_depth",
			Help: "Queued response requests across all sessions",
		},
	)

	// GenerationDuration tracks end-to-end generation pipeline latency.
	GenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "generation_duration_seconds",
			Help:    "Generation pipeline duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20},
		},
	)

	// GenerationFailures tracks masked generation failures by stage
	// (completion, speech).
	GenerationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_failures_total",
			Help: "Masked generation failures by stage",
		},
		[]string{"stage"},
	)
)

// Session metrics
var (
	// ActiveSessions tracks currently registered client sessions.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Currently registered client sessions",
		},
	)

	// AdmissionRejections tracks rejected session admissions by reason.
	AdmissionRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admission_rejections_total",
			Help: "Rejected session admissions by reason",
		},
		[]string{"reason"},
	)

	// ReconnectAttempts tracks upstream reconnect attempts.
	ReconnectAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upstream_reconnect_attempts_total",
			Help: "Upstream reconnect attempts",
		},
	)

	// UpstreamDisconnects tracks terminal upstream disconnects by reason
	// (initial_failure, exhausted, stream_ended, client).
	UpstreamDisconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_disconnects_total",
			Help: "Terminal upstream disconnects by reason",
		},
		[]string{"reason"},
	)
)
