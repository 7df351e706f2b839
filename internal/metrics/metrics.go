package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Channel metrics
	ConnectAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cab_sync_connect_attempts_total",
			Help: "Total channel connect attempts",
		},
	)

	Reconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cab_sync_reconnects_total",
			Help: "Total scheduled reconnect attempts after unclean closes",
		},
	)

	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cab_sync_events_ingested_total",
			Help: "Total channel events ingested",
		},
		[]string{"kind"},
	)

	EchoesSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cab_sync_echoes_suppressed_total",
			Help: "Total self-originated echoes dropped by the dispatcher",
		},
	)

	// Mutation metrics
	Mutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cab_sync_mutations_total",
			Help: "Total mutation protocol operations",
		},
		[]string{"op", "outcome"}, // outcome: "ok" or "error"
	)

	Rollbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cab_sync_rollbacks_total",
			Help: "Total optimistic entries rolled back after failed sends",
		},
	)

	Refetches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cab_sync_refetches_total",
			Help: "Total full-log refetches (recovery path)",
		},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cab_sync_api_request_duration_seconds",
			Help:    "Backend REST request duration",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"op"},
	)

	// Status server metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cab_sync_http_requests_total",
			Help: "Total status server HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
)
