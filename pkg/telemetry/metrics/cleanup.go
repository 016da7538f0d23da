package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/janitor/pkg/config"
)

// CleanupMetrics tracks run controller activity.
type CleanupMetrics struct {
	ticksTotal   *prometheus.CounterVec
	rowsDeleted  *prometheus.CounterVec
	tickDuration *prometheus.HistogramVec
	transitions  *prometheus.CounterVec
	scanEstimate *prometheus.GaugeVec
}

// NewCleanupMetrics creates and registers the run controller metrics.
func NewCleanupMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *CleanupMetrics {
	m := &CleanupMetrics{
		ticksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "ticks_total",
				Help:      "Total number of ticks by outcome",
			},
			[]string{"category", "outcome"},
		),

		rowsDeleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rows_deleted_total",
				Help:      "Total number of rows or objects deleted",
			},
			[]string{"category"},
		),

		tickDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "tick_duration_seconds",
				Help:      "Duration of handler calls in seconds",
				Buckets:   cfg.TickDurationBuckets,
			},
			[]string{"category"},
		),

		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "run_transitions_total",
				Help:      "Total number of run status transitions",
			},
			[]string{"category", "status"},
		),

		scanEstimate: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "scan_estimate",
				Help:      "Most recent approximate count of eligible items (-1 = unknown)",
			},
			[]string{"category"},
		),
	}

	registry.MustRegister(
		m.ticksTotal,
		m.rowsDeleted,
		m.tickDuration,
		m.transitions,
		m.scanEstimate,
	)

	return m
}

// RPCMetrics tracks calls to the cleanup endpoint.
type RPCMetrics struct {
	requests *prometheus.CounterVec
}

// NewRPCMetrics creates and registers the RPC metrics.
func NewRPCMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RPCMetrics {
	m := &RPCMetrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rpc_requests_total",
				Help:      "Total number of cleanup RPC calls by action and status class",
			},
			[]string{"action", "code"},
		),
	}
	registry.MustRegister(m.requests)
	return m
}
