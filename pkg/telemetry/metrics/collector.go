package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/janitor/pkg/config"
)

// Collector owns the janitor metrics and the registry they live in.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	cleanup *CleanupMetrics
	rpc     *RPCMetrics
}

// NewCollector creates the collector. A nil registry gets a fresh one.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.TickDurationBuckets) == 0 {
		cfg.TickDurationBuckets = append([]float64(nil), config.DefaultTickDurationBuckets...)
	}

	return &Collector{
		config:   cfg,
		registry: registry,
		cleanup:  NewCleanupMetrics(cfg, registry),
		rpc:      NewRPCMetrics(cfg, registry),
	}
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordTick records one tick's outcome, deletions and handler latency.
func (c *Collector) RecordTick(category, outcome string, deleted int, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.cleanup.ticksTotal.WithLabelValues(category, outcome).Inc()
	if deleted > 0 {
		c.cleanup.rowsDeleted.WithLabelValues(category).Add(float64(deleted))
	}
	if duration > 0 {
		c.cleanup.tickDuration.WithLabelValues(category).Observe(duration.Seconds())
	}
}

// RecordTransition records a run moving to status.
func (c *Collector) RecordTransition(category, status string) {
	if !c.config.Enabled {
		return
	}
	c.cleanup.transitions.WithLabelValues(category, status).Inc()
}

// RecordEstimate records the latest scan estimate for category.
func (c *Collector) RecordEstimate(category string, estimate int64) {
	if !c.config.Enabled {
		return
	}
	c.cleanup.scanEstimate.WithLabelValues(category).Set(float64(estimate))
}

// RecordRPC records one RPC call.
func (c *Collector) RecordRPC(action string, code int) {
	if !c.config.Enabled {
		return
	}
	c.rpc.requests.WithLabelValues(action, statusLabel(code)).Inc()
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
