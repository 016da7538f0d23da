// Package telemetry groups the observability layers of the janitor.
//
//   - logging: slog construction and request, run and category context attrs
//   - metrics: Prometheus counters and histograms for ticks, rows and RPCs
//   - tracing: OpenTelemetry spans around ticks and RPC handling
//   - health: liveness, readiness and version endpoints
//
// Each layer is configured from config.TelemetryConfig. Tracing returns a
// no-op tracer when disabled.
package telemetry
