// Package metrics exposes janitor metrics in the Prometheus format.
//
// Metrics (with the default janitor_cleanup prefix):
//
//   - ticks_total{category,outcome}: ticks by outcome
//   - rows_deleted_total{category}: items deleted by successful ticks
//   - tick_duration_seconds{category}: handler latency
//   - run_transitions_total{category,status}: status changes
//   - scan_estimate{category}: last estimate returned by scan
//   - rpc_requests_total{action,code}: RPC calls by action and HTTP status
//
// Every Record method is a no-op when metrics are disabled.
package metrics
