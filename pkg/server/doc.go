// Package server exposes the cleanup engine over HTTP.
//
// # Routes
//
//   - POST /api/cleanup - RPC endpoint dispatching on the "action" field
//   - GET /health - Liveness probe
//   - GET /ready - Readiness probe (engine storage, target database, Redis)
//   - GET /version - Build information
//   - GET /metrics - Prometheus metrics
//
// Paths come from configuration; the ones above are the defaults.
//
// # RPC
//
// Every request is a JSON object with an action and its arguments:
//
//	{"action": "start", "itemId": "messages"}
//	{"action": "tick", "runId": "...", "batchSize": 500, "cutoffDate": "2024-01-01"}
//
// Every response carries a success boolean. Failures add an error message
// and use the HTTP status of the error class:
//
//	400 validation error (missing itemId or runId, bad cutoffDate)
//	404 unknown run or category
//	409 start against a category with an active run (runId names it)
//	422 category key without a handler (the run is now error-terminal)
//	500 anything else
//
// A tick whose handler failed transiently is still a success: the response
// carries lastError and retryAfter and the run stays running.
//
// # Graceful Shutdown
//
// Start blocks until the context is cancelled, SIGINT or SIGTERM arrives, or
// Shutdown is called. In-flight requests get ShutdownTimeout to finish.
package server
