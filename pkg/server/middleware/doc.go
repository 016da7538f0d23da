// Package middleware provides the HTTP middleware wrapped around the cleanup
// RPC endpoint.
//
// # Middleware Chain
//
//	handler = Recovery(Logging(RequestID(Tracing(Timeout(handler)))))
//
// Order (innermost to outermost):
//  1. Timeout: bound each request with a context deadline
//  2. Tracing: extract W3C trace context from incoming headers
//  3. RequestID: generate or propagate X-Request-ID
//  4. Logging: log method, path, status and latency
//  5. Recovery: turn panics into a JSON 500
//
// Auth is applied to the RPC route only so probes and metrics stay open.
//
// # Request ID
//
// RequestID stores the ID with logging.WithRequestID, so every log line
// written with the request context carries request_id:
//
//	X-Request-ID: 550e8400-e29b-41d4-a716-446655440000
package middleware
