package handlers

import (
	"context"
	"encoding/json"
	"time"
)

// Request is the input to one handler call.
type Request struct {
	// Checkpoint is whatever the handler returned last time, or nil.
	Checkpoint json.RawMessage

	// BatchSize bounds how many items the call may delete.
	BatchSize int

	// Cutoff, when set, restricts deletion to items strictly older than it.
	Cutoff *time.Time
}

// Result is the output of one handler call.
type Result struct {
	Deleted    int
	HasMore    bool
	Checkpoint json.RawMessage
}

// Handler deletes one bounded batch for a category.
type Handler interface {
	Handle(ctx context.Context, req Request) (Result, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, req Request) (Result, error)

// Handle calls f(ctx, req).
func (f HandlerFunc) Handle(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

// Estimator returns an approximate count of eligible items.
type Estimator interface {
	Estimate(ctx context.Context, cutoff *time.Time) (int64, error)
}

// EstimatorFunc adapts a function to the Estimator interface.
type EstimatorFunc func(ctx context.Context, cutoff *time.Time) (int64, error)

// Estimate calls f(ctx, cutoff).
func (f EstimatorFunc) Estimate(ctx context.Context, cutoff *time.Time) (int64, error) {
	return f(ctx, cutoff)
}

// Binding pairs a handler with an optional estimator.
type Binding struct {
	Handler   Handler
	Estimator Estimator
}

// hasMore is the full-batch heuristic every built-in handler reports.
func hasMore(deleted, batchSize int) bool {
	return batchSize > 0 && deleted == batchSize
}
