package handlers

import (
	"context"
	"time"

	"mercator-hq/janitor/pkg/cleanup/batch"
)

// SQLTable purges rows from one application table.
type SQLTable struct {
	deleter *batch.Deleter
}

// NewSQLTable wraps a batch deleter as a handler and estimator.
func NewSQLTable(d *batch.Deleter) *SQLTable {
	return &SQLTable{deleter: d}
}

// Handle deletes one batch. It keeps no checkpoint.
func (s *SQLTable) Handle(ctx context.Context, req Request) (Result, error) {
	n, err := s.deleter.Delete(ctx, req.BatchSize, req.Cutoff)
	if err != nil {
		return Result{}, err
	}
	return Result{Deleted: n, HasMore: hasMore(n, req.BatchSize)}, nil
}

// Estimate delegates to the deleter's estimate.
func (s *SQLTable) Estimate(ctx context.Context, cutoff *time.Time) (int64, error) {
	return s.deleter.Estimate(ctx, cutoff)
}

// Binding returns s as both handler and estimator.
func (s *SQLTable) Binding() Binding {
	return Binding{Handler: s, Estimator: s}
}
