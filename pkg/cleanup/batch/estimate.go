package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mercator-hq/janitor/pkg/cleanup"
)

// Estimate returns an approximate count of rows eligible under cutoff.
//
// On SQLite it counts at most EstimateCap rows, so the result saturates at
// the cap. On Postgres it reads the planner's row estimate from
// EXPLAIN (FORMAT JSON) and never touches the table.
func (d *Deleter) Estimate(ctx context.Context, cutoff *time.Time) (int64, error) {
	if d.dialect == DialectPostgres {
		return d.explainRows(ctx, cutoff)
	}
	return d.boundedCount(ctx, cutoff)
}

func (d *Deleter) boundedCount(ctx context.Context, cutoff *time.Time) (int64, error) {
	limit := d.EstimateCap
	if limit <= 0 {
		limit = DefaultEstimateCap
	}

	var (
		query string
		args  []any
	)
	if cutoff != nil {
		query = fmt.Sprintf("SELECT COUNT(*) FROM (SELECT 1 FROM %s WHERE %s < ? LIMIT ?)",
			quote(d.target.Table), quote(d.target.TimestampColumn))
		args = []any{d.target.bindTime(*cutoff), limit}
	} else {
		query = fmt.Sprintf("SELECT COUNT(*) FROM (SELECT 1 FROM %s LIMIT ?)", quote(d.target.Table))
		args = []any{limit}
	}

	var n int64
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, cleanup.NewTransientStorageError("estimate", err)
	}
	return n, nil
}

type explainPlan struct {
	Plan struct {
		PlanRows float64 `json:"Plan Rows"`
	} `json:"Plan"`
}

func (d *Deleter) explainRows(ctx context.Context, cutoff *time.Time) (int64, error) {
	var (
		query string
		args  []any
	)
	if cutoff != nil {
		query = fmt.Sprintf("EXPLAIN (FORMAT JSON) SELECT 1 FROM %s WHERE %s < $1",
			quote(d.target.Table), quote(d.target.TimestampColumn))
		args = []any{d.target.bindTime(*cutoff)}
	} else {
		query = fmt.Sprintf("EXPLAIN (FORMAT JSON) SELECT 1 FROM %s", quote(d.target.Table))
	}

	var raw []byte
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&raw); err != nil {
		return 0, cleanup.NewTransientStorageError("estimate", err)
	}
	return parseExplain(raw)
}

// parseExplain extracts the top-level "Plan Rows" from EXPLAIN JSON output.
func parseExplain(raw []byte) (int64, error) {
	var plans []explainPlan
	if err := json.Unmarshal(raw, &plans); err != nil {
		return 0, cleanup.NewTransientStorageError("estimate", fmt.Errorf("decode explain output: %w", err))
	}
	if len(plans) == 0 {
		return 0, cleanup.NewTransientStorageError("estimate", errors.New("empty explain output"))
	}
	return int64(plans[0].Plan.PlanRows), nil
}
