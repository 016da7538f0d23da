package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"mercator-hq/janitor/pkg/cleanup"
)

// sqlStore is the query layer shared by the SQLite and Postgres backends.
type sqlStore struct {
	db      *sql.DB
	backend string

	// postgres switches ? placeholders to $n.
	postgres bool

	// isUniqueViolation reports whether err came from a unique constraint.
	isUniqueViolation func(err error) bool

	logger *slog.Logger
}

// rebind rewrites ? placeholders for the active dialect.
func (s *sqlStore) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// migrate creates the schema and verifies its version.
func (s *sqlStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return cleanup.NewStorageError(s.backend, "create_schema", err)
	}
	s.logger.Debug("database schema created")

	if _, err := s.db.ExecContext(ctx, s.rebind(InsertSchemaVersion), SchemaVersion, time.Now().UnixMilli()); err != nil {
		return cleanup.NewStorageError(s.backend, "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRowContext(ctx, GetSchemaVersion).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return cleanup.NewStorageError(s.backend, "get_schema_version", err)
	}
	if version != SchemaVersion {
		return cleanup.NewStorageError(s.backend, "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}
	return nil
}

// ListCategories returns all categories ordered by ID.
func (s *sqlStore) ListCategories(ctx context.Context) ([]cleanup.Category, error) {
	rows, err := s.db.QueryContext(ctx, queryListCategories)
	if err != nil {
		return nil, cleanup.NewStorageError(s.backend, "list_categories", err)
	}
	defer rows.Close()

	var out []cleanup.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, cleanup.NewStorageError(s.backend, "scan_category", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, cleanup.NewStorageError(s.backend, "list_categories", err)
	}
	return out, nil
}

// GetCategory returns a category by ID.
func (s *sqlStore) GetCategory(ctx context.Context, id string) (*cleanup.Category, error) {
	c, err := scanCategory(s.db.QueryRowContext(ctx, s.rebind(queryGetCategory), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cleanup.NewNotFoundError("category", id)
	}
	if err != nil {
		return nil, cleanup.NewStorageError(s.backend, "get_category", err)
	}
	return c, nil
}

// UpsertCategory creates or replaces a category.
func (s *sqlStore) UpsertCategory(ctx context.Context, c *cleanup.Category) error {
	_, err := s.db.ExecContext(ctx, s.rebind(queryUpsertCategory),
		c.ID, string(c.Key), c.Title, c.Description, string(c.Kind), c.Enabled,
		c.DefaultBatchSize, c.RetentionDays, time.Now().UnixMilli(),
	)
	if err != nil {
		return cleanup.NewStorageError(s.backend, "upsert_category", err)
	}
	return nil
}

// CreateRun inserts a run unless the category already has an active one.
func (s *sqlStore) CreateRun(ctx context.Context, run *cleanup.Run) error {
	// Guard read first so the common conflict avoids a failed insert.
	existing, err := s.ActiveRun(ctx, run.CategoryID)
	if err != nil {
		return err
	}
	if existing != nil {
		return cleanup.NewConflictError(existing.ID, cleanup.ErrAlreadyActive)
	}

	_, err = s.db.ExecContext(ctx, s.rebind(queryInsertRun),
		run.ID, run.CategoryID, string(run.Status), nullJSON(run.Checkpoint),
		run.ProcessedCount, run.ProcessedBatches, nullString(run.LastError),
		nullMillis(run.RetryAfter), run.StartedAt.UnixMilli(), run.UpdatedAt.UnixMilli(),
		nullMillis(run.FinishedAt),
	)
	if err == nil {
		return nil
	}
	if s.isUniqueViolation != nil && s.isUniqueViolation(err) {
		// Lost the race with a concurrent start; report the winner.
		winner, lookupErr := s.ActiveRun(ctx, run.CategoryID)
		if lookupErr == nil && winner != nil {
			return cleanup.NewConflictError(winner.ID, cleanup.ErrAlreadyActive)
		}
		return cleanup.NewConflictError("", cleanup.ErrAlreadyActive)
	}
	return cleanup.NewStorageError(s.backend, "create_run", err)
}

// GetRun returns a run by ID.
func (s *sqlStore) GetRun(ctx context.Context, id string) (*cleanup.Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, s.rebind(queryGetRun), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cleanup.NewNotFoundError("run", id)
	}
	if err != nil {
		return nil, cleanup.NewStorageError(s.backend, "get_run", err)
	}
	return r, nil
}

// ActiveRun returns the running or paused run of a category, or nil.
func (s *sqlStore) ActiveRun(ctx context.Context, categoryID string) (*cleanup.Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, s.rebind(queryActiveRun), categoryID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, cleanup.NewStorageError(s.backend, "active_run", err)
	}
	return r, nil
}

// LatestRuns returns the most recently started run of each category.
func (s *sqlStore) LatestRuns(ctx context.Context) (map[string]*cleanup.Run, error) {
	rows, err := s.db.QueryContext(ctx, queryLatestRuns)
	if err != nil {
		return nil, cleanup.NewStorageError(s.backend, "latest_runs", err)
	}
	defer rows.Close()

	out := make(map[string]*cleanup.Run)
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, cleanup.NewStorageError(s.backend, "scan_run", err)
		}
		if cur, ok := out[r.CategoryID]; !ok || newer(r, cur) {
			out[r.CategoryID] = r
		}
	}
	if err := rows.Err(); err != nil {
		return nil, cleanup.NewStorageError(s.backend, "latest_runs", err)
	}
	return out, nil
}

// ApplyTick records a handler outcome with an optimistic predicate on
// processed_batches.
func (s *sqlStore) ApplyTick(ctx context.Context, runID string, o cleanup.TickOutcome) (*cleanup.Run, error) {
	now := o.Now.UnixMilli()

	var (
		res sql.Result
		err error
	)
	if o.Err == "" {
		finished := 0
		if o.Finished {
			finished = 1
		}
		res, err = s.db.ExecContext(ctx, s.rebind(queryApplyTickSuccess),
			o.Deleted, nullJSON(o.Checkpoint), now, finished, finished, now,
			runID, o.ExpectedBatches,
		)
	} else {
		res, err = s.db.ExecContext(ctx, s.rebind(queryApplyTickFailure),
			o.Err, nullMillis(o.RetryAfter), now, runID, o.ExpectedBatches,
		)
	}
	if err != nil {
		return nil, cleanup.NewStorageError(s.backend, "apply_tick", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, cleanup.NewStorageError(s.backend, "apply_tick", err)
	}

	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if affected == 0 && run.ProcessedBatches != o.ExpectedBatches {
		return run, cleanup.NewConflictError(runID,
			fmt.Sprintf("run %s advanced concurrently (expected %d batches, found %d)",
				runID, o.ExpectedBatches, run.ProcessedBatches))
	}
	// affected == 0 with matching batches means a failure raced a pause or
	// stop; the run is returned as it stands.
	return run, nil
}

// Transition applies a guarded status change.
func (s *sqlStore) Transition(ctx context.Context, runID string, t cleanup.Transition) (*cleanup.Run, bool, error) {
	if len(t.From) == 0 {
		run, err := s.GetRun(ctx, runID)
		return run, false, err
	}

	now := t.Now.UnixMilli()
	clearRetry, setError, finish := 0, 0, 0
	if t.ClearRetryAfter {
		clearRetry = 1
	}
	if t.LastError != nil {
		setError = 1
	}
	if t.Finish {
		finish = 1
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(t.From)), ", ")
	query := `UPDATE cleanup_runs SET
    status = ?,
    updated_at = ?,
    retry_after = CASE WHEN ? = 1 THEN NULL ELSE retry_after END,
    last_error = CASE WHEN ? = 1 THEN ? ELSE last_error END,
    finished_at = CASE WHEN ? = 1 THEN ? ELSE finished_at END
WHERE id = ? AND status IN (` + placeholders + `)`

	args := []any{string(t.To), now, clearRetry, setError, nullString(t.LastError), finish, now, runID}
	for _, from := range t.From {
		args = append(args, string(from))
	}

	res, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, false, cleanup.NewStorageError(s.backend, "transition", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, cleanup.NewStorageError(s.backend, "transition", err)
	}

	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, false, err
	}
	return run, affected > 0, nil
}

// Ping verifies the database connection.
func (s *sqlStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return cleanup.NewStorageError(s.backend, "ping", err)
	}
	return nil
}

// Close closes the database connection.
func (s *sqlStore) Close() error {
	if err := s.db.Close(); err != nil {
		return cleanup.NewStorageError(s.backend, "close", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(row rowScanner) (*cleanup.Category, error) {
	var (
		c         cleanup.Category
		key, kind string
		batchSize int64
		retention int64
	)
	if err := row.Scan(&c.ID, &key, &c.Title, &c.Description, &kind, &c.Enabled, &batchSize, &retention); err != nil {
		return nil, err
	}
	c.Key = cleanup.Key(key)
	c.Kind = cleanup.Kind(kind)
	c.DefaultBatchSize = int(batchSize)
	c.RetentionDays = int(retention)
	return &c, nil
}

func scanRun(row rowScanner) (*cleanup.Run, error) {
	var (
		r                      cleanup.Run
		status                 string
		checkpoint, lastError  sql.NullString
		retryAfter, finishedAt sql.NullInt64
		startedAt, updatedAt   int64
	)
	err := row.Scan(&r.ID, &r.CategoryID, &status, &checkpoint, &r.ProcessedCount,
		&r.ProcessedBatches, &lastError, &retryAfter, &startedAt, &updatedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	r.Status = cleanup.Status(status)
	if checkpoint.Valid && checkpoint.String != "" {
		r.Checkpoint = json.RawMessage(checkpoint.String)
	}
	if lastError.Valid {
		msg := lastError.String
		r.LastError = &msg
	}
	r.RetryAfter = fromMillis(retryAfter)
	r.FinishedAt = fromMillis(finishedAt)
	r.StartedAt = time.UnixMilli(startedAt).UTC()
	r.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &r, nil
}

// newer reports whether a should replace b as the latest run of a category.
// Ties on started_at prefer the active run.
func newer(a, b *cleanup.Run) bool {
	if !a.StartedAt.Equal(b.StartedAt) {
		return a.StartedAt.After(b.StartedAt)
	}
	if a.Status.Active() != b.Status.Active() {
		return a.Status.Active()
	}
	return a.UpdatedAt.After(b.UpdatedAt)
}

func nullJSON(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}
