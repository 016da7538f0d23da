package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema creates the engine tables. It is valid for both SQLite and Postgres.
const Schema = `
CREATE TABLE IF NOT EXISTS cleanup_categories (
    id TEXT PRIMARY KEY,
    key TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    kind TEXT NOT NULL,
    enabled BOOLEAN NOT NULL DEFAULT TRUE,
    default_batch_size INTEGER NOT NULL,
    retention_days INTEGER NOT NULL DEFAULT 0,
    updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS cleanup_runs (
    id TEXT PRIMARY KEY,
    category_id TEXT NOT NULL,
    status TEXT NOT NULL,
    checkpoint TEXT,
    processed_count BIGINT NOT NULL DEFAULT 0,
    processed_batches BIGINT NOT NULL DEFAULT 0,
    last_error TEXT,
    retry_after BIGINT,
    started_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL,
    finished_at BIGINT
);

-- At most one running or paused run per category.
CREATE UNIQUE INDEX IF NOT EXISTS idx_cleanup_runs_active
    ON cleanup_runs(category_id) WHERE status IN ('running', 'paused');

CREATE INDEX IF NOT EXISTS idx_cleanup_runs_category_started
    ON cleanup_runs(category_id, started_at);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at BIGINT NOT NULL
);
`

// InsertSchemaVersion records the schema version if not already present.
const InsertSchemaVersion = `INSERT INTO schema_version (version, applied_at) VALUES (?, ?) ON CONFLICT (version) DO NOTHING`

// GetSchemaVersion returns the newest applied schema version.
const GetSchemaVersion = `SELECT version FROM schema_version ORDER BY version DESC LIMIT 1`

const categoryColumns = `id, key, title, description, kind, enabled, default_batch_size, retention_days`

const runColumns = `id, category_id, status, checkpoint, processed_count, processed_batches, last_error, retry_after, started_at, updated_at, finished_at`

const (
	queryListCategories = `SELECT ` + categoryColumns + ` FROM cleanup_categories ORDER BY id`

	queryGetCategory = `SELECT ` + categoryColumns + ` FROM cleanup_categories WHERE id = ?`

	queryUpsertCategory = `
INSERT INTO cleanup_categories (` + categoryColumns + `, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    key = excluded.key,
    title = excluded.title,
    description = excluded.description,
    kind = excluded.kind,
    enabled = excluded.enabled,
    default_batch_size = excluded.default_batch_size,
    retention_days = excluded.retention_days,
    updated_at = excluded.updated_at`

	queryInsertRun = `INSERT INTO cleanup_runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetRun = `SELECT ` + runColumns + ` FROM cleanup_runs WHERE id = ?`

	queryActiveRun = `SELECT ` + runColumns + ` FROM cleanup_runs
WHERE category_id = ? AND status IN ('running', 'paused')
LIMIT 1`

	queryLatestRuns = `SELECT ` + runColumns + ` FROM cleanup_runs r
WHERE r.started_at = (SELECT MAX(started_at) FROM cleanup_runs WHERE category_id = r.category_id)`

	// Column references on the right of SET see the pre-update row, so the
	// CASE branches test the status the tick observed.
	queryApplyTickSuccess = `
UPDATE cleanup_runs SET
    processed_count = processed_count + ?,
    processed_batches = processed_batches + 1,
    checkpoint = ?,
    last_error = NULL,
    retry_after = NULL,
    updated_at = ?,
    status = CASE WHEN status = 'running' AND ? = 1 THEN 'done' ELSE status END,
    finished_at = CASE WHEN status = 'running' AND ? = 1 THEN ? ELSE finished_at END
WHERE id = ? AND processed_batches = ?`

	queryApplyTickFailure = `
UPDATE cleanup_runs SET
    last_error = ?,
    retry_after = ?,
    updated_at = ?
WHERE id = ? AND processed_batches = ? AND status = 'running'`
)
