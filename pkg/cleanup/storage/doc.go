// Package storage persists cleanup categories and runs.
//
// Three backends are provided:
//
//   - MemoryStorage: map-backed, for tests and single-process demos
//   - SQLiteStorage: embedded database via github.com/mattn/go-sqlite3
//   - PostgresStorage: shared database via github.com/lib/pq
//
// The SQL backends share one schema and one query set. The single active
// run per category is enforced by a partial unique index on
// cleanup_runs(category_id) for running and paused rows, and tick counters
// are applied with an optimistic predicate on processed_batches.
//
// Timestamps are stored as Unix milliseconds.
package storage
