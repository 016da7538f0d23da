package batch

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"mercator-hq/janitor/pkg/cleanup"
)

// OpenConfig describes a connection to the application database.
type OpenConfig struct {
	Dialect Dialect

	// DSN is a file path for SQLite or a lib/pq connection string.
	DSN string

	MaxOpenConns int
	BusyTimeout  time.Duration
}

// Open connects to the application database that handlers purge from.
// SQLite targets use the pure-Go modernc.org/sqlite driver.
func Open(cfg OpenConfig) (*sql.DB, error) {
	switch cfg.Dialect {
	case DialectSQLite:
		busy := cfg.BusyTimeout
		if busy <= 0 {
			busy = 5 * time.Second
		}
		dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
			cfg.DSN, busy.Milliseconds())
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, cleanup.NewStorageError("sqlite", "open_target", err)
		}
		// Single writer avoids SQLITE_BUSY between select and delete.
		db.SetMaxOpenConns(1)
		return db, nil

	case DialectPostgres:
		db, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, cleanup.NewStorageError("postgres", "open_target", err)
		}
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		return db, nil

	default:
		return nil, cleanup.NewValidationError("dialect", fmt.Sprintf("unsupported dialect %q", cfg.Dialect))
	}
}
