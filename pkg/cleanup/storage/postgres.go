package storage

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"mercator-hq/janitor/pkg/cleanup"
)

// PostgresConfig contains configuration for the Postgres storage backend.
type PostgresConfig struct {
	// DSN is a lib/pq connection string or URL.
	DSN string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// ConnMaxLifetime bounds how long a connection is reused.
	// Default: 30 minutes
	ConnMaxLifetime time.Duration
}

// PostgresStorage implements cleanup.Storage using PostgreSQL.
type PostgresStorage struct {
	*sqlStore
}

// NewPostgresStorage connects to Postgres and creates the schema.
func NewPostgresStorage(ctx context.Context, config *PostgresConfig) (*PostgresStorage, error) {
	if config == nil || config.DSN == "" {
		return nil, cleanup.NewStorageError("postgres", "open", errors.New("dsn is required"))
	}

	logger := slog.Default().With("component", "cleanup.storage.postgres")

	db, err := sql.Open("postgres", config.DSN)
	if err != nil {
		return nil, cleanup.NewStorageError("postgres", "open", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, cleanup.NewStorageError("postgres", "ping", err)
	}

	s := &PostgresStorage{
		sqlStore: &sqlStore{
			db:                db,
			backend:           "postgres",
			postgres:          true,
			isUniqueViolation: isPostgresUniqueViolation,
			logger:            logger,
		},
	}

	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Postgres storage initialized", "max_open_conns", config.MaxOpenConns)
	return s, nil
}

// unique_violation
const pgUniqueViolation = "23505"

func isPostgresUniqueViolation(err error) bool {
	var pe *pq.Error
	if errors.As(err, &pe) {
		return pe.Code == pgUniqueViolation
	}
	return false
}
