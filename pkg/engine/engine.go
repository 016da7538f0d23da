package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"mercator-hq/janitor/pkg/cleanup"
	"mercator-hq/janitor/pkg/cleanup/controller"
	"mercator-hq/janitor/pkg/cleanup/driver"
	"mercator-hq/janitor/pkg/cleanup/handlers"
	"mercator-hq/janitor/pkg/cleanup/lock"
	"mercator-hq/janitor/pkg/cleanup/storage"
	"mercator-hq/janitor/pkg/config"
	"mercator-hq/janitor/pkg/telemetry/health"
	"mercator-hq/janitor/pkg/telemetry/metrics"
	"mercator-hq/janitor/pkg/telemetry/tracing"
)

// Engine holds every long-lived component built from a Config.
type Engine struct {
	Config     *config.Config
	Store      cleanup.Storage
	TargetDB   *sql.DB
	Redis      *redis.Client
	Handlers   *handlers.Registry
	Locker     lock.Locker
	Metrics    *metrics.Collector
	Tracer     *tracing.Tracer
	Controller *controller.Controller
	Driver     *driver.Driver

	logger  *slog.Logger
	closers []func() error
}

// New builds an Engine. On error, anything already opened is closed.
func New(ctx context.Context, cfg *config.Config) (eng *Engine, err error) {
	e := &Engine{
		Config: cfg,
		logger: slog.Default().With("component", "engine"),
	}
	defer func() {
		if err != nil {
			_ = e.Close()
		}
	}()

	if e.Store, err = openStore(ctx, &cfg.Storage); err != nil {
		return nil, err
	}
	e.closers = append(e.closers, e.Store.Close)

	if len(cfg.Targets.Tables) > 0 {
		e.TargetDB, err = openTargets(&cfg.Targets)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, e.TargetDB.Close)
	}

	if cfg.Redis.Enabled {
		e.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		e.closers = append(e.closers, e.Redis.Close)
	}

	if e.Handlers, err = buildHandlers(cfg, e.TargetDB, e.Redis); err != nil {
		return nil, err
	}

	e.Locker = lock.NewLocal()
	if cfg.Redis.Enabled && cfg.Redis.Lock {
		e.Locker = lock.NewRedis(e.Redis, lock.RedisConfig{
			TTL:  cfg.Redis.LockTTL,
			Wait: cfg.Redis.LockWait,
		})
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	e.Metrics = metrics.NewCollector(&cfg.Telemetry.Metrics, registry)

	if e.Tracer, err = tracing.New(&cfg.Telemetry.Tracing); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	e.closers = append(e.closers, func() error { return e.Tracer.Shutdown(context.Background()) })

	e.Controller, err = controller.New(controller.Config{
		Storage:           e.Store,
		Handlers:          e.Handlers,
		Locker:            e.Locker,
		Metrics:           e.Metrics,
		Tracer:            e.Tracer,
		EnforceRetryAfter: cfg.Cleanup.EnforceRetryAfter,
		MaxBatchSize:      cfg.Cleanup.MaxBatchSize,
		TickTimeout:       cfg.Cleanup.TickTimeout,
	})
	if err != nil {
		return nil, err
	}

	e.Driver = driver.New(e.Controller, driver.Config{
		MaxTicksPerDrain: cfg.Cleanup.MaxTicksPerDrain,
		Concurrency:      cfg.Cleanup.Concurrency,
	})

	e.logger.Info("engine initialized",
		"storage", cfg.Storage.Backend,
		"target_dialect", cfg.Targets.Dialect,
		"redis", cfg.Redis.Enabled,
		"handlers", len(e.Handlers.Keys()),
	)
	return e, nil
}

// RegisterHealthChecks adds readiness checks for every backing service.
func (e *Engine) RegisterHealthChecks(checker *health.Checker) {
	checker.RegisterCheck("storage", health.PingCheck(e.Store))
	if e.TargetDB != nil {
		checker.RegisterCheck("targets", e.TargetDB.PingContext)
	}
	if e.Redis != nil {
		checker.RegisterCheck("redis", func(ctx context.Context) error {
			return e.Redis.Ping(ctx).Err()
		})
	}
}

// Close releases everything New opened, in reverse order.
func (e *Engine) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

func openStore(ctx context.Context, cfg *config.StorageConfig) (cleanup.Storage, error) {
	switch cfg.Backend {
	case "memory":
		return storage.NewMemoryStorage(), nil
	case "sqlite":
		return storage.NewSQLiteStorage(&storage.SQLiteConfig{
			Path:         cfg.SQLite.Path,
			MaxOpenConns: cfg.SQLite.MaxOpenConns,
			MaxIdleConns: cfg.SQLite.MaxIdleConns,
			WALMode:      cfg.SQLite.WALMode,
			BusyTimeout:  cfg.SQLite.BusyTimeout,
		})
	case "postgres":
		return storage.NewPostgresStorage(ctx, &storage.PostgresConfig{
			DSN:             PostgresDSN(&cfg.Postgres),
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		})
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

// PostgresDSN returns cfg.DSN, or a postgres:// URL built from the
// individual connection fields.
func PostgresDSN(cfg *config.PostgresConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.Database,
	}
	if cfg.User != "" {
		if cfg.Password != "" {
			u.User = url.UserPassword(cfg.User, cfg.Password)
		} else {
			u.User = url.User(cfg.User)
		}
	}
	if cfg.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {cfg.SSLMode}}.Encode()
	}
	return u.String()
}
