package config

import "time"

// Config is the root configuration structure for the janitor service.
type Config struct {
	// Server contains the HTTP server settings for the cleanup RPC endpoint.
	Server ServerConfig `yaml:"server"`

	// Storage selects where categories and runs are persisted.
	Storage StorageConfig `yaml:"storage"`

	// Targets describes the application database that SQL handlers purge.
	Targets TargetsConfig `yaml:"targets"`

	// Redis configures the cache handler and the distributed run lock.
	Redis RedisConfig `yaml:"redis"`

	// Buckets maps storage categories to bucket directories.
	Buckets BucketsConfig `yaml:"buckets"`

	// Cleanup contains run controller and driver settings.
	Cleanup CleanupConfig `yaml:"cleanup"`

	// Categories points at the category file.
	Categories CategoriesConfig `yaml:"categories"`

	// Telemetry contains configuration for logging, metrics, tracing and
	// health checks.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address the server binds to.
	// Default: "127.0.0.1:8090"
	ListenAddress string `yaml:"listen_address"`

	// APIPath is the path of the cleanup RPC endpoint.
	// Default: "/api/cleanup"
	APIPath string `yaml:"api_path"`

	// AuthToken, when set, must be presented as a bearer token on the RPC
	// endpoint. Who may hold it is decided elsewhere.
	AuthToken string `yaml:"auth_token"`

	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`

	// RequestTimeout bounds a single RPC call, including one tick.
	// Default: 60s
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// ShutdownTimeout is how long graceful shutdown waits for in-flight
	// requests.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxBodyBytes caps the RPC request body.
	// Default: 65536
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// StorageConfig selects the engine state backend.
type StorageConfig struct {
	// Backend is one of "memory", "sqlite", "postgres".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig contains SQLite settings.
type SQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/janitor.db"
	Path string `yaml:"path"`

	MaxOpenConns int `yaml:"max_open_conns"`
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables Write-Ahead Logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// PostgresConfig contains PostgreSQL connection settings. DSN, when set,
// takes precedence over the individual fields.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`

	// SSLMode is passed through as sslmode.
	// Default: "require"
	SSLMode string `yaml:"ssl_mode"`

	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// TargetsConfig describes the application database.
type TargetsConfig struct {
	// Dialect is "sqlite" or "postgres".
	// Default: "sqlite"
	Dialect string `yaml:"dialect"`

	// DSN is a file path for SQLite or a connection string for Postgres.
	// Default: "data/app.db"
	DSN string `yaml:"dsn"`

	MaxOpenConns int `yaml:"max_open_conns"`

	// EstimateCap bounds the SQLite count used by scan.
	// Default: 100000
	EstimateCap int64 `yaml:"estimate_cap"`

	// Tables maps a category key to the table it purges.
	Tables map[string]TableConfig `yaml:"tables"`
}

// TableConfig names a purgeable table.
type TableConfig struct {
	Table           string `yaml:"table"`
	TimestampColumn string `yaml:"timestamp_column"`
	IDColumn        string `yaml:"id_column"`

	// TimeFormat is "native", "unix", "unix_ms" or "text".
	// Default: "native"
	TimeFormat string `yaml:"time_format"`
}

// RedisConfig contains Redis settings.
type RedisConfig struct {
	// Enabled turns on the Redis client.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Address is host:port.
	// Default: "127.0.0.1:6379"
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	// Caches maps a category key to the sorted-set index it purges.
	Caches map[string]CacheIndexConfig `yaml:"caches"`

	// Lock serializes ticks across processes when true.
	// Default: false
	Lock bool `yaml:"lock"`

	// LockTTL bounds how long a crashed holder keeps a run locked.
	// Default: 5m
	LockTTL time.Duration `yaml:"lock_ttl"`

	// LockWait is how long a tick waits for the lock.
	// Default: 5s
	LockWait time.Duration `yaml:"lock_wait"`
}

// CacheIndexConfig names a sorted-set index and the key prefix of its entries.
type CacheIndexConfig struct {
	IndexKey  string `yaml:"index_key"`
	KeyPrefix string `yaml:"key_prefix"`
}

// BucketsConfig maps storage categories to directories.
type BucketsConfig struct {
	// Root is prepended to relative bucket paths.
	// Default: "data/buckets"
	Root string `yaml:"root"`

	// Paths maps a category key to a bucket directory.
	Paths map[string]string `yaml:"paths"`

	// EstimateCap bounds how many objects scan counts.
	// Default: 100000
	EstimateCap int64 `yaml:"estimate_cap"`
}

// CleanupConfig contains run controller and driver settings.
type CleanupConfig struct {
	// EnforceRetryAfter makes tick refuse to run before retryAfter.
	// Default: false
	EnforceRetryAfter bool `yaml:"enforce_retry_after"`

	// MaxBatchSize caps an explicit batch size override.
	// Default: 10000
	MaxBatchSize int `yaml:"max_batch_size"`

	// Schedule is the driver's cron expression.
	// Default: "*/5 * * * *"
	Schedule string `yaml:"schedule"`

	// ScheduleEnabled starts the driver inside serve.
	// Default: true
	ScheduleEnabled bool `yaml:"schedule_enabled"`

	// MaxTicksPerDrain bounds how many ticks one category gets per firing.
	// Default: 100
	MaxTicksPerDrain int `yaml:"max_ticks_per_drain"`

	// Concurrency is how many categories drain at once.
	// Default: 2
	Concurrency int `yaml:"concurrency"`

	// TickTimeout bounds a single tick.
	// Default: 30s
	TickTimeout time.Duration `yaml:"tick_timeout"`
}

// CategoriesConfig locates the category file.
type CategoriesConfig struct {
	// File is a YAML or TOML category file synced into storage at startup.
	// Empty disables syncing.
	File string `yaml:"file"`

	// Watch re-syncs the file on change.
	// Default: false
	Watch bool `yaml:"watch"`

	// Debounce collapses bursts of file events.
	// Default: 200ms
	Debounce time.Duration `yaml:"debounce"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
	Health  HealthConfig  `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "janitor"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "cleanup"
	Subsystem string `yaml:"subsystem"`

	// TickDurationBuckets defines histogram buckets for tick duration (seconds).
	// Default: [0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30]
	TickDurationBuckets []float64 `yaml:"tick_duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint, e.g. "localhost:4317".
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "janitor"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS for the OTLP connection.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout is the export timeout.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig contains health check endpoint configuration.
type HealthConfig struct {
	// LivenessPath default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// VersionPath default: "/version"
	VersionPath string `yaml:"version_path"`

	// CheckTimeout is the timeout for individual component checks.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}
