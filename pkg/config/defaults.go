package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8090"
	DefaultAPIPath         = "/api/cleanup"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 90 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultRequestTimeout  = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxBodyBytes    = int64(64 * 1024)

	// Storage defaults
	DefaultStorageBackend     = "sqlite"
	DefaultSQLitePath         = "data/janitor.db"
	DefaultSQLiteMaxOpenConns = 10
	DefaultSQLiteMaxIdleConns = 5
	DefaultSQLiteWALMode      = true
	DefaultSQLiteBusyTimeout  = 5 * time.Second
	DefaultPostgresPort       = 5432
	DefaultPostgresSSLMode    = "require"

	// Target defaults
	DefaultTargetDialect   = "sqlite"
	DefaultTargetDSN       = "data/app.db"
	DefaultEstimateCap     = int64(100000)
	DefaultTimestampColumn = "created_at"
	DefaultIDColumn        = "id"
	DefaultTimeFormat      = "native"

	// Redis defaults
	DefaultRedisAddress  = "127.0.0.1:6379"
	DefaultRedisLockTTL  = 5 * time.Minute
	DefaultRedisLockWait = 5 * time.Second

	// Bucket defaults
	DefaultBucketRoot = "data/buckets"

	// Cleanup defaults
	DefaultMaxBatchSize     = 10000
	DefaultSchedule         = "*/5 * * * *"
	DefaultScheduleEnabled  = true
	DefaultMaxTicksPerDrain = 100
	DefaultConcurrency      = 2
	DefaultTickTimeout      = 30 * time.Second

	// Categories defaults
	DefaultCategoriesDebounce = 200 * time.Millisecond

	// Telemetry defaults
	DefaultLoggingLevel        = "info"
	DefaultLoggingFormat       = "json"
	DefaultMetricsEnabled      = true
	DefaultMetricsPath         = "/metrics"
	DefaultMetricsNamespace    = "janitor"
	DefaultMetricsSubsystem    = "cleanup"
	DefaultTracingSampler      = "ratio"
	DefaultTracingSamplingRate = 0.1
	DefaultTracingServiceName  = "janitor"
	DefaultTracingInsecure     = true
	DefaultTracingTimeout      = 10 * time.Second
	DefaultLivenessPath        = "/health"
	DefaultReadinessPath       = "/ready"
	DefaultVersionPath         = "/version"
	DefaultHealthCheckTimeout  = 5 * time.Second
)

// DefaultTickDurationBuckets are the tick histogram buckets in seconds.
var DefaultTickDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30}

// defaultTables binds the built-in database categories.
func defaultTables() map[string]TableConfig {
	return map[string]TableConfig{
		"messages":       {Table: "messages"},
		"notifications":  {Table: "notifications"},
		"profile_visits": {Table: "profile_visits", TimestampColumn: "visited_at"},
		"feed_cache":     {Table: "feed_cache"},
	}
}

// NewDefault returns a configuration with every default applied. Loading
// decodes YAML on top of it so boolean defaults survive omitted keys.
func NewDefault() *Config {
	cfg := &Config{}
	cfg.Storage.SQLite.WALMode = DefaultSQLiteWALMode
	cfg.Cleanup.ScheduleEnabled = DefaultScheduleEnabled
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	cfg.Telemetry.Tracing.Insecure = DefaultTracingInsecure
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.APIPath == "" {
		cfg.Server.APIPath = DefaultAPIPath
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}

	// Storage defaults
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Storage.SQLite.MaxOpenConns == 0 {
		cfg.Storage.SQLite.MaxOpenConns = DefaultSQLiteMaxOpenConns
	}
	if cfg.Storage.SQLite.MaxIdleConns == 0 {
		cfg.Storage.SQLite.MaxIdleConns = DefaultSQLiteMaxIdleConns
	}
	if cfg.Storage.SQLite.BusyTimeout == 0 {
		cfg.Storage.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Storage.Postgres.Port == 0 {
		cfg.Storage.Postgres.Port = DefaultPostgresPort
	}
	if cfg.Storage.Postgres.SSLMode == "" {
		cfg.Storage.Postgres.SSLMode = DefaultPostgresSSLMode
	}

	// Target defaults
	if cfg.Targets.Dialect == "" {
		cfg.Targets.Dialect = DefaultTargetDialect
	}
	if cfg.Targets.DSN == "" && cfg.Targets.Dialect == "sqlite" {
		cfg.Targets.DSN = DefaultTargetDSN
	}
	if cfg.Targets.EstimateCap == 0 {
		cfg.Targets.EstimateCap = DefaultEstimateCap
	}
	if cfg.Targets.Tables == nil {
		cfg.Targets.Tables = defaultTables()
	}
	for key, t := range cfg.Targets.Tables {
		if t.Table == "" {
			t.Table = key
		}
		if t.TimestampColumn == "" {
			t.TimestampColumn = DefaultTimestampColumn
		}
		if t.IDColumn == "" {
			t.IDColumn = DefaultIDColumn
		}
		if t.TimeFormat == "" {
			t.TimeFormat = DefaultTimeFormat
		}
		cfg.Targets.Tables[key] = t
	}

	// Redis defaults
	if cfg.Redis.Address == "" {
		cfg.Redis.Address = DefaultRedisAddress
	}
	if cfg.Redis.LockTTL == 0 {
		cfg.Redis.LockTTL = DefaultRedisLockTTL
	}
	if cfg.Redis.LockWait == 0 {
		cfg.Redis.LockWait = DefaultRedisLockWait
	}
	if cfg.Redis.Caches == nil {
		cfg.Redis.Caches = map[string]CacheIndexConfig{
			"feed_cache": {IndexKey: "feed:index", KeyPrefix: "feed:"},
		}
	}

	// Bucket defaults
	if cfg.Buckets.Root == "" {
		cfg.Buckets.Root = DefaultBucketRoot
	}
	if cfg.Buckets.Paths == nil {
		cfg.Buckets.Paths = map[string]string{"media_uploads": "media"}
	}
	if cfg.Buckets.EstimateCap == 0 {
		cfg.Buckets.EstimateCap = DefaultEstimateCap
	}

	// Cleanup defaults
	if cfg.Cleanup.MaxBatchSize == 0 {
		cfg.Cleanup.MaxBatchSize = DefaultMaxBatchSize
	}
	if cfg.Cleanup.Schedule == "" {
		cfg.Cleanup.Schedule = DefaultSchedule
	}
	if cfg.Cleanup.MaxTicksPerDrain == 0 {
		cfg.Cleanup.MaxTicksPerDrain = DefaultMaxTicksPerDrain
	}
	if cfg.Cleanup.Concurrency == 0 {
		cfg.Cleanup.Concurrency = DefaultConcurrency
	}
	if cfg.Cleanup.TickTimeout == 0 {
		cfg.Cleanup.TickTimeout = DefaultTickTimeout
	}

	if cfg.Categories.Debounce == 0 {
		cfg.Categories.Debounce = DefaultCategoriesDebounce
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(cfg.Telemetry.Metrics.TickDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.TickDurationBuckets = append([]float64(nil), DefaultTickDurationBuckets...)
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSamplingRate
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
	if cfg.Telemetry.Health.LivenessPath == "" {
		cfg.Telemetry.Health.LivenessPath = DefaultLivenessPath
	}
	if cfg.Telemetry.Health.ReadinessPath == "" {
		cfg.Telemetry.Health.ReadinessPath = DefaultReadinessPath
	}
	if cfg.Telemetry.Health.VersionPath == "" {
		cfg.Telemetry.Health.VersionPath = DefaultVersionPath
	}
	if cfg.Telemetry.Health.CheckTimeout == 0 {
		cfg.Telemetry.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
}
