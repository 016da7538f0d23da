package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"mercator-hq/janitor/pkg/cleanup"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration. All field errors are
// collected and returned together as a ValidationError.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateTargets(&cfg.Targets)...)
	errs = append(errs, validateRedis(&cfg.Redis)...)
	errs = append(errs, validateCleanup(&cfg.Cleanup)...)
	errs = append(errs, validateBindings(cfg)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{Field: "server.listen_address", Message: "listen address is required"})
	}
	if !strings.HasPrefix(cfg.APIPath, "/") {
		errs = append(errs, FieldError{Field: "server.api_path", Message: "api path must start with '/'"})
	}
	if cfg.RequestTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.request_timeout", Message: "request timeout must not be negative"})
	}
	if cfg.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{Field: "server.max_body_bytes", Message: "max body bytes must not be negative"})
	}
	return errs
}

func validateStorage(cfg *StorageConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "storage.sqlite.path", Message: "path is required for the sqlite backend"})
		}
	case "postgres":
		if cfg.Postgres.DSN == "" && (cfg.Postgres.Host == "" || cfg.Postgres.Database == "") {
			errs = append(errs, FieldError{
				Field:   "storage.postgres",
				Message: "either dsn or host and database are required for the postgres backend",
			})
		}
		if cfg.Postgres.Port < 1 || cfg.Postgres.Port > 65535 {
			errs = append(errs, FieldError{Field: "storage.postgres.port", Message: fmt.Sprintf("invalid port %d", cfg.Postgres.Port)})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'memory', 'sqlite', or 'postgres'", cfg.Backend),
		})
	}
	return errs
}

var validTimeFormats = map[string]bool{"native": true, "unix": true, "unix_ms": true, "text": true}

func validateTargets(cfg *TargetsConfig) []FieldError {
	var errs []FieldError

	if cfg.Dialect != "sqlite" && cfg.Dialect != "postgres" {
		errs = append(errs, FieldError{
			Field:   "targets.dialect",
			Message: fmt.Sprintf("invalid dialect %q: must be 'sqlite' or 'postgres'", cfg.Dialect),
		})
	}
	if len(cfg.Tables) > 0 && cfg.DSN == "" {
		errs = append(errs, FieldError{Field: "targets.dsn", Message: "dsn is required when tables are configured"})
	}
	for key, t := range cfg.Tables {
		if !validTimeFormats[t.TimeFormat] {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("targets.tables.%s.time_format", key),
				Message: fmt.Sprintf("invalid time format %q", t.TimeFormat),
			})
		}
	}
	return errs
}

func validateRedis(cfg *RedisConfig) []FieldError {
	var errs []FieldError
	if !cfg.Enabled {
		if cfg.Lock {
			errs = append(errs, FieldError{Field: "redis.lock", Message: "distributed lock requires redis.enabled"})
		}
		return errs
	}
	if cfg.Address == "" {
		errs = append(errs, FieldError{Field: "redis.address", Message: "address is required when redis is enabled"})
	}
	for key, c := range cfg.Caches {
		if c.IndexKey == "" {
			errs = append(errs, FieldError{Field: fmt.Sprintf("redis.caches.%s.index_key", key), Message: "index key is required"})
		}
	}
	return errs
}

func validateCleanup(cfg *CleanupConfig) []FieldError {
	var errs []FieldError

	if cfg.MaxBatchSize < 1 {
		errs = append(errs, FieldError{Field: "cleanup.max_batch_size", Message: "max batch size must be positive"})
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		errs = append(errs, FieldError{Field: "cleanup.schedule", Message: fmt.Sprintf("invalid cron expression: %v", err)})
	}
	if cfg.MaxTicksPerDrain < 1 {
		errs = append(errs, FieldError{Field: "cleanup.max_ticks_per_drain", Message: "must be positive"})
	}
	if cfg.Concurrency < 1 {
		errs = append(errs, FieldError{Field: "cleanup.concurrency", Message: "must be positive"})
	}
	if cfg.TickTimeout < 0 {
		errs = append(errs, FieldError{Field: "cleanup.tick_timeout", Message: "must not be negative"})
	}
	return errs
}

// validateBindings checks that every built-in category key has a source:
// a Redis cache index (when Redis is enabled), a bucket, or a table.
func validateBindings(cfg *Config) []FieldError {
	var errs []FieldError
	for _, key := range cleanup.BuiltinKeys() {
		k := string(key)
		_, cache := cfg.Redis.Caches[k]
		_, bucket := cfg.Buckets.Paths[k]
		_, table := cfg.Targets.Tables[k]
		if (cache && cfg.Redis.Enabled) || bucket || table {
			continue
		}
		errs = append(errs, FieldError{
			Field:   "categories." + k,
			Message: "built-in category has no table, bucket, or enabled redis cache",
		})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Path == "" {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "metrics path is required when metrics are enabled"})
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "tracing endpoint is required when tracing is enabled"})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "sample ratio must be between 0.0 and 1.0"})
	}
	validSamplers := map[string]bool{"always": true, "never": true, "ratio": true}
	if !validSamplers[cfg.Tracing.Sampler] {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
		})
	}
	return errs
}
