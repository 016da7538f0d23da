package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// Keys missing from the file keep their defaults. The result is validated.
// Environment variables are not consulted; use LoadConfigWithEnvOverrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := NewDefault()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// JANITOR_SECTION_FIELD environment overrides, which take precedence over the
// file. An empty path skips the file and starts from defaults.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = NewDefault()
	} else {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// applyEnvOverrides applies JANITOR_* environment overrides.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	envString("JANITOR_SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envString("JANITOR_SERVER_API_PATH", &cfg.Server.APIPath)
	envString("JANITOR_SERVER_AUTH_TOKEN", &cfg.Server.AuthToken)
	envDuration("JANITOR_SERVER_REQUEST_TIMEOUT", &cfg.Server.RequestTimeout)
	envDuration("JANITOR_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	// Storage overrides
	envString("JANITOR_STORAGE_BACKEND", &cfg.Storage.Backend)
	envString("JANITOR_STORAGE_SQLITE_PATH", &cfg.Storage.SQLite.Path)
	envString("JANITOR_STORAGE_POSTGRES_DSN", &cfg.Storage.Postgres.DSN)
	envString("JANITOR_STORAGE_POSTGRES_HOST", &cfg.Storage.Postgres.Host)
	envInt("JANITOR_STORAGE_POSTGRES_PORT", &cfg.Storage.Postgres.Port)
	envString("JANITOR_STORAGE_POSTGRES_DATABASE", &cfg.Storage.Postgres.Database)
	envString("JANITOR_STORAGE_POSTGRES_USER", &cfg.Storage.Postgres.User)
	envString("JANITOR_STORAGE_POSTGRES_PASSWORD", &cfg.Storage.Postgres.Password)
	envString("JANITOR_STORAGE_POSTGRES_SSL_MODE", &cfg.Storage.Postgres.SSLMode)

	// Target overrides
	envString("JANITOR_TARGETS_DIALECT", &cfg.Targets.Dialect)
	envString("JANITOR_TARGETS_DSN", &cfg.Targets.DSN)

	// Redis overrides
	envBool("JANITOR_REDIS_ENABLED", &cfg.Redis.Enabled)
	envString("JANITOR_REDIS_ADDRESS", &cfg.Redis.Address)
	envString("JANITOR_REDIS_PASSWORD", &cfg.Redis.Password)
	envInt("JANITOR_REDIS_DB", &cfg.Redis.DB)
	envBool("JANITOR_REDIS_LOCK", &cfg.Redis.Lock)

	envString("JANITOR_BUCKETS_ROOT", &cfg.Buckets.Root)

	// Cleanup overrides
	envBool("JANITOR_CLEANUP_ENFORCE_RETRY_AFTER", &cfg.Cleanup.EnforceRetryAfter)
	envString("JANITOR_CLEANUP_SCHEDULE", &cfg.Cleanup.Schedule)
	envBool("JANITOR_CLEANUP_SCHEDULE_ENABLED", &cfg.Cleanup.ScheduleEnabled)
	envInt("JANITOR_CLEANUP_MAX_TICKS_PER_DRAIN", &cfg.Cleanup.MaxTicksPerDrain)
	envInt("JANITOR_CLEANUP_CONCURRENCY", &cfg.Cleanup.Concurrency)

	envString("JANITOR_CATEGORIES_FILE", &cfg.Categories.File)
	envBool("JANITOR_CATEGORIES_WATCH", &cfg.Categories.Watch)

	// Telemetry overrides
	envString("JANITOR_TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("JANITOR_TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("JANITOR_TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envBool("JANITOR_TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("JANITOR_TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
}

func envString(name string, dst *string) {
	if val := os.Getenv(name); val != "" {
		*dst = val
	}
}

func envInt(name string, dst *int) {
	if val := os.Getenv(name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if val := os.Getenv(name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
