package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestNewDefault_IsValid(t *testing.T) {
	cfg := NewDefault()
	if err := Validate(cfg); err != nil {
		t.Fatalf("Default configuration should be valid: %v", err)
	}
	if !cfg.Storage.SQLite.WALMode || !cfg.Telemetry.Metrics.Enabled || !cfg.Cleanup.ScheduleEnabled {
		t.Error("Expected boolean defaults to be true")
	}
	if cfg.Cleanup.EnforceRetryAfter {
		t.Error("Expected retryAfter enforcement to default to false")
	}
	if cfg.Targets.Tables["profile_visits"].TimestampColumn != "visited_at" {
		t.Errorf("Unexpected profile_visits table: %+v", cfg.Targets.Tables["profile_visits"])
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: "0.0.0.0:9000"
storage:
  backend: memory
targets:
  tables:
    messages:
      table: dm_messages
      time_format: unix
cleanup:
  enforce_retry_after: true
  schedule: "0 * * * *"
telemetry:
  metrics:
    enabled: false
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:9000" {
		t.Errorf("Expected listen address 0.0.0.0:9000, got %s", cfg.Server.ListenAddress)
	}
	if cfg.Server.APIPath != DefaultAPIPath {
		t.Errorf("Expected default api path, got %s", cfg.Server.APIPath)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("Expected memory backend, got %s", cfg.Storage.Backend)
	}
	msg := cfg.Targets.Tables["messages"]
	if msg.Table != "dm_messages" || msg.TimeFormat != "unix" || msg.IDColumn != "id" {
		t.Errorf("Unexpected messages table: %+v", msg)
	}
	if _, ok := cfg.Targets.Tables["notifications"]; !ok {
		t.Error("Expected default tables to be kept alongside file entries")
	}
	if !cfg.Cleanup.EnforceRetryAfter {
		t.Error("Expected enforce_retry_after from file")
	}
	if cfg.Telemetry.Metrics.Enabled {
		t.Error("Expected metrics disabled from file")
	}
	if !cfg.Storage.SQLite.WALMode {
		t.Error("Expected WAL default to survive an omitted key")
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
	if _, err := LoadConfig(writeConfig(t, "server: [")); err == nil {
		t.Error("Expected error for invalid YAML")
	}
	_, err := LoadConfig(writeConfig(t, "storage:\n  backend: mongo\n"))
	var ve ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if ve.Errors[0].Field != "storage.backend" {
		t.Errorf("Expected storage.backend error, got %s", ve.Errors[0].Field)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, "storage:\n  backend: sqlite\n")

	t.Setenv("JANITOR_STORAGE_BACKEND", "memory")
	t.Setenv("JANITOR_SERVER_AUTH_TOKEN", "s3cret")
	t.Setenv("JANITOR_CLEANUP_ENFORCE_RETRY_AFTER", "true")
	t.Setenv("JANITOR_SERVER_REQUEST_TIMEOUT", "15s")
	t.Setenv("JANITOR_CLEANUP_CONCURRENCY", "not-a-number")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() failed: %v", err)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("Expected env to override backend, got %s", cfg.Storage.Backend)
	}
	if cfg.Server.AuthToken != "s3cret" {
		t.Errorf("Expected auth token from env, got %q", cfg.Server.AuthToken)
	}
	if !cfg.Cleanup.EnforceRetryAfter {
		t.Error("Expected enforce_retry_after from env")
	}
	if cfg.Server.RequestTimeout != 15*time.Second {
		t.Errorf("Expected 15s request timeout, got %v", cfg.Server.RequestTimeout)
	}
	if cfg.Cleanup.Concurrency != DefaultConcurrency {
		t.Errorf("Invalid env value should be ignored, got %d", cfg.Cleanup.Concurrency)
	}
}

func TestLoadConfigWithEnvOverrides_NoFile(t *testing.T) {
	t.Setenv("JANITOR_STORAGE_BACKEND", "memory")
	cfg, err := LoadConfigWithEnvOverrides("")
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides(\"\") failed: %v", err)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("Expected memory backend, got %s", cfg.Storage.Backend)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	os.WriteFile(path, []byte("JANITOR_TEST_DOTENV=from-file\n"), 0o644)
	t.Setenv("JANITOR_TEST_DOTENV", "")
	os.Unsetenv("JANITOR_TEST_DOTENV")

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv() failed: %v", err)
	}
	if got := os.Getenv("JANITOR_TEST_DOTENV"); got != "from-file" {
		t.Errorf("Expected value from .env, got %q", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"bad api path", func(c *Config) { c.Server.APIPath = "api" }, "server.api_path"},
		{"postgres without dsn", func(c *Config) { c.Storage.Backend = "postgres" }, "storage.postgres"},
		{"bad dialect", func(c *Config) { c.Targets.Dialect = "oracle" }, "targets.dialect"},
		{"bad time format", func(c *Config) {
			c.Targets.Tables["messages"] = TableConfig{Table: "m", TimestampColumn: "t", IDColumn: "id", TimeFormat: "epoch"}
		}, "targets.tables.messages.time_format"},
		{"lock without redis", func(c *Config) { c.Redis.Lock = true }, "redis.lock"},
		{"bad schedule", func(c *Config) { c.Cleanup.Schedule = "every minute" }, "cleanup.schedule"},
		{"zero concurrency", func(c *Config) { c.Cleanup.Concurrency = 0 }, "cleanup.concurrency"},
		{"unbound builtin", func(c *Config) { delete(c.Targets.Tables, "messages") }, "categories.messages"},
		{"bad level", func(c *Config) { c.Telemetry.Logging.Level = "trace" }, "telemetry.logging.level"},
		{"tracing without endpoint", func(c *Config) { c.Telemetry.Tracing.Enabled = true }, "telemetry.tracing.endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefault()
			tt.modify(cfg)

			err := Validate(cfg)
			var ve ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			found := false
			for _, fe := range ve.Errors {
				if fe.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("Expected error on %s, got %v", tt.field, ve)
			}
		})
	}
}

func TestValidate_FeedCacheViaRedis(t *testing.T) {
	cfg := NewDefault()
	delete(cfg.Targets.Tables, "feed_cache")

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected feed_cache to be unbound with redis disabled")
	}

	cfg.Redis.Enabled = true
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected redis cache to bind feed_cache: %v", err)
	}
}

func TestValidationError_Format(t *testing.T) {
	one := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}}}
	if one.Error() != "configuration validation failed: a: bad" {
		t.Errorf("Unexpected message: %s", one.Error())
	}
	two := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}, {Field: "b", Message: "worse"}}}
	if !strings.Contains(two.Error(), "2 errors") || !strings.Contains(two.Error(), "b: worse") {
		t.Errorf("Unexpected message: %s", two.Error())
	}
}

func TestSingleton(t *testing.T) {
	defer SetConfig(nil)

	SetConfig(nil)
	if GetConfig() != nil {
		t.Fatal("Expected nil config")
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Error("Expected MustGetConfig to panic")
			}
		}()
		MustGetConfig()
	}()

	cfg := NewDefault()
	SetConfig(cfg)
	if GetConfig() != cfg || MustGetConfig() != cfg {
		t.Error("Expected GetConfig to return the stored config")
	}

	path := writeConfig(t, "storage:\n  backend: memory\n")
	if err := ReloadConfig(path); err != nil {
		t.Fatalf("ReloadConfig() failed: %v", err)
	}
	if GetConfig().Storage.Backend != "memory" {
		t.Error("Expected reloaded config")
	}

	if err := ReloadConfig(writeConfig(t, "storage:\n  backend: bogus\n")); err == nil {
		t.Error("Expected ReloadConfig to fail")
	}
	if GetConfig().Storage.Backend != "memory" {
		t.Error("Failed reload should keep the previous config")
	}
}
