// Package config loads and validates janitor configuration.
//
// Configuration is read from a YAML file on top of built-in defaults, then
// JANITOR_SECTION_FIELD environment variables override individual fields:
//
//   - JANITOR_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - JANITOR_STORAGE_BACKEND overrides storage.backend
//   - JANITOR_CLEANUP_ENFORCE_RETRY_AFTER overrides cleanup.enforce_retry_after
//
// A .env file, if present, is loaded into the environment first by
// LoadDotEnv and never overrides variables that are already set.
//
// # Precedence
//
//  1. Default values (defaults.go)
//  2. Values from the YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast, reporting every invalid field)
//
// # Singleton
//
// Commands call Initialize once at startup and read the result with
// GetConfig. Library code takes an explicit *Config instead.
//
// # Category bindings
//
// Every built-in category key must be bound to a source: an entry in
// targets.tables, buckets.paths, or (when Redis is enabled) redis.caches.
// When several are present, the engine prefers the Redis cache, then the
// bucket, then the table.
package config
