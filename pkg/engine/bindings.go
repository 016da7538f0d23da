package engine

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/redis/go-redis/v9"

	"mercator-hq/janitor/pkg/cleanup"
	"mercator-hq/janitor/pkg/cleanup/batch"
	"mercator-hq/janitor/pkg/cleanup/handlers"
	"mercator-hq/janitor/pkg/config"
)

func openTargets(cfg *config.TargetsConfig) (*sql.DB, error) {
	return batch.Open(batch.OpenConfig{
		Dialect:      batch.Dialect(cfg.Dialect),
		DSN:          cfg.DSN,
		MaxOpenConns: cfg.MaxOpenConns,
	})
}

// bindingFor resolves the handler for key. A Redis cache wins over a
// bucket, and a bucket wins over a table. ok is false when nothing in the
// configuration names key.
func bindingFor(cfg *config.Config, key string, db *sql.DB, rdb *redis.Client) (b handlers.Binding, kind cleanup.Kind, ok bool, err error) {
	if c, found := cfg.Redis.Caches[key]; found && rdb != nil {
		return handlers.NewRedisCache(rdb, c.IndexKey, c.KeyPrefix).Binding(), cleanup.KindCache, true, nil
	}

	if p, found := cfg.Buckets.Paths[key]; found {
		dir := p
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(cfg.Buckets.Root, dir)
		}
		store := handlers.NewObjectStore(dir)
		store.EstimateCap = cfg.Buckets.EstimateCap
		return store.Binding(), cleanup.KindStorage, true, nil
	}

	if t, found := cfg.Targets.Tables[key]; found && db != nil {
		d, err := batch.NewDeleter(db, batch.Dialect(cfg.Targets.Dialect), batch.Target{
			Table:           t.Table,
			TimestampColumn: t.TimestampColumn,
			IDColumn:        t.IDColumn,
			TimeFormat:      batch.TimeFormat(t.TimeFormat),
		})
		if err != nil {
			return handlers.Binding{}, "", false, fmt.Errorf("targets.tables.%s: %w", key, err)
		}
		d.EstimateCap = cfg.Targets.EstimateCap
		return handlers.NewSQLTable(d).Binding(), cleanup.KindDatabase, true, nil
	}

	return handlers.Binding{}, "", false, nil
}

// buildHandlers binds every built-in key, then registers any extra keys
// the configuration names as runtime bindings.
func buildHandlers(cfg *config.Config, db *sql.DB, rdb *redis.Client) (*handlers.Registry, error) {
	bound := make(map[cleanup.Key]handlers.Binding)
	for _, key := range cleanup.BuiltinKeys() {
		b, _, ok, err := bindingFor(cfg, string(key), db, rdb)
		if err != nil {
			return nil, err
		}
		if ok {
			bound[key] = b
		}
	}

	registry, err := handlers.NewRegistry(handlers.Builtins{
		Messages:      bound[cleanup.KeyMessages],
		Notifications: bound[cleanup.KeyNotifications],
		ProfileVisits: bound[cleanup.KeyProfileVisits],
		FeedCache:     bound[cleanup.KeyFeedCache],
		MediaUploads:  bound[cleanup.KeyMediaUploads],
	})
	if err != nil {
		return nil, err
	}

	for _, key := range extraKeys(cfg) {
		b, _, ok, err := bindingFor(cfg, key, db, rdb)
		if err != nil {
			return nil, err
		}
		if ok {
			registry.Register(cleanup.Key(key), b.Handler, b.Estimator)
		}
	}
	return registry, nil
}

// extraKeys lists configured keys that are not built in, sorted.
func extraKeys(cfg *config.Config) []string {
	builtin := make(map[string]bool)
	for _, k := range cleanup.BuiltinKeys() {
		builtin[string(k)] = true
	}

	seen := make(map[string]bool)
	add := func(k string) {
		if !builtin[k] {
			seen[k] = true
		}
	}
	for k := range cfg.Targets.Tables {
		add(k)
	}
	for k := range cfg.Buckets.Paths {
		add(k)
	}
	if cfg.Redis.Enabled {
		for k := range cfg.Redis.Caches {
			add(k)
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
