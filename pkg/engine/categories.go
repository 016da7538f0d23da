package engine

import (
	"context"
	"strings"

	"mercator-hq/janitor/pkg/cleanup"
	"mercator-hq/janitor/pkg/cleanup/catalog"
)

// builtinTitles are display titles for the built-in keys.
var builtinTitles = map[cleanup.Key]string{
	cleanup.KeyMessages:      "Messages",
	cleanup.KeyNotifications: "Notifications",
	cleanup.KeyProfileVisits: "Profile visits",
	cleanup.KeyFeedCache:     "Feed cache",
	cleanup.KeyMediaUploads:  "Media uploads",
}

// SyncCategories loads the configured category file into the store. With
// no file configured it seeds a category for each built-in key the store
// does not know yet, leaving admin edits alone.
func (e *Engine) SyncCategories(ctx context.Context) error {
	if path := e.Config.Categories.File; path != "" {
		n, err := catalog.SyncFile(ctx, e.Store, path)
		if err != nil {
			return err
		}
		e.logger.Info("categories synced", "file", path, "count", n)
		return nil
	}
	return e.seedBuiltins(ctx)
}

func (e *Engine) seedBuiltins(ctx context.Context) error {
	existing, err := e.Store.ListCategories(ctx)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[c.ID] = true
	}

	for _, key := range cleanup.BuiltinKeys() {
		if have[string(key)] {
			continue
		}
		_, kind, ok, err := bindingFor(e.Config, string(key), e.TargetDB, e.Redis)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		cat := &cleanup.Category{
			ID:               string(key),
			Key:              key,
			Title:            builtinTitles[key],
			Kind:             kind,
			Enabled:          true,
			DefaultBatchSize: catalog.DefaultBatchSize,
		}
		if cat.Title == "" {
			cat.Title = strings.ReplaceAll(string(key), "_", " ")
		}
		if err := e.Store.UpsertCategory(ctx, cat); err != nil {
			return err
		}
		e.logger.Info("seeded built-in category", "category", cat.ID, "kind", cat.Kind)
	}
	return nil
}

// WatchCategories re-syncs the category file whenever it changes, until ctx
// is canceled. It returns immediately when watching is disabled.
func (e *Engine) WatchCategories(ctx context.Context) error {
	cfg := e.Config.Categories
	if cfg.File == "" || !cfg.Watch {
		return nil
	}

	w, err := catalog.NewWatcher(cfg.File, cfg.Debounce)
	if err != nil {
		return err
	}
	defer w.Stop()

	return w.Watch(ctx, func() error {
		n, err := catalog.SyncFile(ctx, e.Store, cfg.File)
		if err != nil {
			e.logger.Error("category reload failed", "file", cfg.File, "error", err)
			return err
		}
		e.logger.Info("categories reloaded", "file", cfg.File, "count", n)
		return nil
	})
}
