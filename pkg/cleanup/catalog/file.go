package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"mercator-hq/janitor/pkg/cleanup"
)

// DefaultBatchSize is used when a category file entry omits one.
const DefaultBatchSize = 500

// File is the on-disk shape of a category file.
type File struct {
	Categories []cleanup.Category `yaml:"categories" toml:"categories"`
}

// LoadFile reads categories from a YAML (.yaml, .yml) or TOML (.toml) file,
// fills defaults, and validates them.
func LoadFile(path string) ([]cleanup.Category, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read category file %s: %w", path, err)
	}

	var f File
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse YAML category file %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &f); err != nil {
			return nil, fmt.Errorf("failed to parse TOML category file %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported category file extension %q", ext)
	}

	if err := Normalize(f.Categories); err != nil {
		return nil, fmt.Errorf("invalid category file %s: %w", path, err)
	}
	return f.Categories, nil
}

// Normalize fills defaults in place and rejects invalid or duplicate entries.
func Normalize(cats []cleanup.Category) error {
	seen := make(map[string]bool, len(cats))
	for i := range cats {
		c := &cats[i]
		if c.Key == "" {
			return cleanup.NewValidationError(fmt.Sprintf("categories[%d].key", i), "is required")
		}
		if c.ID == "" {
			c.ID = string(c.Key)
		}
		if c.Title == "" {
			c.Title = string(c.Key)
		}
		if !c.Kind.Valid() {
			return cleanup.NewValidationError(fmt.Sprintf("categories[%d].kind", i),
				fmt.Sprintf("must be one of database, storage, cache (got %q)", c.Kind))
		}
		if c.DefaultBatchSize == 0 {
			c.DefaultBatchSize = DefaultBatchSize
		}
		if c.DefaultBatchSize < 0 {
			return cleanup.NewValidationError(fmt.Sprintf("categories[%d].default_batch_size", i), "must be positive")
		}
		if c.RetentionDays < 0 {
			return cleanup.NewValidationError(fmt.Sprintf("categories[%d].retention_days", i), "must not be negative")
		}
		if seen[c.ID] {
			return cleanup.NewValidationError(fmt.Sprintf("categories[%d].id", i), fmt.Sprintf("duplicate id %q", c.ID))
		}
		seen[c.ID] = true
	}
	return nil
}

// Sync upserts categories into the store.
func Sync(ctx context.Context, store cleanup.Storage, cats []cleanup.Category) error {
	for i := range cats {
		if err := store.UpsertCategory(ctx, &cats[i]); err != nil {
			return fmt.Errorf("sync category %s: %w", cats[i].ID, err)
		}
	}
	return nil
}

// SyncFile loads path and upserts its categories. It returns how many were
// synced.
func SyncFile(ctx context.Context, store cleanup.Storage, path string) (int, error) {
	cats, err := LoadFile(path)
	if err != nil {
		return 0, err
	}
	if err := Sync(ctx, store, cats); err != nil {
		return 0, err
	}
	return len(cats), nil
}
