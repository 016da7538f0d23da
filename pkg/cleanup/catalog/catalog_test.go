package catalog

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"mercator-hq/janitor/pkg/cleanup"
	"mercator-hq/janitor/pkg/cleanup/storage"
)

func TestRegistry_ListEnabled(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	for _, c := range []cleanup.Category{
		{ID: "feed", Key: cleanup.KeyFeedCache, Title: "Feed cache", Kind: cleanup.KindCache, Enabled: true},
		{ID: "media", Key: cleanup.KeyMediaUploads, Title: "Media uploads", Kind: cleanup.KindStorage, Enabled: true},
		{ID: "visits", Key: cleanup.KeyProfileVisits, Title: "profile visits", Kind: cleanup.KindDatabase, Enabled: true},
		{ID: "messages", Key: cleanup.KeyMessages, Title: "Messages", Kind: cleanup.KindDatabase, Enabled: true},
		{ID: "notif", Key: cleanup.KeyNotifications, Title: "Notifications", Kind: cleanup.KindDatabase, Enabled: false},
	} {
		c := c
		store.UpsertCategory(ctx, &c)
	}

	got, err := NewRegistry(store).ListEnabled(ctx)
	if err != nil {
		t.Fatalf("ListEnabled() failed: %v", err)
	}

	want := []string{"messages", "visits", "media", "feed"}
	if len(got) != len(want) {
		t.Fatalf("Expected %d categories, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
}

func TestLoadFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.yaml")
	content := `
categories:
  - key: messages
    title: Direct messages
    kind: database
    enabled: true
    default_batch_size: 200
    retention_days: 365
  - key: feed_cache
    kind: cache
    enabled: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	cats, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if len(cats) != 2 {
		t.Fatalf("Expected 2 categories, got %d", len(cats))
	}
	if cats[0].ID != "messages" || cats[0].DefaultBatchSize != 200 || cats[0].RetentionDays != 365 {
		t.Errorf("Unexpected first category: %+v", cats[0])
	}
	if cats[1].Title != "feed_cache" || cats[1].DefaultBatchSize != DefaultBatchSize {
		t.Errorf("Expected defaults on second category, got %+v", cats[1])
	}
}

func TestLoadFile_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.toml")
	content := `
[[categories]]
id = "uploads"
key = "media_uploads"
title = "Media uploads"
kind = "storage"
enabled = true
retention_days = 30
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	cats, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if len(cats) != 1 || cats[0].ID != "uploads" || cats[0].Kind != cleanup.KindStorage || cats[0].RetentionDays != 30 {
		t.Errorf("Unexpected categories: %+v", cats)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"missing key", "c.yaml", "categories:\n  - kind: database\n"},
		{"bad kind", "c.yaml", "categories:\n  - key: messages\n    kind: queue\n"},
		{"duplicate id", "c.yaml", "categories:\n  - key: messages\n    kind: database\n  - key: messages\n    kind: database\n"},
		{"negative retention", "c.yaml", "categories:\n  - key: messages\n    kind: database\n    retention_days: -1\n"},
		{"bad extension", "c.json", "{}"},
		{"bad yaml", "c.yaml", "categories: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			os.WriteFile(path, []byte(tt.content), 0o644)
			if _, err := LoadFile(path); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestSyncFile(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	path := filepath.Join(t.TempDir(), "categories.yml")
	os.WriteFile(path, []byte("categories:\n  - key: messages\n    kind: database\n    enabled: true\n"), 0o644)

	n, err := SyncFile(ctx, store, path)
	if err != nil {
		t.Fatalf("SyncFile() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 synced category, got %d", n)
	}
	if _, err := store.GetCategory(ctx, "messages"); err != nil {
		t.Errorf("Expected category in store: %v", err)
	}
}

func TestWatcher_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "categories.yaml")
	os.WriteFile(path, []byte("categories: []\n"), 0o644)

	w, err := NewWatcher(path, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}

	var reloads int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Watch(ctx, func() error {
		atomic.AddInt32(&reloads, 1)
		return nil
	})
	// Give the watcher time to register.
	time.Sleep(50 * time.Millisecond)

	// Unrelated files are ignored.
	os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o644)
	for i := 0; i < 3; i++ {
		os.WriteFile(path, []byte("categories: []\n# edit\n"), 0o644)
	}

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&reloads) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if atomic.LoadInt32(&reloads) == 0 {
		t.Fatal("Expected a reload after file change")
	}

	if err := w.Stop(); err != nil {
		t.Errorf("Stop() failed: %v", err)
	}
}
