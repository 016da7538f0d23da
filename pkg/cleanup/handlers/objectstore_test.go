package handlers

import (
	"container/heap"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// writeObjects creates n files in dir with modification times one hour apart.
func writeObjects(t *testing.T, dir string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		sub := filepath.Join(dir, fmt.Sprintf("user%d", i%3))
		if err := os.MkdirAll(sub, 0o755); err != nil {
			t.Fatalf("MkdirAll failed: %v", err)
		}
		path := filepath.Join(sub, fmt.Sprintf("obj%03d.jpg", i))
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		mt := epoch.Add(time.Duration(i) * time.Hour)
		if err := os.Chtimes(path, mt, mt); err != nil {
			t.Fatalf("Chtimes failed: %v", err)
		}
	}
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	n := 0
	filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			n++
		}
		return nil
	})
	return n
}

func TestObjectStore_Handle(t *testing.T) {
	dir := t.TempDir()
	writeObjects(t, dir, 12)
	h := NewObjectStore(dir)
	ctx := context.Background()

	res, err := h.Handle(ctx, Request{BatchSize: 5})
	if err != nil {
		t.Fatalf("Handle() failed: %v", err)
	}
	if res.Deleted != 5 || !res.HasMore {
		t.Errorf("Expected 5 deleted with more, got %+v", res)
	}
	// The five oldest are gone.
	for i := 0; i < 5; i++ {
		path := filepath.Join(dir, fmt.Sprintf("user%d", i%3), fmt.Sprintf("obj%03d.jpg", i))
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("Expected %s to be deleted", path)
		}
	}

	res, _ = h.Handle(ctx, Request{BatchSize: 5})
	res, _ = h.Handle(ctx, Request{BatchSize: 5})
	if res.Deleted != 2 || res.HasMore {
		t.Errorf("Expected final batch of 2 without more, got %+v", res)
	}
	if n := countFiles(t, dir); n != 0 {
		t.Errorf("Expected no objects left, got %d", n)
	}
}

func TestObjectStore_CutoffRespect(t *testing.T) {
	dir := t.TempDir()
	writeObjects(t, dir, 10)
	h := NewObjectStore(dir)

	cutoff := epoch.Add(4 * time.Hour)
	for i := 0; i < 5; i++ {
		if _, err := h.Handle(context.Background(), Request{BatchSize: 3, Cutoff: &cutoff}); err != nil {
			t.Fatalf("Handle() failed: %v", err)
		}
	}
	if n := countFiles(t, dir); n != 6 {
		t.Errorf("Expected 6 objects at or after cutoff, got %d", n)
	}
}

func TestObjectStore_Estimate(t *testing.T) {
	dir := t.TempDir()
	writeObjects(t, dir, 10)
	h := NewObjectStore(dir)
	ctx := context.Background()

	if n, err := h.Estimate(ctx, nil); err != nil || n != 10 {
		t.Errorf("Estimate() = %d, %v; want 10", n, err)
	}
	cutoff := epoch.Add(3 * time.Hour)
	if n, _ := h.Estimate(ctx, &cutoff); n != 3 {
		t.Errorf("Estimate(cutoff) = %d, want 3", n)
	}
	h.EstimateCap = 4
	if n, _ := h.Estimate(ctx, nil); n != 4 {
		t.Errorf("Expected capped estimate 4, got %d", n)
	}
}

func TestObjectStore_MissingBucket(t *testing.T) {
	h := NewObjectStore(filepath.Join(t.TempDir(), "absent"))
	res, err := h.Handle(context.Background(), Request{BatchSize: 10})
	if err != nil {
		t.Fatalf("Handle() on missing bucket failed: %v", err)
	}
	if res.Deleted != 0 || res.HasMore {
		t.Errorf("Expected empty result, got %+v", res)
	}
}

func TestObjectStore_OldestSelectedFromLargerBucket(t *testing.T) {
	dir := t.TempDir()
	// Names ascend while modification times descend, so the walk visits the
	// newest objects first.
	for i := 0; i < 20; i++ {
		path := filepath.Join(dir, fmt.Sprintf("obj%03d.jpg", i))
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		mt := epoch.Add(time.Duration(20-i) * time.Hour)
		if err := os.Chtimes(path, mt, mt); err != nil {
			t.Fatalf("Chtimes failed: %v", err)
		}
	}
	// Two objects share the oldest timestamp; both fit in the batch.
	for _, name := range []string{"tie-b.jpg", "tie-a.jpg"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		if err := os.Chtimes(path, epoch, epoch); err != nil {
			t.Fatalf("Chtimes failed: %v", err)
		}
	}

	h := NewObjectStore(dir)
	res, err := h.Handle(context.Background(), Request{BatchSize: 4})
	if err != nil {
		t.Fatalf("Handle() failed: %v", err)
	}
	if res.Deleted != 4 || !res.HasMore {
		t.Fatalf("Expected 4 deleted with more, got %+v", res)
	}

	gone := []string{"tie-a.jpg", "tie-b.jpg", "obj019.jpg", "obj018.jpg"}
	for _, name := range gone {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("Expected %s to be deleted", name)
		}
	}
	if n := countFiles(t, dir); n != 18 {
		t.Errorf("Expected 18 objects left, got %d", n)
	}
}

func TestNewestFirst_KeepsOldest(t *testing.T) {
	objs := []object{
		{rel: "c", modTime: epoch.Add(3 * time.Hour)},
		{rel: "a", modTime: epoch.Add(time.Hour)},
		{rel: "e", modTime: epoch.Add(5 * time.Hour)},
		{rel: "b", modTime: epoch.Add(time.Hour)},
		{rel: "d", modTime: epoch.Add(2 * time.Hour)},
	}

	h := make(newestFirst, 0, 3)
	for _, obj := range objs {
		switch {
		case h.Len() < 3:
			heap.Push(&h, obj)
		case obj.older(h[0]):
			h[0] = obj
			heap.Fix(&h, 0)
		}
	}
	if h.Len() != 3 {
		t.Fatalf("Expected 3 survivors, got %d", h.Len())
	}
	if h[0].rel != "d" {
		t.Errorf("Expected newest survivor d at the root, got %s", h[0].rel)
	}

	var got []string
	for h.Len() > 0 {
		got = append([]string{heap.Pop(&h).(object).rel}, got...)
	}
	want := []string{"a", "b", "d"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected survivors %v, got %v", want, got)
			break
		}
	}
}
