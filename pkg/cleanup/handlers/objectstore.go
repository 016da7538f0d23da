package handlers

import (
	"container/heap"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"mercator-hq/janitor/pkg/cleanup"
)

// ObjectStore purges objects from a bucket mounted as a directory. An
// object's retention timestamp is its modification time.
type ObjectStore struct {
	root string

	// EstimateCap bounds how many objects Estimate counts.
	EstimateCap int64
}

// NewObjectStore returns a handler for the bucket rooted at dir.
func NewObjectStore(dir string) *ObjectStore {
	return &ObjectStore{root: dir, EstimateCap: 100000}
}

type object struct {
	path    string
	rel     string
	modTime time.Time
}

// older reports whether a sorts before b in deletion order.
func (a object) older(b object) bool {
	if !a.modTime.Equal(b.modTime) {
		return a.modTime.Before(b.modTime)
	}
	return a.rel < b.rel
}

// newestFirst is a max-heap holding the oldest objects seen so far; its root
// is the newest of them.
type newestFirst []object

func (h newestFirst) Len() int           { return len(h) }
func (h newestFirst) Less(i, j int) bool { return h[j].older(h[i]) }
func (h newestFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *newestFirst) Push(x any)        { *h = append(*h, x.(object)) }
func (h *newestFirst) Pop() any {
	old := *h
	obj := old[len(old)-1]
	*h = old[:len(old)-1]
	return obj
}

// eligible walks the bucket and calls fn for each object older than cutoff.
// fn returns false to stop the walk.
func (o *ObjectStore) eligible(ctx context.Context, cutoff *time.Time, fn func(object) bool) error {
	err := filepath.WalkDir(o.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if cutoff != nil && !info.ModTime().Before(*cutoff) {
			return nil
		}
		rel, _ := filepath.Rel(o.root, path)
		if !fn(object{path: path, rel: filepath.ToSlash(rel), modTime: info.ModTime()}) {
			return fs.SkipAll
		}
		return nil
	})
	return err
}

// Handle deletes up to BatchSize of the oldest eligible objects, ordered by
// (modification time, path).
func (o *ObjectStore) Handle(ctx context.Context, req Request) (Result, error) {
	if req.BatchSize <= 0 {
		return Result{}, cleanup.NewValidationError("batchSize", "must be positive")
	}

	// Keep at most BatchSize of the oldest objects while walking.
	candidates := make(newestFirst, 0, req.BatchSize)
	if err := o.eligible(ctx, req.Cutoff, func(obj object) bool {
		switch {
		case candidates.Len() < req.BatchSize:
			heap.Push(&candidates, obj)
		case obj.older(candidates[0]):
			candidates[0] = obj
			heap.Fix(&candidates, 0)
		}
		return true
	}); err != nil {
		return Result{}, cleanup.NewTransientStorageError("list", err)
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].older(candidates[j]) })

	deleted := 0
	for _, obj := range candidates {
		if err := os.Remove(obj.path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			// Objects already removed stay removed; the next call picks up the rest.
			return Result{}, cleanup.NewTransientStorageError("delete", err)
		}
		deleted++
	}

	return Result{Deleted: deleted, HasMore: hasMore(deleted, req.BatchSize)}, nil
}

// Estimate counts eligible objects, saturating at EstimateCap.
func (o *ObjectStore) Estimate(ctx context.Context, cutoff *time.Time) (int64, error) {
	limit := o.EstimateCap
	var n int64
	err := o.eligible(ctx, cutoff, func(object) bool {
		n++
		return limit <= 0 || n < limit
	})
	if err != nil {
		return 0, cleanup.NewTransientStorageError("estimate", err)
	}
	return n, nil
}

// Binding returns o as both handler and estimator.
func (o *ObjectStore) Binding() Binding {
	return Binding{Handler: o, Estimator: o}
}
