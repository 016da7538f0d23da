package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"mercator-hq/janitor/pkg/cleanup"
)

// MemoryStorage is an in-memory implementation of cleanup.Storage.
// All records are copied in and out so callers cannot mutate stored state.
type MemoryStorage struct {
	mu         sync.RWMutex
	categories map[string]cleanup.Category
	runs       map[string]*cleanup.Run
	closed     bool
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		categories: make(map[string]cleanup.Category),
		runs:       make(map[string]*cleanup.Run),
	}
}

func (m *MemoryStorage) checkOpen(op string) error {
	if m.closed {
		return cleanup.NewStorageError("memory", op, fmt.Errorf("storage is closed"))
	}
	return nil
}

// ListCategories returns all categories ordered by ID.
func (m *MemoryStorage) ListCategories(ctx context.Context) ([]cleanup.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkOpen("list_categories"); err != nil {
		return nil, err
	}

	out := make([]cleanup.Category, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetCategory returns a category by ID.
func (m *MemoryStorage) GetCategory(ctx context.Context, id string) (*cleanup.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkOpen("get_category"); err != nil {
		return nil, err
	}

	c, ok := m.categories[id]
	if !ok {
		return nil, cleanup.NewNotFoundError("category", id)
	}
	return &c, nil
}

// UpsertCategory creates or replaces a category.
func (m *MemoryStorage) UpsertCategory(ctx context.Context, category *cleanup.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen("upsert_category"); err != nil {
		return err
	}

	m.categories[category.ID] = *category
	return nil
}

// CreateRun inserts a run unless the category already has an active one.
// The check and the insert happen under one lock.
func (m *MemoryStorage) CreateRun(ctx context.Context, run *cleanup.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen("create_run"); err != nil {
		return err
	}

	if existing := m.activeLocked(run.CategoryID); existing != nil {
		return cleanup.NewConflictError(existing.ID, cleanup.ErrAlreadyActive)
	}
	if _, ok := m.runs[run.ID]; ok {
		return cleanup.NewStorageError("memory", "create_run", fmt.Errorf("duplicate run id %s", run.ID))
	}
	m.runs[run.ID] = run.Clone()
	return nil
}

// GetRun returns a run by ID.
func (m *MemoryStorage) GetRun(ctx context.Context, id string) (*cleanup.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkOpen("get_run"); err != nil {
		return nil, err
	}

	r, ok := m.runs[id]
	if !ok {
		return nil, cleanup.NewNotFoundError("run", id)
	}
	return r.Clone(), nil
}

// ActiveRun returns the running or paused run of a category, or nil.
func (m *MemoryStorage) ActiveRun(ctx context.Context, categoryID string) (*cleanup.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkOpen("active_run"); err != nil {
		return nil, err
	}
	return m.activeLocked(categoryID).Clone(), nil
}

func (m *MemoryStorage) activeLocked(categoryID string) *cleanup.Run {
	for _, r := range m.runs {
		if r.CategoryID == categoryID && r.Status.Active() {
			return r
		}
	}
	return nil
}

// LatestRuns returns the most recently started run of each category.
func (m *MemoryStorage) LatestRuns(ctx context.Context) (map[string]*cleanup.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkOpen("latest_runs"); err != nil {
		return nil, err
	}

	out := make(map[string]*cleanup.Run)
	for _, r := range m.runs {
		if cur, ok := out[r.CategoryID]; !ok || newer(r, cur) {
			out[r.CategoryID] = r
		}
	}
	for k, r := range out {
		out[k] = r.Clone()
	}
	return out, nil
}

// ApplyTick records a handler outcome if ProcessedBatches still matches.
func (m *MemoryStorage) ApplyTick(ctx context.Context, runID string, o cleanup.TickOutcome) (*cleanup.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen("apply_tick"); err != nil {
		return nil, err
	}

	r, ok := m.runs[runID]
	if !ok {
		return nil, cleanup.NewNotFoundError("run", runID)
	}
	if r.ProcessedBatches != o.ExpectedBatches {
		return r.Clone(), cleanup.NewConflictError(runID,
			fmt.Sprintf("run %s advanced concurrently (expected %d batches, found %d)",
				runID, o.ExpectedBatches, r.ProcessedBatches))
	}

	if o.Err != "" {
		if r.Status != cleanup.StatusRunning {
			return r.Clone(), nil
		}
		msg := o.Err
		r.LastError = &msg
		if o.RetryAfter != nil {
			t := *o.RetryAfter
			r.RetryAfter = &t
		} else {
			r.RetryAfter = nil
		}
		r.UpdatedAt = o.Now
		return r.Clone(), nil
	}

	r.ProcessedCount += int64(o.Deleted)
	r.ProcessedBatches++
	if len(o.Checkpoint) > 0 {
		r.Checkpoint = append([]byte(nil), o.Checkpoint...)
	} else {
		r.Checkpoint = nil
	}
	r.LastError = nil
	r.RetryAfter = nil
	r.UpdatedAt = o.Now
	if o.Finished && r.Status == cleanup.StatusRunning {
		r.Status = cleanup.StatusDone
		t := o.Now
		r.FinishedAt = &t
	}
	return r.Clone(), nil
}

// Transition applies a guarded status change.
func (m *MemoryStorage) Transition(ctx context.Context, runID string, t cleanup.Transition) (*cleanup.Run, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen("transition"); err != nil {
		return nil, false, err
	}

	r, ok := m.runs[runID]
	if !ok {
		return nil, false, cleanup.NewNotFoundError("run", runID)
	}
	if !t.Allows(r.Status) {
		return r.Clone(), false, nil
	}

	r.Status = t.To
	r.UpdatedAt = t.Now
	if t.ClearRetryAfter {
		r.RetryAfter = nil
	}
	if t.LastError != nil {
		msg := *t.LastError
		r.LastError = &msg
	}
	if t.Finish {
		now := t.Now
		r.FinishedAt = &now
	}
	return r.Clone(), true, nil
}

// Ping reports whether the store is open.
func (m *MemoryStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.checkOpen("ping")
}

// Close marks the store closed. Subsequent calls fail.
func (m *MemoryStorage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var (
	_ cleanup.Storage = (*MemoryStorage)(nil)
	_ cleanup.Storage = (*SQLiteStorage)(nil)
	_ cleanup.Storage = (*PostgresStorage)(nil)
)
