package cleanup

import (
	"context"
	"encoding/json"
	"time"
)

// Key identifies which handler applies to a category.
type Key string

// Built-in category keys. Categories configured at runtime may use other keys;
// those resolve through the registry's dynamic bindings.
const (
	KeyMessages      Key = "messages"
	KeyNotifications Key = "notifications"
	KeyProfileVisits Key = "profile_visits"
	KeyFeedCache     Key = "feed_cache"
	KeyMediaUploads  Key = "media_uploads"
)

// BuiltinKeys returns every built-in category key in declaration order.
func BuiltinKeys() []Key {
	return []Key{KeyMessages, KeyNotifications, KeyProfileVisits, KeyFeedCache, KeyMediaUploads}
}

// Kind classifies where a category's data lives.
type Kind string

const (
	// KindDatabase purges rows from an application database table.
	KindDatabase Kind = "database"
	// KindStorage purges objects from a storage bucket.
	KindStorage Kind = "storage"
	// KindCache purges entries from a cache server.
	KindCache Kind = "cache"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindDatabase, KindStorage, KindCache:
		return true
	}
	return false
}

// Status is the state of a run.
type Status string

const (
	StatusRunning       Status = "running"
	StatusPaused        Status = "paused"
	StatusDone          Status = "done"
	StatusErrorTerminal Status = "error-terminal"
)

// Active reports whether the status counts toward the single-active-run rule.
func (s Status) Active() bool {
	return s == StatusRunning || s == StatusPaused
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusErrorTerminal
}

// Category is a declared class of purgeable data bound to a handler by Key.
type Category struct {
	ID               string `json:"id" yaml:"id" toml:"id"`
	Key              Key    `json:"key" yaml:"key" toml:"key"`
	Title            string `json:"title" yaml:"title" toml:"title"`
	Description      string `json:"description,omitempty" yaml:"description" toml:"description"`
	Kind             Kind   `json:"kind" yaml:"kind" toml:"kind"`
	Enabled          bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	DefaultBatchSize int    `json:"defaultBatchSize" yaml:"default_batch_size" toml:"default_batch_size"`

	// RetentionDays supplies the cutoff when a tick does not pass one.
	// 0 means every item is eligible unless the caller supplies a cutoff.
	RetentionDays int `json:"retentionDays,omitempty" yaml:"retention_days" toml:"retention_days"`
}

// Run is one execution of a category's cleanup.
type Run struct {
	ID               string          `json:"id"`
	CategoryID       string          `json:"categoryId"`
	Status           Status          `json:"status"`
	Checkpoint       json.RawMessage `json:"checkpoint,omitempty"`
	ProcessedCount   int64           `json:"processedCount"`
	ProcessedBatches int64           `json:"processedBatches"`
	LastError        *string         `json:"lastError,omitempty"`
	RetryAfter       *time.Time      `json:"retryAfter,omitempty"`
	StartedAt        time.Time       `json:"startedAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
	FinishedAt       *time.Time      `json:"finishedAt,omitempty"`
}

// Clone returns a deep copy of the run.
func (r *Run) Clone() *Run {
	if r == nil {
		return nil
	}
	c := *r
	if r.Checkpoint != nil {
		c.Checkpoint = append(json.RawMessage(nil), r.Checkpoint...)
	}
	if r.LastError != nil {
		msg := *r.LastError
		c.LastError = &msg
	}
	if r.RetryAfter != nil {
		t := *r.RetryAfter
		c.RetryAfter = &t
	}
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

// TickOptions carries the optional per-tick overrides.
type TickOptions struct {
	// BatchSize overrides the category default when > 0.
	BatchSize int

	// Cutoff overrides the category retention when non-nil.
	Cutoff *time.Time
}

// TickResult is the structured outcome of a tick. Transient handler failures
// are reported here rather than as an error.
type TickResult struct {
	RunID            string     `json:"runId"`
	Status           Status     `json:"status"`
	Deleted          int        `json:"deleted"`
	HasMore          bool       `json:"hasMore"`
	Done             bool       `json:"done,omitempty"`
	ProcessedCount   int64      `json:"processedCount"`
	ProcessedBatches int64      `json:"processedBatches"`
	LastError        *string    `json:"lastError,omitempty"`
	RetryAfter       *time.Time `json:"retryAfter,omitempty"`

	// Skipped is true when the tick performed no work: the run was not
	// running, or RetryAfter had not elapsed under strict enforcement.
	Skipped bool `json:"skipped,omitempty"`
}

// CategoryStatus pairs a category with its most recent run.
type CategoryStatus struct {
	Category Category `json:"category"`
	LastRun  *Run     `json:"lastRun,omitempty"`
}

// TickOutcome is the delta a storage backend applies after a handler call.
type TickOutcome struct {
	// ExpectedBatches is the ProcessedBatches value the tick observed. The
	// update is rejected if it no longer matches.
	ExpectedBatches int64

	// Success fields.
	Deleted    int
	Checkpoint json.RawMessage
	Finished   bool

	// Failure fields. When Err is non-empty no counters change.
	Err        string
	RetryAfter *time.Time

	Now time.Time
}

// Transition describes a guarded status change.
type Transition struct {
	From []Status
	To   Status

	// ClearRetryAfter resets RetryAfter as part of the change.
	ClearRetryAfter bool

	// LastError, when non-nil, is recorded with the change.
	LastError *string

	// Finish stamps FinishedAt.
	Finish bool

	Now time.Time
}

// Allows reports whether the transition may start from s.
func (t Transition) Allows(s Status) bool {
	for _, from := range t.From {
		if from == s {
			return true
		}
	}
	return false
}

// Storage persists categories and runs.
// Implementations must be thread-safe and support concurrent access.
type Storage interface {
	// ListCategories returns all categories, enabled or not.
	ListCategories(ctx context.Context) ([]Category, error)

	// GetCategory returns a category by ID or a NotFoundError.
	GetCategory(ctx context.Context, id string) (*Category, error)

	// UpsertCategory creates or replaces a category.
	UpsertCategory(ctx context.Context, category *Category) error

	// CreateRun inserts a run. If the category already has an active run it
	// returns a ConflictError carrying that run's ID and inserts nothing.
	CreateRun(ctx context.Context, run *Run) error

	// GetRun returns a run by ID or a NotFoundError.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ActiveRun returns the running or paused run of a category, or nil.
	ActiveRun(ctx context.Context, categoryID string) (*Run, error)

	// LatestRuns returns the most recently started run of each category.
	LatestRuns(ctx context.Context) (map[string]*Run, error)

	// ApplyTick records a handler outcome. It returns a ConflictError when
	// outcome.ExpectedBatches no longer matches the stored run.
	ApplyTick(ctx context.Context, runID string, outcome TickOutcome) (*Run, error)

	// Transition applies a guarded status change. changed is false when the
	// run's current status is not in t.From; the run is returned either way.
	Transition(ctx context.Context, runID string, t Transition) (run *Run, changed bool, err error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the storage backend.
	Close() error
}
