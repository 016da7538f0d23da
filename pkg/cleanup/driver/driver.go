package driver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"mercator-hq/janitor/pkg/cleanup"
)

// Reasons a category drain ended.
const (
	ReasonDone      = "done"
	ReasonBudget    = "budget"
	ReasonWaiting   = "waiting"
	ReasonInactive  = "inactive"
	ReasonSoftError = "soft_error"
	ReasonError     = "error"
	ReasonCanceled  = "canceled"
)

// Engine is the part of the run controller the driver needs.
type Engine interface {
	List(ctx context.Context) ([]cleanup.CategoryStatus, error)
	Start(ctx context.Context, categoryID string) (*cleanup.Run, error)
	Tick(ctx context.Context, runID string, opts cleanup.TickOptions) (*cleanup.TickResult, error)
}

// Config controls drain behavior.
type Config struct {
	// MaxTicksPerDrain bounds the ticks spent on one category per drain.
	// Default: 100
	MaxTicksPerDrain int

	// Concurrency bounds how many categories drain at once.
	// Default: 1
	Concurrency int

	// Now defaults to time.Now.
	Now func() time.Time
}

// CategoryReport summarizes one category's drain.
type CategoryReport struct {
	CategoryID string         `json:"categoryId"`
	RunID      string         `json:"runId,omitempty"`
	Ticks      int            `json:"ticks"`
	Deleted    int64          `json:"deleted"`
	Status     cleanup.Status `json:"status,omitempty"`
	Reason     string         `json:"reason"`
	Error      string         `json:"error,omitempty"`
}

// Report is the outcome of one drain over all categories.
type Report struct {
	StartedAt  time.Time        `json:"startedAt"`
	Duration   time.Duration    `json:"duration"`
	Categories []CategoryReport `json:"categories"`
}

// Deleted sums deletions across categories.
func (r *Report) Deleted() int64 {
	var n int64
	for _, c := range r.Categories {
		n += c.Deleted
	}
	return n
}

// Driver drains categories through an Engine.
type Driver struct {
	engine Engine
	config Config
	logger *slog.Logger
}

// New creates a Driver.
func New(engine Engine, config Config) *Driver {
	if config.MaxTicksPerDrain <= 0 {
		config.MaxTicksPerDrain = 100
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Driver{
		engine: engine,
		config: config,
		logger: slog.Default().With("component", "cleanup.driver"),
	}
}

// Drain runs one pass over every enabled category. Per-category failures
// are reported, not returned; the error is non-nil only when the category
// list itself cannot be read.
func (d *Driver) Drain(ctx context.Context) (*Report, error) {
	started := d.config.Now()

	list, err := d.engine.List(ctx)
	if err != nil {
		return nil, err
	}

	reports := make([]CategoryReport, len(list))

	g := &errgroup.Group{}
	g.SetLimit(d.config.Concurrency)
	for i, cs := range list {
		g.Go(func() error {
			reports[i] = d.drainCategory(ctx, cs)
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{
		StartedAt:  started,
		Duration:   d.config.Now().Sub(started),
		Categories: reports,
	}
	d.logger.Info("drain completed",
		"categories", len(reports),
		"deleted", report.Deleted(),
		"duration", report.Duration,
	)
	return report, nil
}

// DrainCategory drains a single category by ID.
func (d *Driver) DrainCategory(ctx context.Context, categoryID string) (CategoryReport, error) {
	list, err := d.engine.List(ctx)
	if err != nil {
		return CategoryReport{}, err
	}
	for _, cs := range list {
		if cs.Category.ID == categoryID {
			return d.drainCategory(ctx, cs), nil
		}
	}
	return CategoryReport{}, cleanup.NewNotFoundError("category", categoryID)
}

func (d *Driver) drainCategory(ctx context.Context, cs cleanup.CategoryStatus) CategoryReport {
	rep := CategoryReport{CategoryID: cs.Category.ID}
	logger := d.logger.With("category", cs.Category.ID)

	if last := cs.LastRun; last != nil && last.Status == cleanup.StatusRunning &&
		last.RetryAfter != nil && d.config.Now().Before(*last.RetryAfter) {
		rep.RunID = last.ID
		rep.Status = last.Status
		rep.Reason = ReasonWaiting
		logger.Debug("run waiting for retryAfter", "run_id", last.ID, "retry_after", *last.RetryAfter)
		return rep
	}

	runID, err := d.attachOrStart(ctx, cs.Category.ID)
	if err != nil {
		rep.Reason = ReasonError
		rep.Error = err.Error()
		logger.Error("failed to start run", "error", err)
		return rep
	}
	rep.RunID = runID

	for rep.Ticks < d.config.MaxTicksPerDrain {
		if ctx.Err() != nil {
			rep.Reason = ReasonCanceled
			return rep
		}

		res, err := d.engine.Tick(ctx, runID, cleanup.TickOptions{})
		if res != nil {
			rep.Status = res.Status
		}
		if err != nil {
			rep.Reason = ReasonError
			rep.Error = err.Error()
			logger.Error("tick failed", "run_id", runID, "error", err)
			return rep
		}

		if res.Skipped {
			rep.Reason = ReasonInactive
			if res.Status == cleanup.StatusRunning {
				rep.Reason = ReasonWaiting
			}
			return rep
		}

		rep.Ticks++
		rep.Deleted += int64(res.Deleted)

		switch {
		case res.LastError != nil:
			rep.Reason = ReasonSoftError
			rep.Error = *res.LastError
			logger.Warn("run hit a soft error, retrying next drain", "run_id", runID, "error", *res.LastError)
			return rep
		case res.Done || !res.HasMore:
			rep.Reason = ReasonDone
			return rep
		}
	}

	rep.Reason = ReasonBudget
	return rep
}

func (d *Driver) attachOrStart(ctx context.Context, categoryID string) (string, error) {
	run, err := d.engine.Start(ctx, categoryID)
	if err == nil {
		return run.ID, nil
	}
	var conflict *cleanup.ConflictError
	if errors.As(err, &conflict) && conflict.RunID != "" {
		return conflict.RunID, nil
	}
	return "", err
}
