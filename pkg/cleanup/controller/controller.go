package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/janitor/pkg/cleanup"
	"mercator-hq/janitor/pkg/cleanup/catalog"
	"mercator-hq/janitor/pkg/cleanup/handlers"
	"mercator-hq/janitor/pkg/cleanup/lock"
	"mercator-hq/janitor/pkg/telemetry/logging"
	"mercator-hq/janitor/pkg/telemetry/tracing"
)

// Tick outcomes reported to Metrics.
const (
	OutcomeSuccess   = "success"
	OutcomeDone      = "done"
	OutcomeSoftError = "soft_error"
	OutcomeSkipped   = "skipped"
	OutcomeTerminal  = "terminal"
)

// Metrics receives controller events. *metrics.Collector satisfies it.
type Metrics interface {
	RecordTick(category, outcome string, deleted int, duration time.Duration)
	RecordTransition(category, status string)
	RecordEstimate(category string, estimate int64)
}

type noopMetrics struct{}

func (noopMetrics) RecordTick(string, string, int, time.Duration) {}
func (noopMetrics) RecordTransition(string, string)               {}
func (noopMetrics) RecordEstimate(string, int64)                  {}

// Config wires a Controller.
type Config struct {
	// Storage persists categories and runs. Required.
	Storage cleanup.Storage

	// Handlers resolves category keys. Required.
	Handlers *handlers.Registry

	// Locker serializes ticks per run. Defaults to an in-process lock.
	Locker lock.Locker

	Metrics Metrics
	Tracer  *tracing.Tracer
	Logger  *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time

	// NewID generates run IDs. Defaults to uuid.NewString.
	NewID func() string

	// EnforceRetryAfter makes Tick skip a run whose retryAfter is in the
	// future instead of calling the handler.
	EnforceRetryAfter bool

	// MaxBatchSize caps an explicit batch size override. 0 means no cap.
	MaxBatchSize int

	// TickTimeout bounds a single handler call. 0 means no extra bound.
	TickTimeout time.Duration
}

// Controller creates, ticks, pauses, resumes and stops runs.
type Controller struct {
	store    cleanup.Storage
	handlers *handlers.Registry
	catalog  *catalog.Registry
	locker   lock.Locker
	metrics  Metrics
	tracer   *tracing.Tracer
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string

	enforceRetryAfter bool
	maxBatchSize      int
	tickTimeout       time.Duration
}

// New creates a Controller.
func New(cfg Config) (*Controller, error) {
	if cfg.Storage == nil {
		return nil, errors.New("controller: storage is required")
	}
	if cfg.Handlers == nil {
		return nil, errors.New("controller: handler registry is required")
	}

	c := &Controller{
		store:             cfg.Storage,
		handlers:          cfg.Handlers,
		catalog:           catalog.NewRegistry(cfg.Storage),
		locker:            cfg.Locker,
		metrics:           cfg.Metrics,
		tracer:            cfg.Tracer,
		logger:            cfg.Logger,
		now:               cfg.Now,
		newID:             cfg.NewID,
		enforceRetryAfter: cfg.EnforceRetryAfter,
		maxBatchSize:      cfg.MaxBatchSize,
		tickTimeout:       cfg.TickTimeout,
	}
	if c.locker == nil {
		c.locker = lock.NewLocal()
	}
	if c.metrics == nil {
		c.metrics = noopMetrics{}
	}
	if c.tracer == nil {
		c.tracer = tracing.Noop()
	}
	if c.logger == nil {
		c.logger = slog.Default().With("component", "cleanup.controller")
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	return c, nil
}

// List returns enabled categories, ordered by kind then title, each with its
// most recent run.
func (c *Controller) List(ctx context.Context) ([]cleanup.CategoryStatus, error) {
	cats, err := c.catalog.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}
	latest, err := c.store.LatestRuns(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]cleanup.CategoryStatus, 0, len(cats))
	for _, cat := range cats {
		out = append(out, cleanup.CategoryStatus{Category: cat, LastRun: latest[cat.ID]})
	}
	return out, nil
}

// Run returns a run by ID.
func (c *Controller) Run(ctx context.Context, runID string) (*cleanup.Run, error) {
	if runID == "" {
		return nil, cleanup.NewValidationError("runId", "is required")
	}
	return c.store.GetRun(ctx, runID)
}

// ActiveRun returns the running or paused run of a category, or nil.
func (c *Controller) ActiveRun(ctx context.Context, categoryID string) (*cleanup.Run, error) {
	return c.store.ActiveRun(ctx, categoryID)
}

// Start creates a running run for a category. If the category already has
// an active run it returns a ConflictError carrying that run's ID.
func (c *Controller) Start(ctx context.Context, categoryID string) (*cleanup.Run, error) {
	if categoryID == "" {
		return nil, cleanup.NewValidationError("itemId", "is required")
	}

	ctx, span := c.tracer.Start(ctx, "cleanup.start")
	defer span.End()
	tracing.SetRunAttributes(span, categoryID, "")

	cat, err := c.store.GetCategory(ctx, categoryID)
	if err != nil {
		tracing.SetStatus(span, err)
		return nil, err
	}
	if !cat.Enabled {
		err := cleanup.NewValidationError("itemId", fmt.Sprintf("category %s is disabled", categoryID))
		tracing.SetStatus(span, err)
		return nil, err
	}

	existing, err := c.store.ActiveRun(ctx, categoryID)
	if err != nil {
		tracing.SetStatus(span, err)
		return nil, err
	}
	if existing != nil {
		return nil, cleanup.NewConflictError(existing.ID, cleanup.ErrAlreadyActive)
	}

	now := c.now()
	run := &cleanup.Run{
		ID:         c.newID(),
		CategoryID: categoryID,
		Status:     cleanup.StatusRunning,
		StartedAt:  now,
		UpdatedAt:  now,
	}
	if err := c.store.CreateRun(ctx, run); err != nil {
		tracing.SetStatus(span, err)
		return nil, err
	}

	span.SetAttributes(attrRunID(run.ID))
	c.metrics.RecordTransition(categoryID, string(cleanup.StatusRunning))
	c.logger.InfoContext(logging.WithRunID(ctx, run.ID), "run started",
		"category", categoryID,
		"key", cat.Key,
	)
	return run, nil
}

// Tick performs at most one batch of work on a running run.
//
// Handler failures are not returned as errors: they are recorded on the run
// and reported in the result with HasMore set. A missing handler moves the
// run to error-terminal and returns both the result and a
// HandlerMissingError.
func (c *Controller) Tick(ctx context.Context, runID string, opts cleanup.TickOptions) (*cleanup.TickResult, error) {
	if runID == "" {
		return nil, cleanup.NewValidationError("runId", "is required")
	}
	if opts.BatchSize < 0 {
		return nil, cleanup.NewValidationError("batchSize", "must not be negative")
	}

	unlock, err := c.locker.Lock(ctx, "run:"+runID)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, cleanup.NewConflictError(runID, fmt.Sprintf("run %s is being ticked elsewhere", runID))
		}
		return nil, err
	}
	defer unlock()

	ctx, span := c.tracer.Start(ctx, "cleanup.tick")
	defer span.End()

	res, err := c.tick(logging.WithRunID(ctx, runID), span, runID, opts)
	tracing.SetStatus(span, err)
	return res, err
}

func (c *Controller) tick(ctx context.Context, span trace.Span, runID string, opts cleanup.TickOptions) (*cleanup.TickResult, error) {
	run, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	tracing.SetRunAttributes(span, run.CategoryID, runID)

	if run.Status != cleanup.StatusRunning {
		c.metrics.RecordTick(run.CategoryID, OutcomeSkipped, 0, 0)
		return skipped(run, false), nil
	}

	now := c.now()
	if c.enforceRetryAfter && run.RetryAfter != nil && now.Before(*run.RetryAfter) {
		c.metrics.RecordTick(run.CategoryID, OutcomeSkipped, 0, 0)
		return skipped(run, true), nil
	}

	cat, err := c.store.GetCategory(ctx, run.CategoryID)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithCategory(ctx, cat.ID)

	h, ok := c.handlers.Handler(cat.Key)
	if !ok {
		return c.failTerminal(ctx, run, cat)
	}

	batchSize := c.effectiveBatchSize(opts, cat)
	cutoff := effectiveCutoff(opts.Cutoff, cat, now)

	hctx := ctx
	if c.tickTimeout > 0 {
		var cancel context.CancelFunc
		hctx, cancel = context.WithTimeout(ctx, c.tickTimeout)
		defer cancel()
	}

	started := time.Now()
	out, herr := h.Handle(hctx, handlers.Request{
		Checkpoint: run.Checkpoint,
		BatchSize:  batchSize,
		Cutoff:     cutoff,
	})
	elapsed := time.Since(started)

	if herr != nil {
		return c.recordFailure(ctx, run, herr, now, elapsed)
	}

	deleted := max(out.Deleted, 0)
	updated, err := c.store.ApplyTick(ctx, runID, cleanup.TickOutcome{
		ExpectedBatches: run.ProcessedBatches,
		Deleted:         deleted,
		Checkpoint:      out.Checkpoint,
		Finished:        !out.HasMore,
		Now:             c.now(),
	})
	if err != nil {
		return nil, err
	}

	result := resultFrom(updated)
	result.Deleted = deleted
	result.HasMore = out.HasMore && updated.Status == cleanup.StatusRunning
	result.Done = updated.Status == cleanup.StatusDone
	tracing.SetTickAttributes(span, batchSize, deleted, result.HasMore, string(updated.Status))

	outcome := OutcomeSuccess
	if !out.HasMore {
		outcome = OutcomeDone
		if updated.Status == cleanup.StatusDone {
			c.metrics.RecordTransition(cat.ID, string(cleanup.StatusDone))
		}
	}
	c.metrics.RecordTick(cat.ID, outcome, deleted, elapsed)

	c.logger.DebugContext(ctx, "tick applied",
		"deleted", deleted,
		"has_more", result.HasMore,
		"processed_count", updated.ProcessedCount,
		"processed_batches", updated.ProcessedBatches,
		"batch_size", batchSize,
	)
	if result.Done {
		c.logger.InfoContext(ctx, "run finished",
			"processed_count", updated.ProcessedCount,
			"processed_batches", updated.ProcessedBatches,
		)
	}
	return result, nil
}

// recordFailure stores lastError and retryAfter, leaving the run running.
func (c *Controller) recordFailure(ctx context.Context, run *cleanup.Run, herr error, now time.Time, elapsed time.Duration) (*cleanup.TickResult, error) {
	retryAt := cleanup.RetryAt(now, run.ProcessedBatches)
	updated, err := c.store.ApplyTick(ctx, run.ID, cleanup.TickOutcome{
		ExpectedBatches: run.ProcessedBatches,
		Err:             herr.Error(),
		RetryAfter:      &retryAt,
		Now:             now,
	})
	if err != nil {
		return nil, err
	}

	result := resultFrom(updated)
	result.HasMore = updated.Status == cleanup.StatusRunning
	result.Done = updated.Status == cleanup.StatusDone

	c.metrics.RecordTick(run.CategoryID, OutcomeSoftError, 0, elapsed)
	c.logger.WarnContext(ctx, "tick failed, will retry",
		"error", herr,
		"retry_after", retryAt,
		"processed_batches", run.ProcessedBatches,
	)
	return result, nil
}

// failTerminal moves the run to error-terminal because its key has no handler.
func (c *Controller) failTerminal(ctx context.Context, run *cleanup.Run, cat *cleanup.Category) (*cleanup.TickResult, error) {
	missing := cleanup.NewHandlerMissingError(cat.Key)
	msg := missing.Error()

	updated, changed, err := c.store.Transition(ctx, run.ID, cleanup.Transition{
		From:      []cleanup.Status{cleanup.StatusRunning},
		To:        cleanup.StatusErrorTerminal,
		LastError: &msg,
		Finish:    true,
		Now:       c.now(),
	})
	if err != nil {
		return nil, err
	}
	if changed {
		c.metrics.RecordTransition(cat.ID, string(cleanup.StatusErrorTerminal))
	}
	c.metrics.RecordTick(cat.ID, OutcomeTerminal, 0, 0)
	c.logger.ErrorContext(ctx, "run failed permanently", "error", msg, "key", cat.Key)

	return resultFrom(updated), missing
}

// Pause moves a running run to paused. Other states are left alone.
func (c *Controller) Pause(ctx context.Context, runID string) (*cleanup.Run, error) {
	return c.transition(ctx, runID, "pause", cleanup.Transition{
		From: []cleanup.Status{cleanup.StatusRunning},
		To:   cleanup.StatusPaused,
	})
}

// Resume moves a paused run back to running and clears retryAfter.
func (c *Controller) Resume(ctx context.Context, runID string) (*cleanup.Run, error) {
	return c.transition(ctx, runID, "resume", cleanup.Transition{
		From:            []cleanup.Status{cleanup.StatusPaused},
		To:              cleanup.StatusRunning,
		ClearRetryAfter: true,
	})
}

// Stop forces a running or paused run to done regardless of remaining work.
// A tick already in flight still completes its batch.
func (c *Controller) Stop(ctx context.Context, runID string) (*cleanup.Run, error) {
	return c.transition(ctx, runID, "stop", cleanup.Transition{
		From:   []cleanup.Status{cleanup.StatusRunning, cleanup.StatusPaused},
		To:     cleanup.StatusDone,
		Finish: true,
	})
}

func (c *Controller) transition(ctx context.Context, runID, op string, t cleanup.Transition) (*cleanup.Run, error) {
	if runID == "" {
		return nil, cleanup.NewValidationError("runId", "is required")
	}

	ctx, span := c.tracer.Start(ctx, "cleanup."+op)
	defer span.End()

	t.Now = c.now()
	run, changed, err := c.store.Transition(ctx, runID, t)
	tracing.SetStatus(span, err)
	if err != nil {
		return nil, err
	}
	tracing.SetRunAttributes(span, run.CategoryID, runID)

	if changed {
		c.metrics.RecordTransition(run.CategoryID, string(t.To))
		c.logger.InfoContext(logging.WithRunID(ctx, runID), "run "+op,
			"category", run.CategoryID,
			"status", run.Status,
		)
	}
	return run, nil
}

// Scan returns an approximate count of eligible items, or -1 when the
// category has no estimator. It never gates start or tick.
func (c *Controller) Scan(ctx context.Context, categoryID string, cutoff *time.Time) (int64, error) {
	if categoryID == "" {
		return 0, cleanup.NewValidationError("itemId", "is required")
	}

	ctx, span := c.tracer.Start(ctx, "cleanup.scan")
	defer span.End()
	tracing.SetRunAttributes(span, categoryID, "")

	cat, err := c.store.GetCategory(ctx, categoryID)
	if err != nil {
		tracing.SetStatus(span, err)
		return 0, err
	}

	est, ok := c.handlers.Estimator(cat.Key)
	if !ok {
		c.metrics.RecordEstimate(cat.ID, -1)
		return -1, nil
	}

	n, err := est.Estimate(ctx, effectiveCutoff(cutoff, cat, c.now()))
	if err != nil {
		// The estimate is advisory; a failing probe reads as unknown.
		c.logger.WarnContext(logging.WithCategory(ctx, cat.ID), "estimate failed", "error", err)
		n = -1
	}
	c.metrics.RecordEstimate(cat.ID, n)
	span.SetAttributes(attrEstimate(n))
	return n, nil
}

// effectiveBatchSize is the override capped by MaxBatchSize, else the
// category default, else catalog.DefaultBatchSize.
func (c *Controller) effectiveBatchSize(opts cleanup.TickOptions, cat *cleanup.Category) int {
	if opts.BatchSize > 0 {
		if c.maxBatchSize > 0 && opts.BatchSize > c.maxBatchSize {
			return c.maxBatchSize
		}
		return opts.BatchSize
	}
	if cat.DefaultBatchSize > 0 {
		return cat.DefaultBatchSize
	}
	return catalog.DefaultBatchSize
}

// effectiveCutoff is the override, else now minus the category retention,
// else nil.
func effectiveCutoff(override *time.Time, cat *cleanup.Category, now time.Time) *time.Time {
	if override != nil {
		t := override.UTC()
		return &t
	}
	if cat.RetentionDays > 0 {
		t := now.UTC().AddDate(0, 0, -cat.RetentionDays)
		return &t
	}
	return nil
}

func resultFrom(run *cleanup.Run) *cleanup.TickResult {
	return &cleanup.TickResult{
		RunID:            run.ID,
		Status:           run.Status,
		ProcessedCount:   run.ProcessedCount,
		ProcessedBatches: run.ProcessedBatches,
		LastError:        run.LastError,
		RetryAfter:       run.RetryAfter,
	}
}

// skipped reports a tick that did no work. waiting is true when the run is
// running but its retryAfter has not passed.
func skipped(run *cleanup.Run, waiting bool) *cleanup.TickResult {
	r := resultFrom(run)
	r.Skipped = true
	r.HasMore = waiting
	r.Done = run.Status == cleanup.StatusDone
	return r
}
