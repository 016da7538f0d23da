// Package cleanup provides the data-retention engine: declared categories of
// purgeable data, runs that delete those categories in bounded batches, and
// the persisted state that lets a run resume after a crash or a transient
// failure.
//
// # Architecture
//
// The engine consists of five layers:
//
//  1. Category Registry - Enabled categories of purgeable data (package catalog)
//  2. Handler Registry - Maps a category key to a deletion routine (package handlers)
//  3. Batch Primitive - Cursor-ordered select-then-delete over SQL tables (package batch)
//  4. Run Controller - Start, tick, pause, resume and stop runs (package controller)
//  5. Storage Backend - Persists categories and runs (package storage)
//
// A driver (cron, CLI, admin UI) decides when to tick. The engine never
// schedules wall-clock work on its own; it only reports a RetryAfter hint.
//
// # Run Lifecycle
//
//	start ──▶ running ──tick(hasMore=false)──▶ done
//	             │  ▲                             ▲
//	        pause│  │resume                       │stop
//	             ▼  │                             │
//	           paused ────────────────────────────┘
//
//	running ──tick(no handler)──▶ error-terminal
//
// A failing handler leaves the run in running with LastError and RetryAfter
// set. The next successful tick clears both.
//
// # Basic Usage
//
//	store := storage.NewMemoryStorage()
//	registry, err := handlers.NewRegistry(handlers.Builtins{
//	    Messages:      handlers.NewSQLTable(messages).Binding(),
//	    Notifications: handlers.NewSQLTable(notifications).Binding(),
//	    ProfileVisits: handlers.NewSQLTable(visits).Binding(),
//	    FeedCache:     handlers.NewRedisCache(client, "feed:index", "feed:").Binding(),
//	    MediaUploads:  handlers.NewObjectStore("data/buckets/media").Binding(),
//	})
//	if err != nil {
//	    return err
//	}
//
//	ctrl, err := controller.New(controller.Config{Storage: store, Handlers: registry})
//	if err != nil {
//	    return err
//	}
//	run, err := ctrl.Start(ctx, "messages")
//	if err != nil {
//	    return err
//	}
//	for {
//	    res, err := ctrl.Tick(ctx, run.ID, cleanup.TickOptions{})
//	    if err != nil || !res.HasMore {
//	        break
//	    }
//	}
//
// # Thread Safety
//
// Ticks on the same run are serialized by a per-run lock and the storage
// backend applies counter deltas with an optimistic predicate on
// ProcessedBatches, so two concurrent ticks can never double-count.
package cleanup
