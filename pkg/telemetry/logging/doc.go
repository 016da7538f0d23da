// Package logging builds the process logger.
//
// New returns a *slog.Logger whose handler copies request_id, run_id and
// category from the context onto every record logged with a *Context
// method, so call sites only attach those values once:
//
//	ctx = logging.WithRunID(ctx, run.ID)
//	logger.InfoContext(ctx, "tick applied", "deleted", n)
//
// Packages obtain component loggers with
// slog.Default().With("component", "cleanup.controller") after the command
// installs the result of New with slog.SetDefault.
package logging
