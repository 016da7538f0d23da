// Package driver keeps runs moving without a human clicking "tick".
//
// Each drain walks every enabled category, attaches to its active run or
// starts a new one, and ticks it sequentially until the run reports no more
// work, turns inactive, records a soft error, or the per-drain tick budget
// is spent. Categories drain concurrently up to a configured limit; a single
// run is never ticked from two goroutines.
//
// A run whose retryAfter lies in the future is left alone until a later
// drain. The Scheduler fires drains on a cron schedule and skips a firing
// while the previous drain is still going.
package driver
