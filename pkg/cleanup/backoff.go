package cleanup

import "time"

const (
	// BackoffStep is added per processed batch.
	BackoffStep = 10 * time.Second

	// BackoffMax caps the delay.
	BackoffMax = 2 * time.Minute
)

// Backoff returns the delay before a failed run should be ticked again:
// min(BackoffMax, processedBatches*BackoffStep + BackoffStep).
func Backoff(processedBatches int64) time.Duration {
	if processedBatches < 0 {
		processedBatches = 0
	}
	// Anything past this many batches is already capped; avoid overflow.
	if processedBatches >= int64(BackoffMax/BackoffStep) {
		return BackoffMax
	}
	d := time.Duration(processedBatches)*BackoffStep + BackoffStep
	if d > BackoffMax {
		return BackoffMax
	}
	return d
}

// RetryAt returns now plus the backoff for processedBatches.
func RetryAt(now time.Time, processedBatches int64) time.Time {
	return now.Add(Backoff(processedBatches))
}
