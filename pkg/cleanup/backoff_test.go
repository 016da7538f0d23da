package cleanup

import (
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	tests := []struct {
		batches int64
		want    time.Duration
	}{
		{-3, 10 * time.Second},
		{0, 10 * time.Second},
		{1, 20 * time.Second},
		{5, 60 * time.Second},
		{11, 120 * time.Second},
		{12, 120 * time.Second},
		{1 << 40, 120 * time.Second},
	}

	for _, tt := range tests {
		if got := Backoff(tt.batches); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.batches, got, tt.want)
		}
	}
}

func TestBackoff_MonotonicAndBounded(t *testing.T) {
	prev := time.Duration(0)
	for n := int64(0); n < 1000; n++ {
		d := Backoff(n)
		if d < prev {
			t.Fatalf("Backoff(%d) = %v decreased from %v", n, d, prev)
		}
		if d > BackoffMax {
			t.Fatalf("Backoff(%d) = %v exceeds %v", n, d, BackoffMax)
		}
		prev = d
	}
}

func TestRetryAt(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	got := RetryAt(now, 0)
	if want := now.Add(10 * time.Second); !got.Equal(want) {
		t.Errorf("RetryAt() = %v, want %v", got, want)
	}
}
