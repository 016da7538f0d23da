package handlers

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestMaxScore(t *testing.T) {
	if got := maxScore(nil); got != "+inf" {
		t.Errorf("maxScore(nil) = %q", got)
	}
	cutoff := time.Unix(1700000000, 0)
	if got := maxScore(&cutoff); got != "(1700000000" {
		t.Errorf("maxScore() = %q, want exclusive bound", got)
	}
}

// TestRedisCache runs against a live server named by JANITOR_TEST_REDIS_ADDR.
func TestRedisCache(t *testing.T) {
	addr := os.Getenv("JANITOR_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("JANITOR_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	index := fmt.Sprintf("janitor:test:%d", time.Now().UnixNano())
	prefix := index + ":entry:"
	defer client.Del(ctx, index)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		member := fmt.Sprintf("k%d", i)
		client.Set(ctx, prefix+member, "v", 0)
		client.ZAdd(ctx, index, redis.Z{Score: float64(base.Add(time.Duration(i) * time.Hour).Unix()), Member: member})
	}

	h := NewRedisCache(client, index, prefix)
	cutoff := base.Add(5 * time.Hour)

	if n, err := h.Estimate(ctx, &cutoff); err != nil || n != 5 {
		t.Fatalf("Estimate() = %d, %v; want 5", n, err)
	}

	res, err := h.Handle(ctx, Request{BatchSize: 3, Cutoff: &cutoff})
	if err != nil {
		t.Fatalf("Handle() failed: %v", err)
	}
	if res.Deleted != 3 || !res.HasMore {
		t.Errorf("Unexpected result: %+v", res)
	}
	if n, _ := client.Exists(ctx, prefix+"k0").Result(); n != 0 {
		t.Error("Expected oldest entry to be deleted")
	}

	res, _ = h.Handle(ctx, Request{BatchSize: 3, Cutoff: &cutoff})
	if res.Deleted != 2 || res.HasMore {
		t.Errorf("Unexpected second result: %+v", res)
	}
	if n, _ := client.ZCard(ctx, index).Result(); n != 2 {
		t.Errorf("Expected 2 entries at or after cutoff, got %d", n)
	}
	client.Del(ctx, prefix+"k5", prefix+"k6")
}
