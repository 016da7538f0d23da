package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"mercator-hq/janitor/pkg/cleanup"
)

// RedisCache purges cache entries tracked in a sorted-set index. Each index
// member names an entry stored at KeyPrefix+member, scored by its creation
// time in Unix seconds.
type RedisCache struct {
	client    redis.Cmdable
	indexKey  string
	keyPrefix string
}

// NewRedisCache returns a handler for the index at indexKey.
func NewRedisCache(client redis.Cmdable, indexKey, keyPrefix string) *RedisCache {
	return &RedisCache{client: client, indexKey: indexKey, keyPrefix: keyPrefix}
}

// maxScore is the exclusive upper bound for a cutoff.
func maxScore(cutoff *time.Time) string {
	if cutoff == nil {
		return "+inf"
	}
	return "(" + strconv.FormatInt(cutoff.Unix(), 10)
}

// Handle deletes up to BatchSize of the lowest-scored entries below the
// cutoff. Equal scores are ordered by member, as sorted sets do.
func (r *RedisCache) Handle(ctx context.Context, req Request) (Result, error) {
	if req.BatchSize <= 0 {
		return Result{}, cleanup.NewValidationError("batchSize", "must be positive")
	}

	members, err := r.client.ZRangeArgs(ctx, redis.ZRangeArgs{
		Key:     r.indexKey,
		Start:   "-inf",
		Stop:    maxScore(req.Cutoff),
		ByScore: true,
		Offset:  0,
		Count:   int64(req.BatchSize),
	}).Result()
	if err != nil && err != redis.Nil {
		return Result{}, cleanup.NewTransientStorageError("select", err)
	}
	if len(members) == 0 {
		return Result{}, nil
	}

	keys := make([]string, len(members))
	remove := make([]any, len(members))
	for i, m := range members {
		keys[i] = r.keyPrefix + m
		remove[i] = m
	}

	var zrem *redis.IntCmd
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, keys...)
		zrem = p.ZRem(ctx, r.indexKey, remove...)
		return nil
	})
	if err != nil {
		return Result{}, cleanup.NewTransientStorageError("delete", err)
	}

	deleted := int(zrem.Val())
	return Result{Deleted: deleted, HasMore: hasMore(deleted, req.BatchSize)}, nil
}

// Estimate returns the exact index count below the cutoff; ZCOUNT is
// O(log n) so no cap is needed.
func (r *RedisCache) Estimate(ctx context.Context, cutoff *time.Time) (int64, error) {
	n, err := r.client.ZCount(ctx, r.indexKey, "-inf", maxScore(cutoff)).Result()
	if err != nil {
		return 0, cleanup.NewTransientStorageError("estimate", err)
	}
	return n, nil
}

// Binding returns r as both handler and estimator.
func (r *RedisCache) Binding() Binding {
	return Binding{Handler: r, Estimator: r}
}
