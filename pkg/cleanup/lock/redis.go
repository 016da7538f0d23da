package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisConfig tunes the distributed lock.
type RedisConfig struct {
	// Prefix is prepended to every lock key.
	Prefix string

	// TTL bounds how long a crashed holder keeps the lock.
	TTL time.Duration

	// Wait is how long Lock retries before giving up.
	Wait time.Duration

	// PollInterval is the delay between attempts.
	PollInterval time.Duration

	// Logger reports failed releases. Defaults to the slog default logger.
	Logger *slog.Logger
}

// Redis is a SET NX PX lock shared by every process using the same server.
type Redis struct {
	client redis.Cmdable
	config RedisConfig
}

// NewRedis returns a distributed locker.
func NewRedis(client redis.Cmdable, config RedisConfig) *Redis {
	if config.Prefix == "" {
		config.Prefix = "janitor:lock:"
	}
	if config.TTL <= 0 {
		config.TTL = 5 * time.Minute
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 100 * time.Millisecond
	}
	if config.Logger == nil {
		config.Logger = slog.Default().With("component", "cleanup.lock")
	}
	return &Redis{client: client, config: config}
}

// Lock polls SET NX until it succeeds, ctx ends, or Wait elapses.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	full := r.config.Prefix + key
	token := uuid.NewString()

	var deadline time.Time
	if r.config.Wait > 0 {
		deadline = time.Now().Add(r.config.Wait)
	}

	for {
		ok, err := r.client.SetNX(ctx, full, token, r.config.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", full, err)
		}
		if ok {
			break
		}
		if r.config.Wait == 0 || time.Now().After(deadline) {
			return nil, ErrNotAcquired
		}

		t := time.NewTimer(r.config.PollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, errors.Join(ErrNotAcquired, ctx.Err())
		case <-t.C:
		}
	}

	return func() {
		// Release on a fresh context so a cancelled tick still frees the lock.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, r.client, []string{full}, token).Err(); err != nil {
			r.config.Logger.Warn("lock release failed, held until TTL expires",
				"key", full,
				"ttl", r.config.TTL,
				"error", err,
			)
		}
	}, nil
}
