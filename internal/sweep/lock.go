package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultLockKey is the Redis key held while a sweep runs.
const DefaultLockKey = "gigmatch:sweep:lock"

// ReleaseFunc gives back a lock obtained from a Locker.
type ReleaseFunc func(ctx context.Context) error

// Locker keeps sweeps on different machines from overlapping.
type Locker interface {
	// Acquire returns ok=false without error when someone else holds the lock.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release ReleaseFunc, ok bool, err error)
}

// NoopLocker always grants the lock. Used when no Redis is configured.
type NoopLocker struct{}

func (NoopLocker) Acquire(context.Context, string, time.Duration) (ReleaseFunc, bool, error) {
	return func(context.Context) error { return nil }, true, nil
}

// releaseScript deletes the key only if it still holds our token, so a sweep
// that outlived its TTL cannot drop a lock taken by the next one.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// RedisLocker is a single-instance SET NX PX lock.
type RedisLocker struct {
	client redis.UniversalClient
	script *redis.Script
}

// NewRedisLocker returns nil when client is nil.
func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	if client == nil {
		return nil
	}
	return &RedisLocker{
		client: client,
		script: redis.NewScript(releaseScript),
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, bool, error) {
	if ttl <= 0 {
		ttl = time.Minute
	}
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire sweep lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		if err := l.script.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("failed to release sweep lock: %w", err)
		}
		return nil
	}
	return release, true, nil
}
