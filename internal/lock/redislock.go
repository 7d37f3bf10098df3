// Package lock serialises checkout price refreshes across worker instances
// with a redis-held lease, so a slow recompute is never run twice for the
// same checkout.
package lock

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	refreshKeyPrefix    = "checkout:refresh:"
	defaultLeaseTTL     = 30 * time.Second
	defaultRetryBackoff = 50 * time.Millisecond
)

// RefreshKey builds the lock key guarding one checkout's price refresh.
func RefreshKey(checkoutID uuid.UUID) string {
	return refreshKeyPrefix + checkoutID.String()
}

// Locker holds redis-backed leases. The zero RetryBackoff polls every 50ms
// while waiting for a contended key.
type Locker struct {
	R            *redis.Client
	RetryBackoff time.Duration
}

// WithLock runs fn while holding the lease for key. The lease carries a
// per-acquisition token so an expired lease cannot release a successor's.
// Waiting for a contended key ends when the context does.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	token := uuid.NewString()

	for {
		acquired, err := l.R.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return err
		}
		if acquired {
			defer l.release(context.Background(), key, token)
			return fn(ctx)
		}
		if err := l.wait(ctx); err != nil {
			return err
		}
	}
}

func (l Locker) wait(ctx context.Context) error {
	backoff := l.RetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}
	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// release deletes the lease only when the token still matches, via a Lua
// compare-and-delete. Redis builds without EVAL fall back to a plain delete.
func (l Locker) release(ctx context.Context, key, token string) {
	const script = `if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`
	if err := l.R.Eval(ctx, script, []string{key}, token).Err(); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unknown command") {
			_ = l.R.Del(ctx, key).Err()
		}
	}
}
