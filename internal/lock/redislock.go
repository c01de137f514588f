// Package lock provides keyed mutual exclusion for order submission, across
// replicas through Redis or within one process.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLocked reports that another holder owns the key.
var ErrLocked = errors.New("lock: key is held")

// Locker runs fn while holding key, failing fast with ErrLocked when the key
// is already held.
type Locker interface {
	TryWithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`

// Redis is a Locker backed by SET NX with an owner token. The TTL bounds how
// long a crashed holder can block the key.
type Redis struct {
	Client       *redis.Client
	RetryBackoff time.Duration
}

// TryWithLock implements Locker.
func (l Redis) TryWithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	token, ok, err := l.acquire(ctx, key, ttl)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLocked
	}
	defer l.release(key, token)
	return fn(ctx)
}

// WithLock waits for key until ctx ends, then runs fn.
func (l Redis) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	retry := l.RetryBackoff
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}
	for {
		token, ok, err := l.acquire(ctx, key, ttl)
		if err != nil {
			return err
		}
		if ok {
			defer l.release(key, token)
			return fn(ctx)
		}
		timer := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (l Redis) acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l.Client == nil {
		return "", false, errors.New("lock: redis client not configured")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	token := uuid.NewString()
	ok, err := l.Client.SetNX(ctx, key, token, ttl).Result()
	return token, ok, err
}

func (l Redis) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.Client.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
		// scripting disabled: fall back to a plain delete
		_ = l.Client.Del(ctx, key).Err()
	}
}

// Local is an in-process Locker for single-replica deployments.
type Local struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// TryWithLock implements Locker. The ttl is ignored; the key is held until fn
// returns.
func (l *Local) TryWithLock(ctx context.Context, key string, _ time.Duration, fn func(context.Context) error) error {
	l.mu.Lock()
	if l.held == nil {
		l.held = map[string]struct{}{}
	}
	if _, busy := l.held[key]; busy {
		l.mu.Unlock()
		return ErrLocked
	}
	l.held[key] = struct{}{}
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}()
	return fn(ctx)
}
