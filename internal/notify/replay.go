package notify

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReplayProtector guards against sending the same message twice within a TTL.
type ReplayProtector interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisReplayProtector implements ReplayProtector with SETNX.
type RedisReplayProtector struct {
	Client *redis.Client
}

// Acquire claims key for ttl. It reports false when the key is already held.
func (r RedisReplayProtector) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if r.Client == nil {
		return true, nil
	}
	return r.Client.SetNX(ctx, key, "1", ttl).Result()
}

// Release drops the guard so a failed delivery can be retried.
func (r RedisReplayProtector) Release(ctx context.Context, key string) error {
	if r.Client == nil {
		return nil
	}
	return r.Client.Del(ctx, key).Err()
}
