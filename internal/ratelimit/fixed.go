package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Fixed is a fixed window limiter on ulule/limiter.
type Fixed struct {
	lim *limiter.Limiter
}

// NewFixed builds a fixed window limiter allowing max events per window. A
// nil client keeps counters in process memory.
func NewFixed(client *redis.Client, prefix string, window time.Duration, max int) (*Fixed, error) {
	if prefix == "" {
		prefix = "rl"
	}
	var (
		store limiter.Store
		err   error
	)
	if client != nil {
		store, err = limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
		if err != nil {
			return nil, err
		}
	} else {
		store = memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: prefix, CleanUpInterval: time.Minute})
	}
	rate := limiter.Rate{Period: window, Limit: int64(max)}
	return &Fixed{lim: limiter.New(store, rate)}, nil
}

// Allow implements Allower.
func (f *Fixed) Allow(ctx context.Context, key string) (Decision, error) {
	res, err := f.lim.Get(ctx, key)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Allowed:   !res.Reached,
		Limit:     int(res.Limit),
		Remaining: int(res.Remaining),
		Reset:     time.Unix(res.Reset, 0),
	}, nil
}
