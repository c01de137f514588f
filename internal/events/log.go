package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

const defaultLogSize = 200

// Log is an EventStore that keeps the most recent events for inspection.
type Log interface {
	EventStore
	Recent(ctx context.Context, limit int) ([]Event, error)
}

// MemoryLog keeps recent events in process memory.
type MemoryLog struct {
	mu     sync.RWMutex
	size   int
	events []Event
}

// NewMemoryLog returns a log holding at most size events.
func NewMemoryLog(size int) *MemoryLog {
	if size <= 0 {
		size = defaultLogSize
	}
	return &MemoryLog{size: size}
}

// Append records ev, evicting the oldest event when full.
func (l *MemoryLog) Append(_ context.Context, ev Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	if over := len(l.events) - l.size; over > 0 {
		l.events = append([]Event(nil), l.events[over:]...)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (l *MemoryLog) Recent(_ context.Context, limit int) ([]Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if limit <= 0 || limit > len(l.events) {
		limit = len(l.events)
	}
	out := make([]Event, 0, limit)
	for i := len(l.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.events[i])
	}
	return out, nil
}

// RedisLog keeps recent events in a capped Redis list.
type RedisLog struct {
	Client *redis.Client
	Key    string
	Size   int
}

func (l RedisLog) key() string {
	if l.Key == "" {
		return "events:recent"
	}
	return l.Key
}

func (l RedisLog) size() int64 {
	if l.Size <= 0 {
		return defaultLogSize
	}
	return int64(l.Size)
}

// Append pushes ev onto the list and trims it to size.
func (l RedisLog) Append(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	pipe := l.Client.TxPipeline()
	pipe.LPush(ctx, l.key(), data)
	pipe.LTrim(ctx, l.key(), 0, l.size()-1)
	_, err = pipe.Exec(ctx)
	return err
}

// Recent returns up to limit events, newest first.
func (l RedisLog) Recent(ctx context.Context, limit int) ([]Event, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	raw, err := l.Client.LRange(ctx, l.key(), 0, stop).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Event, 0, len(raw))
	for _, item := range raw {
		var ev Event
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		out = append(out, ev)
	}
	return out, nil
}
