// Package queue is a small Redis task queue with delayed retries, a
// processing set for redelivery after a crash, and a dead letter list.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/slowdrip-api/internal/resilience"
)

// ErrNoRedis is returned when a queue is used without a Redis client.
var ErrNoRedis = errors.New("queue: redis client not configured")

// Task represents a job to be processed asynchronously.
type Task struct {
	Kind           string
	Payload        []byte
	IdempotencyKey string
	MaxAttempts    int
	Delay          time.Duration
	Attempt        int
}

// Enqueuer publishes tasks to Redis backed queues.
type Enqueuer struct {
	R        *redis.Client
	Prefix   string
	DedupTTL time.Duration
}

// Enqueue inserts the task into the queue. If an idempotency key is supplied the
// task is only enqueued once within the configured deduplication window.
func (e Enqueuer) Enqueue(ctx context.Context, t Task) error {
	if e.R == nil {
		return ErrNoRedis
	}
	kind := sanitizeKind(t.Kind)
	if kind == "" {
		return errors.New("queue: task kind is required")
	}
	msg := taskMessage{
		Kind:        kind,
		Key:         t.IdempotencyKey,
		Payload:     t.Payload,
		Attempt:     max(t.Attempt, 0),
		MaxAttempts: t.MaxAttempts,
		AvailableAt: time.Now().Add(t.Delay).UnixNano(),
	}
	if msg.MaxAttempts <= 0 {
		msg.MaxAttempts = 10
	}

	if msg.Key != "" {
		ttl := e.DedupTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		ok, err := e.R.SetNX(ctx, keys{e.Prefix}.dedup(kind, msg.Key), "1", ttl).Result()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return e.R.ZAdd(ctx, keys{e.Prefix}.ready(kind), redis.Z{Score: float64(msg.AvailableAt), Member: raw}).Err()
}

// Stats is a point-in-time view of one queue.
type Stats struct {
	Kind       string `json:"kind"`
	Ready      int64  `json:"ready"`
	Processing int64  `json:"processing"`
	Dead       int64  `json:"dead"`
	OldestLag  int64  `json:"oldestLagMs"`
}

// Stats reports queue depth, in-flight and dead letter counts for kind.
func (e Enqueuer) Stats(ctx context.Context, kind string) (Stats, error) {
	if e.R == nil {
		return Stats{}, ErrNoRedis
	}
	kind = sanitizeKind(kind)
	if kind == "" {
		return Stats{}, errors.New("queue: task kind is required")
	}
	k := keys{e.Prefix}
	pipe := e.R.Pipeline()
	ready := pipe.ZCard(ctx, k.ready(kind))
	processing := pipe.ZCard(ctx, k.processing(kind))
	dead := pipe.LLen(ctx, k.dead(kind))
	oldest := pipe.ZRangeWithScores(ctx, k.ready(kind), 0, 0)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Stats{}, err
	}
	s := Stats{Kind: kind, Ready: ready.Val(), Processing: processing.Val(), Dead: dead.Val()}
	if first := oldest.Val(); len(first) > 0 {
		if ts := time.Unix(0, int64(first[0].Score)); ts.Before(time.Now()) {
			s.OldestLag = time.Since(ts).Milliseconds()
		}
	}
	observeDepth(kind, s.Ready, s.Dead)
	return s, nil
}

// ReplayDead moves up to limit dead letters of kind back onto the queue with a
// fresh attempt budget.
func (e Enqueuer) ReplayDead(ctx context.Context, kind string, limit int) (int, error) {
	if e.R == nil {
		return 0, ErrNoRedis
	}
	kind = sanitizeKind(kind)
	if kind == "" {
		return 0, errors.New("queue: task kind is required")
	}
	if limit <= 0 {
		limit = 100
	}
	k := keys{e.Prefix}
	replayed := 0
	for replayed < limit {
		raw, err := e.R.RPop(ctx, k.dead(kind)).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return replayed, err
		}
		msg, err := decodeMessage(raw)
		if err != nil {
			continue
		}
		msg.Attempt = 0
		msg.AvailableAt = time.Now().UnixNano()
		encoded, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		if err := e.R.ZAdd(ctx, k.ready(kind), redis.Z{Score: float64(msg.AvailableAt), Member: encoded}).Err(); err != nil {
			_ = e.R.RPush(ctx, k.dead(kind), raw).Err()
			return replayed, err
		}
		replayed++
	}
	return replayed, nil
}

// Worker consumes tasks for a specific kind.
type Worker struct {
	R                 *redis.Client
	Prefix            string
	Kind              string
	Concurrency       int
	VisibilityTimeout time.Duration
	Handler           func(context.Context, Task) error
	RetryBase         time.Duration
	RetryJitter       float64
	Logger            zerolog.Logger
}

// Run starts processing tasks until the context is cancelled. Active tasks are
// tracked in a processing set to enable redelivery when workers crash.
func (w Worker) Run(ctx context.Context) error {
	if w.R == nil {
		return ErrNoRedis
	}
	if w.Handler == nil {
		return errors.New("queue: worker handler not configured")
	}
	kind := sanitizeKind(w.Kind)
	if kind == "" {
		return errors.New("queue: worker kind is required")
	}
	concurrency := max(w.Concurrency, 1)
	visibility := w.VisibilityTimeout
	if visibility <= 0 {
		visibility = 30 * time.Second
	}
	retryBase := w.RetryBase
	if retryBase <= 0 {
		retryBase = 200 * time.Millisecond
	}

	k := keys{w.Prefix}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	defer wg.Wait()

	requeueTicker := time.NewTicker(time.Second)
	defer requeueTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-requeueTicker.C:
			if err := w.requeueExpired(ctx, k, kind); err != nil && ctx.Err() == nil {
				return err
			}
		default:
		}

		res, err := w.R.ZPopMin(ctx, k.ready(kind), 1).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if len(res) == 0 {
			idle(ctx, 100*time.Millisecond)
			continue
		}
		member, ok := res[0].Member.(string)
		if !ok {
			continue
		}
		msg, err := decodeMessage(member)
		if err != nil {
			w.Logger.Warn().Err(err).Str("kind", kind).Msg("drop undecodable task")
			continue
		}
		now := time.Now().UnixNano()
		if msg.AvailableAt > now {
			// not due yet
			w.R.ZAdd(ctx, k.ready(kind), redis.Z{Score: float64(msg.AvailableAt), Member: member})
			idle(ctx, min(time.Duration(msg.AvailableAt-now), time.Second))
			continue
		}

		msg.Attempt++
		rawBytes, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		raw := string(rawBytes)
		deadline := time.Now().Add(visibility).UnixNano()
		if err := w.R.ZAdd(ctx, k.processing(kind), redis.Z{Score: float64(deadline), Member: raw}).Err(); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(raw string, m taskMessage) {
			defer func() { <-sem }()
			defer wg.Done()
			jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), visibility)
			defer cancel()
			err := w.Handler(jobCtx, Task{Kind: kind, Payload: m.Payload, IdempotencyKey: m.Key, Attempt: m.Attempt, MaxAttempts: m.MaxAttempts})
			if err != nil {
				w.Logger.Warn().Err(err).Str("kind", kind).Int("attempt", m.Attempt).Msg("task failed")
				w.handleFailure(jobCtx, k, raw, m, retryBase)
				return
			}
			observeProcessed(kind, "ok")
			w.ack(jobCtx, k, raw, m)
		}(raw, msg)
	}
}

func (w Worker) handleFailure(ctx context.Context, k keys, raw string, msg taskMessage, base time.Duration) {
	_ = w.R.ZRem(ctx, k.processing(msg.Kind), raw).Err()
	if msg.MaxAttempts > 0 && msg.Attempt >= msg.MaxAttempts {
		observeProcessed(msg.Kind, "dead")
		rawBytes, err := json.Marshal(msg)
		if err != nil {
			return
		}
		_ = w.R.LPush(ctx, k.dead(msg.Kind), rawBytes).Err()
		if msg.Key != "" {
			_ = w.R.Del(ctx, k.dedup(msg.Kind, msg.Key)).Err()
		}
		return
	}
	observeProcessed(msg.Kind, "retry")
	delay := resilience.Backoff(base, msg.Attempt, w.RetryJitter)
	msg.AvailableAt = time.Now().Add(delay).UnixNano()
	rawBytes, err := json.Marshal(msg)
	if err != nil {
		return
	}
	_ = w.R.ZAdd(ctx, k.ready(msg.Kind), redis.Z{Score: float64(msg.AvailableAt), Member: string(rawBytes)}).Err()
}

func (w Worker) ack(ctx context.Context, k keys, raw string, msg taskMessage) {
	_ = w.R.ZRem(ctx, k.processing(msg.Kind), raw).Err()
	if msg.Key != "" {
		_ = w.R.Del(ctx, k.dedup(msg.Kind, msg.Key)).Err()
	}
}

func (w Worker) requeueExpired(ctx context.Context, k keys, kind string) error {
	now := float64(time.Now().UnixNano())
	due, err := w.R.ZRangeByScore(ctx, k.processing(kind), &redis.ZRangeBy{Min: "-inf", Max: fmt.Sprintf("%f", now)}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	for _, raw := range due {
		msg, err := decodeMessage(raw)
		if err != nil {
			continue
		}
		_ = w.R.ZRem(ctx, k.processing(kind), raw).Err()
		msg.AvailableAt = time.Now().UnixNano()
		encoded, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		_ = w.R.ZAdd(ctx, k.ready(kind), redis.Z{Score: float64(msg.AvailableAt), Member: encoded}).Err()
	}
	return nil
}

func idle(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

type keys struct{ prefix string }

func (k keys) base() string {
	if k.prefix == "" {
		return "queue"
	}
	return k.prefix + ":queue"
}

func (k keys) ready(kind string) string      { return k.base() + ":" + kind }
func (k keys) processing(kind string) string { return k.base() + ":" + kind + ":processing" }
func (k keys) dead(kind string) string       { return k.base() + ":" + kind + ":dlq" }
func (k keys) dedup(kind, key string) string { return k.base() + ":dedup:" + kind + ":" + key }

func sanitizeKind(kind string) string {
	for i := 0; i < len(kind); i++ {
		c := kind[i]
		if c >= 'a' && c <= 'z' {
			continue
		}
		if c >= '0' && c <= '9' {
			continue
		}
		if c == '-' || c == '_' || c == ':' {
			continue
		}
		return ""
	}
	return kind
}

func decodeMessage(raw string) (taskMessage, error) {
	var msg taskMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return taskMessage{}, err
	}
	return msg, nil
}

type taskMessage struct {
	Kind        string `json:"kind"`
	Key         string `json:"key,omitempty"`
	Payload     []byte `json:"payload"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"max_attempts"`
	AvailableAt int64  `json:"available_at"`
}
