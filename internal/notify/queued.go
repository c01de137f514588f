package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/noah-isme/slowdrip-api/internal/obs"
	"github.com/noah-isme/slowdrip-api/internal/queue"
)

// WebhookTaskKind names the queue holding pending webhook deliveries.
const WebhookTaskKind = "order_webhook"

// Enqueuer is the queue side used by Queued.
type Enqueuer interface {
	Enqueue(ctx context.Context, t queue.Task) error
}

// Queued hands messages to a durable queue instead of sending them inline.
// A worker drains the queue with HandleTask.
type Queued struct {
	Queue       Enqueuer
	Kind        string
	MaxAttempts int
}

func (q Queued) kind() string {
	if q.Kind == "" {
		return WebhookTaskKind
	}
	return q.Kind
}

// Name implements Channel.
func (q Queued) Name() string { return "queue:" + q.kind() }

// Send implements Channel.
func (q Queued) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return q.Queue.Enqueue(ctx, queue.Task{
		Kind:           q.kind(),
		Payload:        payload,
		IdempotencyKey: replayKey(msg.ID, msg.Topic),
		MaxAttempts:    q.MaxAttempts,
	})
}

// HandleTask returns a queue handler delivering queued messages to ch.
func HandleTask(ch Channel) func(context.Context, queue.Task) error {
	return func(ctx context.Context, t queue.Task) error {
		var msg Message
		if err := json.Unmarshal(t.Payload, &msg); err != nil {
			return fmt.Errorf("notify: decode task: %w", err)
		}
		err := ch.Send(ctx, msg)
		if err != nil {
			obs.ObserveChannelDelivery(ch.Name(), "error")
			return err
		}
		obs.ObserveChannelDelivery(ch.Name(), "ok")
		return nil
	}
}
