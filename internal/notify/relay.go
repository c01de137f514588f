package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/slowdrip-api/internal/events"
	"github.com/noah-isme/slowdrip-api/internal/obs"
)

// Message is an order announcement for an outbound channel.
type Message struct {
	ID         string    `json:"id"`
	Topic      string    `json:"topic"`
	Text       string    `json:"text"`
	Link       string    `json:"link,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Channel delivers messages to one destination.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// RelayConfig configures a Relay.
type RelayConfig struct {
	Channels []Channel
	Topics   []string
	Logger   zerolog.Logger
	Timeout  time.Duration
}

// Relay forwards order events to every channel without holding up the
// emitter. Delivery is fire-and-forget: failures are logged and counted.
type Relay struct {
	channels []Channel
	topics   map[string]bool
	log      zerolog.Logger
	timeout  time.Duration
	wg       sync.WaitGroup
}

// NewRelay constructs a Relay. Without explicit topics it forwards
// events.DefaultTopics.
func NewRelay(cfg RelayConfig) *Relay {
	topics := cfg.Topics
	if len(topics) == 0 {
		topics = events.DefaultTopics()
	}
	set := make(map[string]bool, len(topics))
	for _, t := range topics {
		set[t] = true
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Relay{channels: cfg.Channels, topics: set, log: cfg.Logger, timeout: timeout}
}

// Notify implements events.Notifier.
func (r *Relay) Notify(ctx context.Context, ev events.Event) error {
	if r == nil || len(r.channels) == 0 || !r.topics[ev.Topic] {
		return nil
	}
	var payload events.OrderPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return fmt.Errorf("notify: decode payload: %w", err)
	}
	msg := Message{ID: ev.AggregateID, Topic: ev.Topic, Text: payload.Text, Link: payload.Link, OccurredAt: ev.OccurredAt}

	// deliveries outlive the request that triggered them
	base := context.WithoutCancel(ctx)
	for _, ch := range r.channels {
		r.wg.Add(1)
		go func(ch Channel) {
			defer r.wg.Done()
			sendCtx, cancel := context.WithTimeout(base, r.timeout)
			defer cancel()
			r.deliver(sendCtx, ch, msg)
		}(ch)
	}
	return nil
}

func (r *Relay) deliver(ctx context.Context, ch Channel, msg Message) {
	ctx, span := obs.StartSpan(ctx, "notify", "notify.deliver")
	err := ch.Send(ctx, msg)
	obs.EndSpan(span, err)
	if err != nil {
		obs.ObserveChannelDelivery(ch.Name(), "error")
		r.log.Warn().Err(err).Str("component", "notify").Str("channel", ch.Name()).Str("order_id", msg.ID).Msg("deliver order message")
		return
	}
	obs.ObserveChannelDelivery(ch.Name(), "ok")
}

// Wait blocks until in-flight deliveries finish.
func (r *Relay) Wait() {
	r.wg.Wait()
}
