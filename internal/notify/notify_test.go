package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/slowdrip-api/internal/events"
	"github.com/noah-isme/slowdrip-api/internal/notify"
	"github.com/noah-isme/slowdrip-api/internal/queue"
	"github.com/noah-isme/slowdrip-api/internal/resilience"
)

type recordingChannel struct {
	name string
	err  error
	mu   sync.Mutex
	msgs []notify.Message
}

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) Send(_ context.Context, msg notify.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return c.err
}

func (c *recordingChannel) sent() []notify.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]notify.Message(nil), c.msgs...)
}

func orderEvent(t *testing.T, topic string) events.Event {
	t.Helper()
	payload, err := json.Marshal(events.OrderPayload{OrderID: "o-1", Kind: "basket", Text: "Order:\nTime: now\n\nThank you!", Link: "https://t.me/x?text=Order"})
	require.NoError(t, err)
	return events.Event{ID: "e-1", Topic: topic, AggregateID: "o-1", Payload: payload, OccurredAt: time.Unix(1700000000, 0).UTC()}
}

func TestRelayFansOutToChannels(t *testing.T) {
	ok := &recordingChannel{name: "ok"}
	failing := &recordingChannel{name: "failing", err: errors.New("unreachable")}
	relay := notify.NewRelay(notify.RelayConfig{Channels: []notify.Channel{ok, failing}, Logger: zerolog.Nop()})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, relay.Notify(ctx, orderEvent(t, events.TopicOrderSubmitted)))
	cancel()
	relay.Wait()

	require.Len(t, ok.sent(), 1)
	require.Len(t, failing.sent(), 1)
	msg := ok.sent()[0]
	require.Equal(t, "o-1", msg.ID)
	require.Equal(t, events.TopicOrderSubmitted, msg.Topic)
	require.Contains(t, msg.Text, "Thank you!")
	require.NotEmpty(t, msg.Link)
}

func TestRelayIgnoresOtherTopics(t *testing.T) {
	ch := &recordingChannel{name: "ok"}
	relay := notify.NewRelay(notify.RelayConfig{Channels: []notify.Channel{ch}, Logger: zerolog.Nop()})
	require.NoError(t, relay.Notify(context.Background(), orderEvent(t, events.TopicPreviewOpened)))
	relay.Wait()
	require.Empty(t, ch.sent())

	bad := events.Event{Topic: events.TopicQuickOrder, Payload: json.RawMessage(`[1]`)}
	require.Error(t, relay.Notify(context.Background(), bad))
}

func TestTelegramLink(t *testing.T) {
	link := notify.TelegramLink("", "Order: Latte\nTime: 9:30 AM & co")
	require.Equal(t, "https://t.me/Eschoolcam?text=Order%3A%20Latte%0ATime%3A%209%3A30%20AM%20%26%20co", link)

	parsed, err := url.Parse(link)
	require.NoError(t, err)
	require.Equal(t, "Order: Latte\nTime: 9:30 AM & co", parsed.Query().Get("text"))
}

func TestWebhookSignatureAndHeaders(t *testing.T) {
	type recorded struct {
		header http.Header
		body   []byte
	}
	received := make(chan recorded, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- recorded{header: r.Header.Clone(), body: body}
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(srv.Close)

	hook := &notify.Webhook{URL: srv.URL, Secret: "secret", HTTP: resilience.HTTPClient{Client: srv.Client(), MaxAttempts: 1}}
	msg := notify.Message{ID: "o-9", Topic: events.TopicQuickOrder, Text: "Order: Espresso"}
	require.NoError(t, hook.Send(context.Background(), msg))

	rec := <-received
	require.Equal(t, "application/json", rec.header.Get("Content-Type"))
	require.Equal(t, "o-9", rec.header.Get("X-Event-ID"))
	require.Equal(t, "o-9", rec.header.Get("X-Idempotency-Key"))
	ts, err := strconv.ParseInt(rec.header.Get("X-Timestamp"), 10, 64)
	require.NoError(t, err)
	require.Equal(t, notify.ComputeSignature("secret", ts, "o-9", rec.body), rec.header.Get("X-Signature"))

	var decoded notify.Message
	require.NoError(t, json.Unmarshal(rec.body, &decoded))
	require.Equal(t, msg.Text, decoded.Text)
}

func TestWebhookReplayGuard(t *testing.T) {
	var calls atomic.Int32
	fail := atomic.Bool{}
	fail.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		if fail.Load() {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	hook := &notify.Webhook{
		URL:       srv.URL,
		HTTP:      resilience.HTTPClient{Client: srv.Client(), MaxAttempts: 1},
		Replay:    notify.RedisReplayProtector{Client: client},
		ReplayTTL: time.Minute,
	}
	msg := notify.Message{ID: "o-1", Topic: events.TopicOrderSubmitted}

	require.Error(t, hook.Send(context.Background(), msg))
	fail.Store(false)
	require.NoError(t, hook.Send(context.Background(), msg), "failed delivery releases the guard")
	require.NoError(t, hook.Send(context.Background(), msg))
	require.EqualValues(t, 2, calls.Load(), "third send is suppressed")
}

func TestWebhookRejectsInsecureURL(t *testing.T) {
	hook := &notify.Webhook{URL: "http://example.com/hook"}
	require.Error(t, hook.Send(context.Background(), notify.Message{ID: "x"}))
	hook.URL = "ftp://example.com"
	require.Error(t, hook.Send(context.Background(), notify.Message{ID: "x"}))
}

func TestContactHandler(t *testing.T) {
	h := notify.ContactHandler{Contact: notify.Contact{Phone: "+855123456789", Hours: []string{"Mon-Fri 7:00-21:00"}}}
	rr := httptest.NewRecorder()
	h.Get(rr, httptest.NewRequest(http.MethodGet, "/api/v1/contact", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Data notify.Contact `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, notify.DefaultTelegramURL, body.Data.Telegram)
	require.Equal(t, "+855123456789", body.Data.Phone)
	require.Equal(t, []string{"Mon-Fri 7:00-21:00"}, body.Data.Hours)
}

func TestQueuedDeliveryThroughWorker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	enq := queue.Enqueuer{R: client}
	queued := notify.Queued{Queue: enq, MaxAttempts: 2}
	msg := notify.Message{ID: "o-7", Topic: events.TopicOrderSubmitted, Text: "Order: Latte"}
	require.NoError(t, queued.Send(context.Background(), msg))
	require.NoError(t, queued.Send(context.Background(), msg), "duplicate is dropped by the idempotency key")

	stats, err := enq.Stats(context.Background(), notify.WebhookTaskKind)
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.Ready)

	sink := &recordingChannel{name: "sink"}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker := queue.Worker{R: client, Kind: notify.WebhookTaskKind, Handler: notify.HandleTask(sink)}
	go func() { _ = worker.Run(ctx) }()

	require.Eventually(t, func() bool { return len(sink.sent()) == 1 }, 3*time.Second, 20*time.Millisecond)
	require.Equal(t, "Order: Latte", sink.sent()[0].Text)
	require.Equal(t, "queue:order_webhook", queued.Name())
}

func TestNewWebhookDefaults(t *testing.T) {
	hook := notify.NewWebhook("https://hooks.example/orders", "s", nil, zerolog.Nop())
	require.Nil(t, hook.Replay)
	require.Equal(t, "order_webhook", hook.HTTP.Target)
	require.Equal(t, 3, hook.HTTP.MaxAttempts)
	require.NotNil(t, hook.HTTP.Breaker)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	require.NotNil(t, notify.NewWebhook("https://hooks.example/orders", "s", client, zerolog.Nop()).Replay)
}
