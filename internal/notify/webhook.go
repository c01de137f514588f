package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/slowdrip-api/internal/resilience"
)

// Webhook posts signed order messages to an HTTP endpoint.
type Webhook struct {
	URL       string
	Secret    string
	HTTP      resilience.HTTPClient
	Replay    ReplayProtector
	ReplayTTL time.Duration
	Now       func() time.Time
}

// NewWebhook builds the order webhook with retries, a circuit breaker and,
// when a Redis client is given, a replay guard.
func NewWebhook(target, secret string, client *redis.Client, logger zerolog.Logger) *Webhook {
	w := &Webhook{
		URL:    target,
		Secret: secret,
		HTTP: resilience.HTTPClient{
			Client:      HTTPClient(5 * time.Second),
			Breaker:     resilience.NewBreaker(5, 0.5, 30*time.Second).WithTarget("order_webhook").WithLogger(logger),
			Target:      "order_webhook",
			BaseBackoff: 200 * time.Millisecond,
			MaxAttempts: 3,
			Jitter:      0.2,
			Timeout:     5 * time.Second,
		},
		ReplayTTL: time.Hour,
	}
	if client != nil {
		w.Replay = RedisReplayProtector{Client: client}
	}
	return w
}

// Name implements Channel.
func (w *Webhook) Name() string { return "webhook" }

// Send implements Channel. A message already delivered within ReplayTTL is
// skipped.
func (w *Webhook) Send(ctx context.Context, msg Message) error {
	if err := validateURL(w.URL); err != nil {
		return err
	}
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String("webhook.order_id", msg.ID), attribute.String("webhook.topic", msg.Topic))

	key := replayKey(msg.ID, msg.Topic)
	if w.Replay != nil && w.ReplayTTL > 0 {
		ok, err := w.Replay.Acquire(ctx, key, w.ReplayTTL)
		if err != nil {
			return fmt.Errorf("webhook replay guard: %w", err)
		}
		if !ok {
			span.AddEvent("delivery replay prevented")
			return nil
		}
	}

	status, err := w.post(ctx, msg)
	if err == nil && (status < 200 || status >= 300) {
		err = fmt.Errorf("webhook: unexpected status %d", status)
	}
	if err != nil && w.Replay != nil && w.ReplayTTL > 0 {
		_ = w.Replay.Release(ctx, key)
	}
	return err
}

func (w *Webhook) post(ctx context.Context, msg Message) (int, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return 0, err
	}
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	ts := now().Unix()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "slowdrip-orders/1.0")
	req.Header.Set("X-Event-ID", msg.ID)
	req.Header.Set("X-Event-Topic", msg.Topic)
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Idempotency-Key", msg.ID)
	req.Header.Set("X-Signature", ComputeSignature(w.Secret, ts, msg.ID, body))

	client := w.HTTP
	if client.Client == nil {
		client.Client = HTTPClient(5 * time.Second)
	}
	resp, err := client.Do(ctx, req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode, nil
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid endpoint url: %w", err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return errors.New("webhook url must be http or https")
	}
	if parsed.Host == "" {
		return errors.New("webhook url must include host")
	}
	if parsed.Scheme == "http" {
		host := parsed.Hostname()
		if host != "localhost" && host != "127.0.0.1" {
			return errors.New("http webhook only allowed for localhost")
		}
	}
	return nil
}

// ComputeSignature is HMAC-SHA256 over "<ts>.<id>.<body>" keyed by secret,
// hex encoded.
func ComputeSignature(secret string, ts int64, id string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(ts, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write([]byte(id))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// HTTPClient returns a traced HTTP client for outbound delivery.
func HTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

func replayKey(id, topic string) string {
	return "wh:" + topic + ":" + id
}
