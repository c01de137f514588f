// Package order turns a session basket into an order: the receipt preview,
// the PDF download, submission to the shop's chat channel and the quick
// single-product order.
package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/slowdrip-api/internal/basket"
	"github.com/noah-isme/slowdrip-api/internal/common"
	"github.com/noah-isme/slowdrip-api/internal/events"
	"github.com/noah-isme/slowdrip-api/internal/lock"
	"github.com/noah-isme/slowdrip-api/internal/notify"
	"github.com/noah-isme/slowdrip-api/internal/obs"
	"github.com/noah-isme/slowdrip-api/internal/options"
	"github.com/noah-isme/slowdrip-api/internal/pricing"
	"github.com/noah-isme/slowdrip-api/internal/receipt"
)

const (
	KindBasket = "basket"
	KindQuick  = "quick"
)

// Renderer produces receipt documents.
type Renderer interface {
	Render(ctx context.Context, lines []receipt.Line, timestamp string) (receipt.Document, error)
}

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) (events.Event, error)
}

// Config groups Service dependencies.
type Config struct {
	Baskets     *basket.Service
	Catalog     basket.ProductReader
	Receipts    Renderer
	Events      Emitter
	Locker      lock.Locker
	LockTTL     time.Duration
	Clock       Clock
	TelegramURL string
	// RenderTimeout bounds a render, including the wait for the PDF backend.
	RenderTimeout time.Duration
	Logger        zerolog.Logger
}

// Service runs the basket-to-order flow.
type Service struct {
	baskets  *basket.Service
	catalog  basket.ProductReader
	receipts Renderer
	events   Emitter
	locker   lock.Locker
	lockTTL  time.Duration
	clock    Clock
	telegram string
	timeout  time.Duration
	log      zerolog.Logger

	previews singleflight.Group
}

// NewService validates cfg and constructs a Service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Baskets == nil {
		return nil, errors.New("order: basket service is required")
	}
	if cfg.Receipts == nil {
		return nil, errors.New("order: receipt renderer is required")
	}
	locker := cfg.Locker
	if locker == nil {
		locker = &lock.Local{}
	}
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	timeout := cfg.RenderTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		baskets:  cfg.Baskets,
		catalog:  cfg.Catalog,
		receipts: cfg.Receipts,
		events:   cfg.Events,
		locker:   locker,
		lockTTL:  ttl,
		clock:    cfg.Clock,
		telegram: cfg.TelegramURL,
		timeout:  timeout,
		log:      cfg.Logger,
	}, nil
}

// Preview is an open receipt preview.
type Preview struct {
	Timestamp   string      `json:"timestamp"`
	Text        string      `json:"text"`
	ChannelText string      `json:"channelText"`
	Link        string      `json:"link"`
	Total       string      `json:"total"`
	Filename    string      `json:"filename"`
	Receipt     string      `json:"receipt"`
	Basket      basket.View `json:"basket"`
}

// Submission is a submitted order.
type Submission struct {
	OrderID     string `json:"orderId"`
	Kind        string `json:"kind"`
	Timestamp   string `json:"timestamp"`
	Text        string `json:"text"`
	ReceiptText string `json:"receiptText,omitempty"`
	Link        string `json:"link"`
	ItemCount   int    `json:"itemCount"`
	Total       string `json:"total"`
	Filename    string `json:"filename,omitempty"`
	Receipt     string `json:"receipt,omitempty"`
}

// Preview freezes the basket and renders its receipt. Concurrent previews of
// the same snapshot share one render.
func (s *Service) Preview(ctx context.Context, sessionID string) (Preview, error) {
	snap, err := s.baskets.BeginPreview(ctx, sessionID)
	if err != nil {
		return Preview{}, err
	}
	encoded, err := json.Marshal(snap)
	if err != nil {
		return Preview{}, fmt.Errorf("order: encode snapshot: %w", err)
	}
	key := sessionID + ":" + common.Sha256Hex(string(encoded))

	v, err, shared := s.previews.Do(key, func() (any, error) {
		// the render outlives a caller that gives up; others may be waiting
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.preview(rctx, sessionID, snap)
	})
	if shared {
		obs.ObservePreviewShared()
	}
	if err != nil {
		// a failed render leaves nothing to look at; editing resumes
		if aerr := s.baskets.AbortPreview(context.WithoutCancel(ctx), sessionID, snap); aerr != nil {
			s.log.Warn().Err(aerr).Str("component", "order").Str("session_id", sessionID).Msg("abort preview")
		}
		return Preview{}, err
	}
	return v.(Preview), nil
}

func (s *Service) preview(ctx context.Context, sessionID string, snap *basket.Basket) (Preview, error) {
	lines := receipt.FromBasket(snap)
	ts := s.clock.Stamp()
	doc, err := s.receipts.Render(ctx, lines, ts)
	if err != nil {
		return Preview{}, err
	}
	channel := receipt.RenderText(lines, ts, receipt.TextOptions{})
	p := Preview{
		Timestamp:   ts,
		Text:        receipt.RenderText(lines, ts, receipt.TextOptions{IncludeTotals: true}),
		ChannelText: channel,
		Link:        notify.TelegramLink(s.telegram, channel),
		Total:       pricing.Format(receipt.Total(lines)),
		Filename:    doc.Filename,
		Receipt:     doc.Preview,
		Basket:      basket.NewView(snap, basket.StatePreviewing),
	}
	s.emit(ctx, events.TopicPreviewOpened, sessionID, map[string]any{
		"timestamp": ts,
		"itemCount": len(lines),
		"total":     p.Total,
	})
	return p, nil
}

// ClosePreview returns the session to editing.
func (s *Service) ClosePreview(ctx context.Context, sessionID string) (basket.View, error) {
	return s.baskets.ClosePreview(ctx, sessionID)
}

// Receipt renders the current basket, or the open preview, for download. The
// session state does not change.
func (s *Service) Receipt(ctx context.Context, sessionID string) (receipt.Document, error) {
	snap, _, err := s.baskets.Snapshot(ctx, sessionID)
	if err != nil {
		return receipt.Document{}, err
	}
	if snap.Len() == 0 {
		return receipt.Document{}, basket.ErrEmpty
	}
	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.receipts.Render(rctx, receipt.FromBasket(snap), s.clock.Stamp())
}

// Submit sends the basket to the shop and starts the session over. Only one
// submission per session runs at a time; a concurrent one fails with
// lock.ErrLocked.
func (s *Service) Submit(ctx context.Context, sessionID string) (Submission, error) {
	var sub Submission
	err := s.locker.TryWithLock(ctx, "order:submit:"+sessionID, s.lockTTL, func(ctx context.Context) error {
		return s.baskets.Checkout(ctx, sessionID, func(ctx context.Context, snap *basket.Basket) error {
			lines := receipt.FromBasket(snap)
			ts := s.clock.Stamp()
			rctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			doc, err := s.receipts.Render(rctx, lines, ts)
			if err != nil {
				return err
			}
			text := receipt.RenderText(lines, ts, receipt.TextOptions{})
			sub = Submission{
				OrderID:     uuid.NewString(),
				Kind:        KindBasket,
				Timestamp:   ts,
				Text:        text,
				ReceiptText: receipt.RenderText(lines, ts, receipt.TextOptions{IncludeTotals: true}),
				Link:        notify.TelegramLink(s.telegram, text),
				ItemCount:   len(lines),
				Total:       pricing.Format(receipt.Total(lines)),
				Filename:    doc.Filename,
				Receipt:     doc.Preview,
			}
			return nil
		})
	})
	if err != nil {
		obs.ObserveOrderSubmitted(KindBasket, "error")
		return Submission{}, err
	}
	obs.ObserveOrderSubmitted(KindBasket, "ok")
	s.publish(ctx, events.TopicOrderSubmitted, sub)
	s.log.Info().Str("component", "order").Str("session_id", sessionID).Str("order_id", sub.OrderID).Int("items", sub.ItemCount).Msg("order submitted")
	return sub, nil
}

// Quick orders a single configured product without touching the basket.
func (s *Service) Quick(ctx context.Context, productID string, opts options.Values, qty int) (Submission, error) {
	if s.catalog == nil {
		return Submission{}, errors.New("order: catalog reader not configured")
	}
	p, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		obs.ObserveOrderSubmitted(KindQuick, "error")
		return Submission{}, err
	}
	item := basket.NewLineItem(p, opts, qty)
	lines := []receipt.Line{receipt.FromItem(item)}
	ts := s.clock.Stamp()
	text := receipt.RenderText(lines, ts, receipt.TextOptions{ProductName: p.Name})
	sub := Submission{
		OrderID:   uuid.NewString(),
		Kind:      KindQuick,
		Timestamp: ts,
		Text:      text,
		Link:      notify.TelegramLink(s.telegram, text),
		ItemCount: 1,
		Total:     pricing.Format(item.LineTotal()),
	}
	obs.ObserveOrderSubmitted(KindQuick, "ok")
	s.publish(ctx, events.TopicQuickOrder, sub)
	return sub, nil
}

func (s *Service) publish(ctx context.Context, topic string, sub Submission) {
	s.emit(ctx, topic, sub.OrderID, events.OrderPayload{
		OrderID:   sub.OrderID,
		Kind:      sub.Kind,
		Timestamp: sub.Timestamp,
		Text:      sub.Text,
		Link:      sub.Link,
		ItemCount: sub.ItemCount,
		Total:     sub.Total,
		Receipt:   sub.Filename,
	})
}

// emit never fails the order: delivery problems are logged only.
func (s *Service) emit(ctx context.Context, topic, aggregateID string, payload any) {
	if s.events == nil {
		return
	}
	if _, err := s.events.Emit(ctx, topic, aggregateID, payload); err != nil {
		s.log.Warn().Err(err).Str("component", "order").Str("topic", topic).Str("aggregate_id", aggregateID).Msg("emit event")
	}
}
