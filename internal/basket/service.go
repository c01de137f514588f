package basket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/slowdrip-api/internal/catalog"
	"github.com/noah-isme/slowdrip-api/internal/options"
	"github.com/noah-isme/slowdrip-api/internal/pricing"
)

var (
	// ErrPreviewOpen rejects mutations while a receipt preview is open.
	ErrPreviewOpen = errors.New("basket: preview is open")
	// ErrEmpty reports an action that needs at least one line.
	ErrEmpty = errors.New("basket: empty")
	// ErrNoSession reports a missing session identifier.
	ErrNoSession = errors.New("basket: missing session id")
)

// ProductReader resolves products for new line items.
type ProductReader interface {
	GetProduct(ctx context.Context, id string) (catalog.Product, error)
}

// Config groups Service dependencies.
type Config struct {
	Catalog     ProductReader
	Store       Store
	Logger      zerolog.Logger
	SaveTimeout time.Duration
	IdleTTL     time.Duration
	Now         func() time.Time
}

// Service owns the baskets of live sessions. Each session is loaded from the
// store on first touch and written back after every mutation without waiting
// for the write.
type Service struct {
	catalog ProductReader
	store   Store
	log     zerolog.Logger
	persist *persister
	idleTTL time.Duration
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	mu       sync.Mutex
	loaded   bool
	basket   *Basket
	state    State
	preview  *Basket
	lastSeen time.Time
}

// NewService constructs a Service and starts its background writer.
func NewService(cfg Config) (*Service, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("basket: catalog reader is required")
	}
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	idle := cfg.IdleTTL
	if idle <= 0 {
		idle = 30 * time.Minute
	}
	return &Service{
		catalog:  cfg.Catalog,
		store:    store,
		log:      cfg.Logger,
		persist:  newPersister(store, cfg.SaveTimeout, cfg.Logger),
		idleTTL:  idle,
		now:      now,
		sessions: map[string]*session{},
	}, nil
}

// LineView is the presentation form of a line item.
type LineView struct {
	Index     int            `json:"index"`
	ProductID string         `json:"productId"`
	Name      string         `json:"name"`
	Category  string         `json:"category"`
	BasePrice string         `json:"basePrice"`
	Options   options.Values `json:"options"`
	Quantity  int            `json:"quantity"`
	UnitPrice string         `json:"unitPrice"`
	LineTotal string         `json:"lineTotal"`
}

// View is the presentation form of a session basket.
type View struct {
	State State      `json:"state"`
	Items []LineView `json:"items"`
	Count int        `json:"count"`
	Total string     `json:"total"`
}

// NewView renders b for clients.
func NewView(b *Basket, state State) View {
	items := b.Items()
	view := View{State: state, Items: make([]LineView, 0, len(items)), Total: pricing.Format(b.Total())}
	for i, it := range items {
		view.Items = append(view.Items, LineView{
			Index:     i,
			ProductID: it.Product.ID,
			Name:      it.Product.Name,
			Category:  it.Product.Category,
			BasePrice: pricing.Format(it.Product.Price),
			Options:   it.Options,
			Quantity:  it.Quantity,
			UnitPrice: pricing.Format(it.UnitPrice()),
			LineTotal: pricing.Format(it.LineTotal()),
		})
		view.Count += it.Quantity
	}
	return view
}

// Get returns the session's basket.
func (s *Service) Get(ctx context.Context, sessionID string) (View, error) {
	var view View
	err := s.with(ctx, sessionID, func(sess *session) error {
		view = NewView(sess.basket, sess.state)
		return nil
	})
	return view, err
}

// Snapshot returns a copy of the session's basket and its state.
func (s *Service) Snapshot(ctx context.Context, sessionID string) (*Basket, State, error) {
	var (
		b     *Basket
		state State
	)
	err := s.with(ctx, sessionID, func(sess *session) error {
		b = sess.basket.Clone()
		if sess.state == StatePreviewing && sess.preview != nil {
			b = sess.preview.Clone()
		}
		state = sess.state
		return nil
	})
	return b, state, err
}

// AddItem configures productID with opts and appends it.
func (s *Service) AddItem(ctx context.Context, sessionID, productID string, opts options.Values, qty int) (View, error) {
	if strings.TrimSpace(sessionID) == "" {
		return View{}, ErrNoSession
	}
	p, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return View{}, err
	}
	item := NewLineItem(p, opts, qty)
	return s.mutate(ctx, sessionID, func(b *Basket) { b.Add(item) })
}

// UpdateItem patches the line at index. Out-of-range indices are a no-op.
func (s *Service) UpdateItem(ctx context.Context, sessionID string, index int, patch Patch) (View, error) {
	return s.mutate(ctx, sessionID, func(b *Basket) { b.UpdateItem(index, patch) })
}

// AdjustItem changes the quantity at index by delta, clamped at one.
func (s *Service) AdjustItem(ctx context.Context, sessionID string, index, delta int) (View, error) {
	return s.mutate(ctx, sessionID, func(b *Basket) { b.Adjust(index, delta) })
}

// RemoveItem deletes the line at index. Out-of-range indices are a no-op.
func (s *Service) RemoveItem(ctx context.Context, sessionID string, index int) (View, error) {
	return s.mutate(ctx, sessionID, func(b *Basket) { b.RemoveItem(index) })
}

// Clear empties the basket.
func (s *Service) Clear(ctx context.Context, sessionID string) (View, error) {
	return s.mutate(ctx, sessionID, func(b *Basket) { b.Clear() })
}

// BeginPreview freezes a snapshot of the basket and blocks mutations until
// ClosePreview or Checkout. Calling it again returns the same snapshot.
func (s *Service) BeginPreview(ctx context.Context, sessionID string) (*Basket, error) {
	var snap *Basket
	err := s.with(ctx, sessionID, func(sess *session) error {
		if sess.state == StatePreviewing && sess.preview != nil {
			snap = sess.preview.Clone()
			return nil
		}
		if sess.basket.Len() == 0 {
			return ErrEmpty
		}
		sess.preview = sess.basket.Clone()
		sess.state = StatePreviewing
		snap = sess.preview.Clone()
		return nil
	})
	return snap, err
}

// ClosePreview returns the session to editing.
func (s *Service) ClosePreview(ctx context.Context, sessionID string) (View, error) {
	var view View
	err := s.with(ctx, sessionID, func(sess *session) error {
		if sess.state == StatePreviewing {
			sess.preview = nil
			sess.state = settle(sess.basket)
		}
		view = NewView(sess.basket, sess.state)
		return nil
	})
	return view, err
}

// AbortPreview returns the session to editing after a failed preview render,
// provided the preview still shows snap. A preview opened since then is kept.
func (s *Service) AbortPreview(ctx context.Context, sessionID string, snap *Basket) error {
	want, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.with(ctx, sessionID, func(sess *session) error {
		if sess.state != StatePreviewing || sess.preview == nil {
			return nil
		}
		got, err := json.Marshal(sess.preview)
		if err != nil || string(got) != string(want) {
			return err
		}
		sess.preview = nil
		sess.state = settle(sess.basket)
		return nil
	})
}

// Checkout hands the current snapshot (the preview when one is open) to
// submit while the session is locked. When submit succeeds the order is
// final: the session starts over with an empty basket.
func (s *Service) Checkout(ctx context.Context, sessionID string, submit func(ctx context.Context, snapshot *Basket) error) error {
	return s.with(ctx, sessionID, func(sess *session) error {
		snap := sess.basket
		if sess.state == StatePreviewing && sess.preview != nil {
			snap = sess.preview
		}
		if snap.Len() == 0 {
			return ErrEmpty
		}
		if err := submit(ctx, snap.Clone()); err != nil {
			return err
		}
		sess.state = StateSubmitted
		sess.basket = &Basket{}
		sess.preview = nil
		s.save(sessionID, sess.basket)
		sess.state = StateEmpty
		return nil
	})
}

// Sweep drops sessions idle for longer than the idle TTL from memory. Their
// baskets stay in the store and reload on the next request. Sessions with a
// write not yet in the store are kept until it lands.
func (s *Service) Sweep() int {
	cutoff := s.now().Add(-s.idleTTL)
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, sess := range s.sessions {
		if !sess.mu.TryLock() {
			continue
		}
		idle := sess.lastSeen.Before(cutoff) && sess.state != StatePreviewing && !s.persist.unsettled(id)
		sess.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Close flushes pending writes and stops the background writer.
func (s *Service) Close() {
	s.persist.close()
}

func (s *Service) mutate(ctx context.Context, sessionID string, fn func(b *Basket)) (View, error) {
	var view View
	err := s.with(ctx, sessionID, func(sess *session) error {
		if sess.state == StatePreviewing {
			return ErrPreviewOpen
		}
		fn(sess.basket)
		sess.state = settle(sess.basket)
		s.save(sessionID, sess.basket)
		view = NewView(sess.basket, sess.state)
		return nil
	})
	return view, err
}

func (s *Service) with(ctx context.Context, sessionID string, fn func(sess *session) error) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ErrNoSession
	}
	sess := s.lockSession(sessionID)
	defer sess.mu.Unlock()
	if !sess.loaded {
		s.load(ctx, sessionID, sess)
	}
	sess.lastSeen = s.now()
	return fn(sess)
}

// lockSession returns the live session for id with its mutex held. A session
// evicted by Sweep between lookup and locking is discarded and looked up again.
func (s *Service) lockSession(id string) *session {
	for {
		s.mu.Lock()
		sess, ok := s.sessions[id]
		if !ok {
			sess = &session{basket: &Basket{}, state: StateEmpty}
			s.sessions[id] = sess
		}
		s.mu.Unlock()

		sess.mu.Lock()
		s.mu.Lock()
		live := s.sessions[id] == sess
		s.mu.Unlock()
		if live {
			return sess
		}
		sess.mu.Unlock()
	}
}

func (s *Service) load(ctx context.Context, sessionID string, sess *session) {
	data, ok, err := s.store.Load(ctx, sessionID)
	if err != nil {
		// the session still works from memory; the next save repairs the store
		s.log.Warn().Err(err).Str("component", "basket").Str("session_id", sessionID).Msg("load basket")
		sess.loaded = true
		return
	}
	sess.loaded = true
	if !ok {
		return
	}
	var b Basket
	if err := json.Unmarshal(data, &b); err != nil {
		s.log.Warn().Err(err).Str("component", "basket").Str("session_id", sessionID).Msg("decode stored basket")
		return
	}
	sess.basket = &b
	sess.state = settle(sess.basket)
}

func (s *Service) save(sessionID string, b *Basket) {
	data, err := json.Marshal(b)
	if err != nil {
		s.log.Error().Err(fmt.Errorf("encode basket: %w", err)).Str("session_id", sessionID).Msg("persist basket")
		return
	}
	s.persist.enqueue(sessionID, data)
}
