package receipt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/slowdrip-api/internal/obs"
	"github.com/noah-isme/slowdrip-api/internal/resilience"
)

// ErrNotReady reports that the PDF backend has not finished initialising.
// Callers may retry.
var ErrNotReady = errors.New("receipt: renderer not ready")

// Config configures an Engine.
type Config struct {
	Branding Branding
	Logger   zerolog.Logger
	Now      func() time.Time
}

// Engine renders receipts once its PDF backend is initialised. The backend is
// brought up exactly once in the background by Start; renders wait on it.
type Engine struct {
	brand Branding
	log   zerolog.Logger
	now   func() time.Time
	boot  func() (func(string) string, error)

	once  sync.Once
	ready chan struct{}
	stop  chan struct{}
	halt  sync.Once
	tr    func(string) string
}

// NewEngine constructs an Engine. Call Start to initialise it.
func NewEngine(cfg Config) *Engine {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		brand: cfg.Branding,
		log:   cfg.Logger,
		now:   now,
		boot:  loadBackend,
		ready: make(chan struct{}),
		stop:  make(chan struct{}),
	}
}

// loadBackend prepares the cp1252 translation table and the core font
// metrics used for every document.
func loadBackend() (func(string) string, error) {
	pdf := fpdf.New("P", "pt", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont(fontFamily, "", 12)
	pdf.SetFont(fontFamily, "B", 12)
	if err := pdf.Error(); err != nil {
		return nil, err
	}
	return tr, nil
}

// Start begins initialisation. Failed attempts are retried with backoff until
// one succeeds or Close is called. Calling Start more than once is a no-op.
func (e *Engine) Start() {
	e.once.Do(func() { go e.run() })
}

const (
	bootRetryBase = 50 * time.Millisecond
	bootRetryMax  = 5 * time.Second
)

// bootDelay is the wait before boot attempt+1.
func bootDelay(attempt int) time.Duration {
	return min(resilience.Backoff(bootRetryBase, min(attempt, 8), 0), bootRetryMax)
}

func (e *Engine) run() {
	for attempt := 1; ; attempt++ {
		tr, err := e.boot()
		if err == nil {
			e.tr = tr
			close(e.ready)
			e.log.Debug().Str("component", "receipt").Int("attempt", attempt).Msg("pdf backend ready")
			return
		}
		e.log.Warn().Err(err).Str("component", "receipt").Int("attempt", attempt).Msg("pdf backend init failed")
		select {
		case <-e.stop:
			return
		case <-time.After(bootDelay(attempt)):
		}
	}
}

// Ready is closed once the backend is usable.
func (e *Engine) Ready() <-chan struct{} { return e.ready }

// Await blocks until the engine is ready or ctx ends.
func (e *Engine) Await(ctx context.Context) error {
	e.Start()
	select {
	case <-e.ready:
		return nil
	default:
	}
	select {
	case <-e.ready:
		return nil
	case <-e.stop:
		return ErrNotReady
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrNotReady, ctx.Err())
	}
}

// Close stops a pending initialisation.
func (e *Engine) Close() {
	e.halt.Do(func() { close(e.stop) })
}

// Render produces the receipt document for lines.
func (e *Engine) Render(ctx context.Context, lines []Line, timestamp string) (Document, error) {
	if err := e.Await(ctx); err != nil {
		return Document{}, err
	}
	_, span := obs.StartSpan(ctx, "receipt", "receipt.render", attribute.Int("receipt.lines", len(lines)))
	start := time.Now()
	doc, err := render(lines, timestamp, e.brand, e.tr, e.now())
	result := "ok"
	if err != nil {
		result = "error"
		e.log.Error().Err(err).Str("component", "receipt").Int("lines", len(lines)).Msg("render receipt")
	}
	obs.ObserveReceiptRender(result, time.Since(start))
	obs.EndSpan(span, err)
	return doc, err
}
