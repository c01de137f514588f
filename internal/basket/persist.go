package basket

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/slowdrip-api/internal/obs"
)

// persister writes baskets to the store off the request path. Pending writes
// are coalesced per key so the latest state always wins and enqueueing never
// blocks the caller.
type persister struct {
	store   Store
	timeout time.Duration
	log     zerolog.Logger

	mu       sync.Mutex
	pending  map[string][]byte
	order    []string
	inflight string
	closed   bool

	wake chan struct{}
	done chan struct{}
}

func newPersister(store Store, timeout time.Duration, log zerolog.Logger) *persister {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	p := &persister{
		store:   store,
		timeout: timeout,
		log:     log,
		pending: map[string][]byte{},
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *persister) enqueue(key string, data []byte) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	if _, queued := p.pending[key]; !queued {
		p.order = append(p.order, key)
	}
	p.pending[key] = data
	select {
	case p.wake <- struct{}{}:
	default:
	}
	p.mu.Unlock()
}

func (p *persister) run() {
	defer close(p.done)
	for range p.wake {
		p.flush()
	}
	p.flush()
}

func (p *persister) flush() {
	for {
		p.mu.Lock()
		if len(p.order) == 0 {
			p.mu.Unlock()
			return
		}
		key := p.order[0]
		p.order = p.order[1:]
		data := p.pending[key]
		delete(p.pending, key)
		p.inflight = key
		p.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		err := p.store.Save(ctx, key, data)
		cancel()
		p.mu.Lock()
		p.inflight = ""
		p.mu.Unlock()
		if err != nil {
			obs.ObserveBasketPersist("error")
			p.log.Warn().Err(err).Str("component", "basket").Str("session_id", key).Msg("persist basket")
			continue
		}
		obs.ObserveBasketPersist("ok")
	}
}

// unsettled reports whether a write for key is queued or being saved.
func (p *persister) unsettled(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, queued := p.pending[key]
	return queued || p.inflight == key
}

// close stops accepting writes and waits for queued ones to finish.
func (p *persister) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.wake)
	p.mu.Unlock()
	<-p.done
}
