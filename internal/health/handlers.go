package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

var draining atomic.Bool

// SetReady flips readiness; false makes Ready fail while the server drains.
func SetReady(ok bool) { draining.Store(!ok) }

// Probe checks one dependency.
type Probe struct {
	Name    string
	Check   func(ctx context.Context) error
	Timeout time.Duration
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Probes []Probe
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on dependency probes.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	status := make(map[string]string, len(h.Probes)+1)
	healthy := !draining.Load()
	if !healthy {
		status["server"] = "draining"
	}
	for _, p := range h.Probes {
		timeout := p.Timeout
		if timeout <= 0 {
			timeout = 500 * time.Millisecond
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		err := p.Check(ctx)
		cancel()
		if err != nil {
			status[p.Name] = err.Error()
			healthy = false
			continue
		}
		status[p.Name] = "ok"
	}
	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PostgresProbe pings the database pool.
func PostgresProbe(db Pinger) Probe {
	return Probe{Name: "db", Check: db.Ping, Timeout: 500 * time.Millisecond}
}

// RedisProbe pings Redis.
func RedisProbe(client redis.UniversalClient) Probe {
	return Probe{Name: "redis", Check: func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}, Timeout: 300 * time.Millisecond}
}

var errStarting = errors.New("starting")

// ReadySignal probes a component that closes a channel once usable.
func ReadySignal(name string, ready func() <-chan struct{}) Probe {
	return Probe{Name: name, Check: func(context.Context) error {
		select {
		case <-ready():
			return nil
		default:
			return errStarting
		}
	}}
}
