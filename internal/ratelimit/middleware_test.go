package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/slowdrip-api/internal/common"
)

func TestHandlerMiddlewareEnforcesLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	handler := Handler{
		Limiter: Sliding{Client: client, Prefix: "ratelimit:", Window: time.Second, Max: 1},
		Key:     BySession("submit:"),
	}
	counted := handler.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/basket/submit", nil)
	req = req.WithContext(common.WithSessionID(req.Context(), "s1"))

	rr1 := httptest.NewRecorder()
	counted.ServeHTTP(rr1, req)
	require.Equal(t, http.StatusOK, rr1.Code)

	rr2 := httptest.NewRecorder()
	counted.ServeHTTP(rr2, req)
	require.Equal(t, http.StatusTooManyRequests, rr2.Code)
	require.Equal(t, "1", rr2.Header().Get("X-RateLimit-Limit"))
	require.Contains(t, rr2.Body.String(), "RATE_LIMITED")
	require.NotEmpty(t, rr2.Header().Get("Retry-After"))

	other := httptest.NewRequest(http.MethodPost, "/basket/submit", nil)
	other = other.WithContext(common.WithSessionID(other.Context(), "s2"))
	rr3 := httptest.NewRecorder()
	counted.ServeHTTP(rr3, other)
	require.Equal(t, http.StatusOK, rr3.Code, "sessions are limited independently")
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (Decision, error) {
	return Decision{}, errors.New("redis down")
}

func TestHandlerMiddlewareFailsOpen(t *testing.T) {
	var seen error
	handler := Handler{
		Limiter: brokenLimiter{},
		Key:     ByClientIP("quick:"),
		OnError: func(err error) { seen = err },
	}
	rr := httptest.NewRecorder()
	handler.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/orders/quick", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Error(t, seen)
}
