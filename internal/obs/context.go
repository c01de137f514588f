package obs

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
)

type routePatternKey struct{}

type annotationsKey struct{}

// annotations collects request fields discovered by inner handlers so the
// outer request logger can report them.
type annotations struct {
	mu     sync.Mutex
	fields map[string]string
}

// WithRoutePattern stores the matched router pattern on the context.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	return context.WithValue(ctx, routePatternKey{}, pattern)
}

// RoutePatternFromContext extracts the route pattern from context if present.
func RoutePatternFromContext(ctx context.Context) string {
	v, _ := ctx.Value(routePatternKey{}).(string)
	return v
}

// routeOf resolves the route label for r once the router has run.
func routeOf(r *http.Request, fallback string) string {
	if route := RoutePatternFromContext(r.Context()); route != "" {
		return route
	}
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if route := rc.RoutePattern(); route != "" {
			return route
		}
	}
	return fallback
}

func withAnnotations(ctx context.Context) (context.Context, *annotations) {
	a := &annotations{fields: map[string]string{}}
	return context.WithValue(ctx, annotationsKey{}, a), a
}

// Annotate attaches key=value to the request log line of ctx. It is a no-op
// outside RequestLogger.
func Annotate(ctx context.Context, key, value string) {
	a, ok := ctx.Value(annotationsKey{}).(*annotations)
	if !ok || value == "" {
		return
	}
	a.mu.Lock()
	a.fields[key] = value
	a.mu.Unlock()
}

func (a *annotations) snapshot() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]string, len(a.fields))
	for k, v := range a.fields {
		out[k] = v
	}
	return out
}
