package queue

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/noah-isme/slowdrip-api/internal/common"
)

// AdminHandler exposes queue stats and dead letter replay.
type AdminHandler struct {
	Queue Enqueuer
}

func kindParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	kind := sanitizeKind(strings.TrimSpace(r.URL.Query().Get("kind")))
	if kind == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "kind is required", map[string]any{"field": "kind"})
		return "", false
	}
	return kind, true
}

// Stats handles GET /api/v1/admin/queue/stats?kind=.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Queue.R == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "queue is not configured", nil)
		return
	}
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	stats, err := h.Queue.Stats(r.Context(), kind)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "queue stats unavailable", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": stats})
}

// ReplayDLQ handles POST /api/v1/admin/queue/dlq/replay?kind=&limit=.
func (h *AdminHandler) ReplayDLQ(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Queue.R == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "queue is not configured", nil)
		return
	}
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "limit must be between 1 and 1000", map[string]any{"field": "limit"})
			return
		}
		limit = n
	}
	replayed, err := h.Queue.ReplayDead(r.Context(), kind, limit)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "replay failed", map[string]any{"replayed": replayed})
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"kind": kind, "replayed": replayed}})
}
