package order

import (
	"net/http"
	"strconv"

	"github.com/noah-isme/slowdrip-api/internal/common"
	"github.com/noah-isme/slowdrip-api/internal/events"
)

// AdminHandler lets staff review recently placed orders.
type AdminHandler struct {
	Log events.Log
}

// Recent handles GET /api/v1/admin/orders?limit=. Newest first.
func (h *AdminHandler) Recent(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Log == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order log not configured", nil)
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "limit must be between 1 and 200", map[string]any{"field": "limit"})
			return
		}
		limit = n
	}
	// the log also holds preview events; over-fetch and keep orders only
	recent, err := h.Log.Recent(r.Context(), limit*2)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load orders", nil)
		return
	}
	orders := make([]events.Event, 0, limit)
	for _, ev := range recent {
		if ev.Topic != events.TopicOrderSubmitted && ev.Topic != events.TopicQuickOrder {
			continue
		}
		orders = append(orders, ev)
		if len(orders) == limit {
			break
		}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": orders})
}
