package order

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/noah-isme/slowdrip-api/internal/basket"
	"github.com/noah-isme/slowdrip-api/internal/common"
	"github.com/noah-isme/slowdrip-api/internal/lock"
	"github.com/noah-isme/slowdrip-api/internal/options"
	"github.com/noah-isme/slowdrip-api/internal/receipt"
)

// Handler exposes the order flow endpoints.
type Handler struct {
	Svc *Service
}

type quickPayload struct {
	ProductID string         `json:"productId" validate:"required"`
	Options   options.Values `json:"options"`
	Quantity  int            `json:"quantity" validate:"gte=0,lte=99"`
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return false
	}
	return true
}

// Preview handles POST /api/v1/basket/preview.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	sessionID, _ := common.SessionID(r.Context())
	p, err := h.Svc.Preview(r.Context(), sessionID)
	if err != nil {
		WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

// ClosePreview handles DELETE /api/v1/basket/preview.
func (h *Handler) ClosePreview(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	sessionID, _ := common.SessionID(r.Context())
	view, err := h.Svc.ClosePreview(r.Context(), sessionID)
	if err != nil {
		WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// Receipt handles GET /api/v1/basket/receipt.
func (h *Handler) Receipt(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	sessionID, _ := common.SessionID(r.Context())
	doc, err := h.Svc.Receipt(r.Context(), sessionID)
	if err != nil {
		WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", receipt.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Bytes)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Bytes)
}

// Submit handles POST /api/v1/basket/submit.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	sessionID, _ := common.SessionID(r.Context())
	sub, err := h.Svc.Submit(r.Context(), sessionID)
	if err != nil {
		WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": sub})
}

// Quick handles POST /api/v1/orders/quick.
func (h *Handler) Quick(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var payload quickPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		WriteError(w, err)
		return
	}
	sub, err := h.Svc.Quick(r.Context(), payload.ProductID, payload.Options, payload.Quantity)
	if err != nil {
		WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": sub})
}

// WriteError maps order flow errors onto the API error envelope.
func WriteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lock.ErrLocked):
		common.JSONError(w, http.StatusConflict, "SUBMIT_IN_PROGRESS", "this basket is already being submitted", nil)
	case errors.Is(err, receipt.ErrNotReady):
		w.Header().Set("Retry-After", "1")
		common.JSONError(w, http.StatusServiceUnavailable, "RECEIPT_NOT_READY", "receipt renderer is starting, retry shortly", nil)
	default:
		basket.WriteError(w, err)
	}
}
