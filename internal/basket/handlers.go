package basket

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/slowdrip-api/internal/catalog"
	"github.com/noah-isme/slowdrip-api/internal/common"
	"github.com/noah-isme/slowdrip-api/internal/options"
	"github.com/noah-isme/slowdrip-api/internal/pricing"
)

// Handler exposes basket endpoints.
type Handler struct {
	Svc *Service
}

type addItemPayload struct {
	ProductID string         `json:"productId" validate:"required"`
	Options   options.Values `json:"options"`
	Quantity  int            `json:"quantity" validate:"gte=0,lte=99"`
}

type updateItemPayload struct {
	Options  *options.Values `json:"options"`
	Quantity *int            `json:"quantity" validate:"omitempty,lte=99"`
	Delta    *int            `json:"delta" validate:"omitempty,gte=-99,lte=99"`
}

type quotePayload struct {
	ProductID string         `json:"productId" validate:"required"`
	Options   options.Values `json:"options"`
	Quantity  int            `json:"quantity" validate:"gte=0,lte=99"`
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "basket service not configured", nil)
		return false
	}
	return true
}

// Get handles GET /api/v1/basket.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	sessionID, _ := common.SessionID(r.Context())
	view, err := h.Svc.Get(r.Context(), sessionID)
	if err != nil {
		WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// Clear handles DELETE /api/v1/basket.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	sessionID, _ := common.SessionID(r.Context())
	view, err := h.Svc.Clear(r.Context(), sessionID)
	if err != nil {
		WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// AddItem handles POST /api/v1/basket/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var payload addItemPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		WriteError(w, err)
		return
	}
	sessionID, _ := common.SessionID(r.Context())
	view, err := h.Svc.AddItem(r.Context(), sessionID, payload.ProductID, payload.Options, payload.Quantity)
	if err != nil {
		WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": view})
}

// UpdateItem handles PATCH /api/v1/basket/items/{index}. A delta adjusts the
// quantity relative to its current value.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	index, err := indexParam(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	var payload updateItemPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		WriteError(w, err)
		return
	}
	sessionID, _ := common.SessionID(r.Context())
	ctx := r.Context()
	var view View
	if payload.Options != nil || payload.Quantity != nil {
		view, err = h.Svc.UpdateItem(ctx, sessionID, index, Patch{Options: payload.Options, Quantity: payload.Quantity})
		if err != nil {
			WriteError(w, err)
			return
		}
	}
	if payload.Delta != nil {
		view, err = h.Svc.AdjustItem(ctx, sessionID, index, *payload.Delta)
		if err != nil {
			WriteError(w, err)
			return
		}
	}
	if payload.Options == nil && payload.Quantity == nil && payload.Delta == nil {
		if view, err = h.Svc.Get(ctx, sessionID); err != nil {
			WriteError(w, err)
			return
		}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// RemoveItem handles DELETE /api/v1/basket/items/{index}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	index, err := indexParam(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	sessionID, _ := common.SessionID(r.Context())
	view, err := h.Svc.RemoveItem(r.Context(), sessionID, index)
	if err != nil {
		WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// Quote handles POST /api/v1/pricing/quote: the price of a configuration
// before it is added to the basket.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var payload quotePayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		WriteError(w, err)
		return
	}
	p, err := h.Svc.catalog.GetProduct(r.Context(), payload.ProductID)
	if err != nil {
		WriteError(w, err)
		return
	}
	item := NewLineItem(p, payload.Options, payload.Quantity)
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"productId": p.ID,
		"options":   item.Options,
		"quantity":  item.Quantity,
		"basePrice": pricing.Format(p.Price),
		"unitPrice": pricing.Format(item.UnitPrice()),
		"lineTotal": pricing.Format(item.LineTotal()),
	}})
}

func indexParam(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "index")
	index, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &common.AppError{Code: "BAD_REQUEST", Message: "index must be an integer", HTTPStatus: http.StatusBadRequest, Err: err, Details: map[string]any{"field": "index"}}
	}
	return index, nil
}

// WriteError maps basket errors onto the API error envelope.
func WriteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrPreviewOpen):
		common.JSONError(w, http.StatusConflict, "PREVIEW_OPEN", "close the receipt preview before changing the basket", nil)
	case errors.Is(err, ErrEmpty):
		common.JSONError(w, http.StatusUnprocessableEntity, "EMPTY_BASKET", "basket is empty", nil)
	case errors.Is(err, ErrNoSession):
		common.JSONError(w, http.StatusBadRequest, "MISSING_SESSION", "session id is required", nil)
	case !common.IsAppError(err) && errors.Is(err, catalog.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
	default:
		common.WriteError(w, err)
	}
}
