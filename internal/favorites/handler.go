package favorites

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/slowdrip-api/internal/catalog"
	"github.com/noah-isme/slowdrip-api/internal/common"
)

type Handler struct {
	Svc *Service
}

type togglePayload struct {
	ProductID string `json:"productId" validate:"required"`
}

func session(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := common.SessionID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "MISSING_SESSION", "session id is required", nil)
	}
	return id, ok
}

// List handles GET /api/v1/favorites.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	sid, ok := session(w, r)
	if !ok {
		return
	}
	products, err := h.Svc.List(r.Context(), sid)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": products})
}

// Toggle handles POST /api/v1/favorites.
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	sid, ok := session(w, r)
	if !ok {
		return
	}
	var req togglePayload
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	favorited, err := h.Svc.Toggle(r.Context(), sid, req.ProductID)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"productId": req.ProductID, "favorited": favorited}})
}

// Check handles GET /api/v1/favorites/{id}.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	sid, ok := session(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	favorited, err := h.Svc.Check(r.Context(), sid, id)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"productId": id, "favorited": favorited}})
}

func writeError(w http.ResponseWriter, err error) {
	if !common.IsAppError(err) && errors.Is(err, catalog.ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
		return
	}
	common.WriteError(w, err)
}
