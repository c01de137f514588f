package basket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Data  View `json:"data"`
	Error struct {
		Code string `json:"code"`
	} `json:"error"`
}

func newRouter(t *testing.T) (http.Handler, *Service) {
	t.Helper()
	svc := newService(t, nil)
	h := &Handler{Svc: svc}
	r := chi.NewRouter()
	r.Use(SessionMiddleware)
	r.Get("/basket", h.Get)
	r.Delete("/basket", h.Clear)
	r.Post("/basket/items", h.AddItem)
	r.Patch("/basket/items/{index}", h.UpdateItem)
	r.Delete("/basket/items/{index}", h.RemoveItem)
	r.Post("/pricing/quote", h.Quote)
	return r, svc
}

func do(t *testing.T, h http.Handler, method, path, session, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if session != "" {
		req.Header.Set(SessionHeader, session)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestSessionIssuedWhenMissing(t *testing.T) {
	h, _ := newRouter(t)
	rec, env := do(t, h, http.MethodGet, "/basket", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get(SessionHeader))
	require.Equal(t, StateEmpty, env.Data.State)
	require.Equal(t, "0.00", env.Data.Total)
}

func TestBasketHTTPFlow(t *testing.T) {
	h, svc := newRouter(t)

	rec, env := do(t, h, http.MethodPost, "/basket/items", "abc", `{"productId":"3","options":{"size":"medium","shots":"double","milk":"oat"},"quantity":2}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "abc", rec.Header().Get(SessionHeader))
	require.Equal(t, "9.60", env.Data.Total)
	require.Equal(t, "4.80", env.Data.Items[0].UnitPrice)
	require.Equal(t, "normal", env.Data.Items[0].Options.Sugar, "defaults fill unspecified fields")

	rec, env = do(t, h, http.MethodPost, "/basket/items", "abc", `{"productId":"10","options":{"portion":"large","extras":"no onions"},"quantity":1}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "16.60", env.Data.Total)
	require.Equal(t, 3, env.Data.Count)

	rec, env = do(t, h, http.MethodPatch, "/basket/items/1", "abc", `{"delta":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 3, env.Data.Items[1].Quantity)
	require.Equal(t, "30.60", env.Data.Total)

	rec, env = do(t, h, http.MethodPatch, "/basket/items/9", "abc", `{"quantity":5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "30.60", env.Data.Total)

	rec, env = do(t, h, http.MethodDelete, "/basket/items/0", "abc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, env.Data.Items, 1)
	require.Equal(t, "21.00", env.Data.Total)

	_, err := svc.BeginPreview(t.Context(), "abc")
	require.NoError(t, err)
	rec, env = do(t, h, http.MethodDelete, "/basket", "abc", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "PREVIEW_OPEN", env.Error.Code)

	_, err = svc.ClosePreview(t.Context(), "abc")
	require.NoError(t, err)
	rec, env = do(t, h, http.MethodDelete, "/basket", "abc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, StateEmpty, env.Data.State)
}

func TestBasketHTTPErrors(t *testing.T) {
	h, _ := newRouter(t)

	rec, env := do(t, h, http.MethodPost, "/basket/items", "abc", `{"productId":"missing"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NOT_FOUND", env.Error.Code)

	rec, env = do(t, h, http.MethodPost, "/basket/items", "abc", `{"quantity":1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "BAD_REQUEST", env.Error.Code)

	rec, env = do(t, h, http.MethodPatch, "/basket/items/first", "abc", `{"delta":1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "BAD_REQUEST", env.Error.Code)
}

func TestQuote(t *testing.T) {
	h, _ := newRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/pricing/quote", strings.NewReader(`{"productId":"4","options":{"size":"large"},"quantity":2}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "2.50", body.Data["basePrice"])
	require.Equal(t, "3.50", body.Data["unitPrice"])
	require.Equal(t, "7.00", body.Data["lineTotal"])
}
