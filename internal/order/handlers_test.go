package order_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/slowdrip-api/internal/basket"
	"github.com/noah-isme/slowdrip-api/internal/order"
	"github.com/noah-isme/slowdrip-api/internal/receipt"
)

func newRouter(t *testing.T, r order.Renderer) (http.Handler, fixture) {
	t.Helper()
	f := newFixture(t, r, nil)
	bh := &basket.Handler{Svc: f.baskets}
	oh := &order.Handler{Svc: f.orders}
	ah := &order.AdminHandler{Log: f.log}

	router := chi.NewRouter()
	router.Use(basket.SessionMiddleware)
	router.Post("/basket/items", bh.AddItem)
	router.Get("/basket", bh.Get)
	router.Post("/basket/preview", oh.Preview)
	router.Delete("/basket/preview", oh.ClosePreview)
	router.Get("/basket/receipt", oh.Receipt)
	router.Post("/basket/submit", oh.Submit)
	router.Post("/orders/quick", oh.Quick)
	router.Get("/admin/orders", ah.Recent)
	return router, f
}

func call(t *testing.T, h http.Handler, method, path, session string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set(basket.SessionHeader, session)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type errorBody struct {
	Error struct {
		Code string `json:"code"`
	} `json:"error"`
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func TestOrderFlowOverHTTP(t *testing.T) {
	engine := receipt.NewEngine(receipt.Config{Now: func() time.Time { return time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC) }})
	engine.Start()
	t.Cleanup(engine.Close)
	h, _ := newRouter(t, engine)

	rec := call(t, h, http.MethodPost, "/basket/submit", "s1", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "EMPTY_BASKET", errorCode(t, rec))

	rec = call(t, h, http.MethodPost, "/basket/items", "s1", map[string]any{
		"productId": latte.ID, "options": map[string]string{"size": "medium", "shots": "double", "milk": "oat"}, "quantity": 2,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = call(t, h, http.MethodPost, "/basket/preview", "s1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var preview struct {
		Data order.Preview `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &preview))
	require.True(t, strings.HasPrefix(preview.Data.Receipt, "data:application/pdf;base64,"))
	require.Equal(t, "9.60", preview.Data.Total)

	rec = call(t, h, http.MethodPost, "/basket/items", "s1", map[string]any{"productId": tea.ID})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "PREVIEW_OPEN", errorCode(t, rec))

	rec = call(t, h, http.MethodGet, "/basket/receipt", "s1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, receipt.ContentType, rec.Header().Get("Content-Type"))
	require.Equal(t, `attachment; filename="order_1_2_2026__9_30_00_AM.pdf"`, rec.Header().Get("Content-Disposition"))
	require.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	rec = call(t, h, http.MethodPost, "/basket/submit", "s1", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var submitted struct {
		Data order.Submission `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitted))
	require.Equal(t, "9.60", submitted.Data.Total)

	rec = call(t, h, http.MethodGet, "/basket", "s1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view struct {
		Data basket.View `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, basket.StateEmpty, view.Data.State)

	rec = call(t, h, http.MethodGet, "/admin/orders", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var recent struct {
		Data []struct {
			Topic       string `json:"topic"`
			AggregateID string `json:"aggregateId"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recent))
	require.Len(t, recent.Data, 1)
	require.Equal(t, "order.submitted", recent.Data[0].Topic)
	require.Equal(t, submitted.Data.OrderID, recent.Data[0].AggregateID)
}

func TestClosePreviewOverHTTP(t *testing.T) {
	h, f := newRouter(t, &fakeRenderer{})
	f.fill(t, "s1")

	require.Equal(t, http.StatusOK, call(t, h, http.MethodPost, "/basket/preview", "s1", nil).Code)
	rec := call(t, h, http.MethodDelete, "/basket/preview", "s1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = call(t, h, http.MethodPost, "/basket/items", "s1", map[string]any{"productId": tea.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestRendererNotReadyIsRetryable(t *testing.T) {
	h, f := newRouter(t, &fakeRenderer{err: receipt.ErrNotReady})
	f.fill(t, "s1")

	rec := call(t, h, http.MethodGet, "/basket/receipt", "s1", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "1", rec.Header().Get("Retry-After"))
	require.Equal(t, "RECEIPT_NOT_READY", errorCode(t, rec))
}

func TestQuickOrderOverHTTP(t *testing.T) {
	h, _ := newRouter(t, &fakeRenderer{})

	rec := call(t, h, http.MethodPost, "/orders/quick", "", map[string]any{"productId": noodle.ID, "options": map[string]string{"portion": "large", "extras": "no onions"}})
	require.Equal(t, http.StatusCreated, rec.Code)
	var body struct {
		Data order.Submission `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "7.00", body.Data.Total)
	require.Contains(t, body.Data.Text, "  Special requests: no onions\n")

	rec = call(t, h, http.MethodPost, "/orders/quick", "", map[string]any{"productId": "nope"})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(t, h, http.MethodPost, "/orders/quick", "", map[string]any{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminOrdersLimit(t *testing.T) {
	h, _ := newRouter(t, &fakeRenderer{})
	rec := call(t, h, http.MethodGet, "/admin/orders?limit=0", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
