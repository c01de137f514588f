package catalog_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/slowdrip-api/internal/catalog"
)

type productsResponse struct {
	Data       []catalog.Product `json:"data"`
	Pagination struct {
		Page       int `json:"page"`
		PerPage    int `json:"per_page"`
		TotalItems int `json:"total_items"`
	} `json:"pagination"`
}

type optionsResponse struct {
	Data struct {
		Group  string `json:"group"`
		Fields []struct {
			Name    string `json:"name"`
			Choices []struct {
				Value     string `json:"value"`
				Surcharge string `json:"surcharge"`
			} `json:"choices"`
		} `json:"fields"`
		Defaults  map[string]string `json:"defaults"`
		UnitPrice string            `json:"unitPrice"`
	} `json:"data"`
}

func newHandler(t *testing.T) *catalog.Handler {
	t.Helper()
	store, err := catalog.NewSeededMemoryStore()
	require.NoError(t, err)
	svc, err := catalog.NewService(catalog.ServiceConfig{Store: store, DefaultLimit: 20, MaxLimit: 50})
	require.NoError(t, err)
	return catalog.NewHandler(catalog.HandlerConfig{Service: svc})
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestCatalogHandlers(t *testing.T) {
	handler := newHandler(t)

	t.Run("categories", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.Categories(rec, httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Data []catalog.Category `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Data, 12)
		require.Equal(t, "coffee", body.Data[0].ID)
	})

	t.Run("products filtered and sorted", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.Products(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products?category=coffee&sort=price-high&limit=2", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "3", rec.Header().Get("X-Total-Count"))
		var body productsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Data, 2)
		require.Equal(t, "Cappuccino", body.Data[0].Name)
		require.Equal(t, "Iced Latte", body.Data[1].Name)
		require.Equal(t, 3, body.Pagination.TotalItems)
		require.Equal(t, 2, body.Pagination.PerPage)
	})

	t.Run("invalid sort", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.Products(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products?sort=random", nil))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "BAD_REQUEST")
	})

	t.Run("product not found", func(t *testing.T) {
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/products/999", nil), "id", "999")
		rec := httptest.NewRecorder()
		handler.Product(rec, req)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("coffee options", func(t *testing.T) {
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/products/3/options", nil), "id", "3")
		rec := httptest.NewRecorder()
		handler.ProductOptions(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var body optionsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "coffee", body.Data.Group)
		require.Len(t, body.Data.Fields, 5)
		require.Equal(t, "size", body.Data.Fields[0].Name)
		require.Equal(t, "1.00", body.Data.Fields[0].Choices[2].Surcharge)
		require.Equal(t, "medium", body.Data.Defaults["size"])
		// 3.00 base + medium size
		require.Equal(t, "3.50", body.Data.UnitPrice)
	})
}

func TestAdminHandlers(t *testing.T) {
	handler := newHandler(t)

	rec := httptest.NewRecorder()
	handler.AdminCreateCategory(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/categories", strings.NewReader(`{"name":"Hot Chocolate"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), `"id":"hot-chocolate"`)

	rec = httptest.NewRecorder()
	handler.AdminCreateProduct(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/products", strings.NewReader(`{"name":"Mocha","price":"3.75","category":"hot-chocolate"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	handler.AdminCreateProduct(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/products", strings.NewReader(`{"price":"3.75","category":"hot-chocolate"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), `"name":"required"`)

	rec = httptest.NewRecorder()
	handler.AdminCreateProduct(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/products", strings.NewReader(`{"name":"Ghost","price":"1","category":"nope"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req := withURLParam(httptest.NewRequest(http.MethodDelete, "/api/v1/admin/categories/hot-chocolate", nil), "id", "hot-chocolate")
	rec = httptest.NewRecorder()
	handler.AdminDeleteCategory(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	handler.Products(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products?q=mocha", nil))
	var body productsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Empty(t, body.Data)
}
