package favorites_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/slowdrip-api/internal/basket"
	"github.com/noah-isme/slowdrip-api/internal/catalog"
	"github.com/noah-isme/slowdrip-api/internal/favorites"
)

func menu() *catalog.MemoryStore {
	return catalog.NewMemoryStore(nil, []catalog.Product{
		{ID: "latte", Name: "Latte", Price: decimal.RequireFromString("3.00"), Category: "coffee"},
		{ID: "cake", Name: "Cheesecake", Price: decimal.RequireFromString("4.50"), Category: "dessert"},
	})
}

func TestServiceToggleAndList(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	stores := map[string]favorites.Store{
		"memory": favorites.NewMemoryStore(),
		"redis":  favorites.RedisStore{Client: client},
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			m := menu()
			svc := &favorites.Service{Store: store, Catalog: m}
			ctx := t.Context()

			on, err := svc.Toggle(ctx, "s-"+name, "latte")
			require.NoError(t, err)
			require.True(t, on)
			on, err = svc.Toggle(ctx, "s-"+name, "cake")
			require.NoError(t, err)
			require.True(t, on)

			list, err := svc.List(ctx, "s-"+name)
			require.NoError(t, err)
			require.Len(t, list, 2)
			require.Equal(t, "cake", list[0].ID)

			on, err = svc.Toggle(ctx, "s-"+name, "latte")
			require.NoError(t, err)
			require.False(t, on)
			has, err := svc.Check(ctx, "s-"+name, "latte")
			require.NoError(t, err)
			require.False(t, has)

			require.NoError(t, m.DeleteProduct(ctx, "cake"))
			list, err = svc.List(ctx, "s-"+name)
			require.NoError(t, err)
			require.Empty(t, list)
			has, err = svc.Check(ctx, "s-"+name, "cake")
			require.NoError(t, err)
			require.False(t, has)
		})
	}
}

func TestRedisStoreSetsTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := favorites.RedisStore{Client: client, TTL: time.Hour}
	require.NoError(t, store.Add(t.Context(), "s", "latte"))
	require.Equal(t, time.Hour, mr.TTL("favorites:s"))
}

func TestToggleUnknownProduct(t *testing.T) {
	svc := &favorites.Service{Store: favorites.NewMemoryStore(), Catalog: menu()}
	_, err := svc.Toggle(t.Context(), "s", "ghost")
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestHandlers(t *testing.T) {
	h := &favorites.Handler{Svc: &favorites.Service{Store: favorites.NewMemoryStore(), Catalog: menu()}}
	r := chi.NewRouter()
	r.Use(basket.SessionMiddleware)
	r.Get("/favorites", h.List)
	r.Post("/favorites", h.Toggle)
	r.Get("/favorites/{id}", h.Check)

	call := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(basket.SessionHeader, "fav-session")
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr
	}

	rr := call(http.MethodPost, "/favorites", `{"productId":"latte"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"favorited":true`)

	rr = call(http.MethodGet, "/favorites/latte", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"favorited":true`)

	rr = call(http.MethodGet, "/favorites", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Data []catalog.Product `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	require.Equal(t, "Latte", body.Data[0].Name)

	rr = call(http.MethodPost, "/favorites", `{"productId":"ghost"}`)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = call(http.MethodPost, "/favorites", `{}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
