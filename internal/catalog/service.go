package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/slowdrip-api/internal/common"
)

// Sort orders accepted by ListProducts.
const (
	SortName      = "name"
	SortPriceLow  = "price-low"
	SortPriceHigh = "price-high"
	SortPopular   = "popular"
)

// Service serves menu reads with caching and the admin write paths.
type Service struct {
	store        Store
	cache        *Cache
	log          zerolog.Logger
	defaultLimit int
	maxLimit     int
	newID        func() string
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store        Store
	Cache        *Cache
	Logger       zerolog.Logger
	DefaultLimit int
	MaxLimit     int
	NewID        func() string
}

// ListParams captures filters for product listing.
type ListParams struct {
	Query    string `json:"q,omitempty"`
	Category string `json:"category,omitempty"`
	Dietary  string `json:"dietary,omitempty"`
	Popular  *bool  `json:"popular,omitempty"`
	Featured *bool  `json:"featured,omitempty"`
	Sort     string `json:"sort"`
	Page     int    `json:"page"`
	Limit    int    `json:"limit"`
}

// ProductListResult contains list data and pagination metadata.
type ProductListResult struct {
	Items []Product `json:"items"`
	Total int       `json:"total"`
	Page  int       `json:"-"`
	Limit int       `json:"-"`
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 20
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Service{
		store:        cfg.Store,
		cache:        cfg.Cache,
		log:          cfg.Logger,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		newID:        newID,
	}, nil
}

// ParseListParams normalises raw query values into typed filters.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{Page: 1, Limit: s.defaultLimit, Sort: SortName}
	params.Query = strings.TrimSpace(values.Get("q"))
	params.Category = strings.TrimSpace(values.Get("category"))
	if params.Category == "all" {
		params.Category = ""
	}
	params.Dietary = strings.ToLower(strings.TrimSpace(values.Get("dietary")))

	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, badRequest("page", "page must be a positive integer", err)
		}
		params.Page = page
	}
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 1 {
			return params, badRequest("limit", "limit must be a positive integer", err)
		}
		params.Limit = l
	}
	if params.Limit > s.maxLimit {
		params.Limit = s.maxLimit
	}
	for field, dst := range map[string]**bool{"popular": &params.Popular, "featured": &params.Featured} {
		if v := strings.TrimSpace(values.Get(field)); v != "" {
			b, err := parseBool(v)
			if err != nil {
				return params, badRequest(field, field+" must be true or false", err)
			}
			*dst = &b
		}
	}
	sortBy, err := normalizeSort(values.Get("sort"))
	if err != nil {
		return params, badRequest("sort", "sort must be one of name, price-low, price-high, popular", err)
	}
	params.Sort = sortBy
	return params, nil
}

// ListProducts filters, sorts and paginates the menu.
func (s *Service) ListProducts(ctx context.Context, params ListParams) (ProductListResult, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.Limit < 1 {
		params.Limit = s.defaultLimit
	}
	key := s.cacheKey(ctx, "products:"+listCacheSuffix(params))
	var cached ProductListResult
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err != nil {
		s.log.Warn().Err(err).Str("component", "catalog").Msg("read product list cache")
	} else if ok {
		cached.Page, cached.Limit = params.Page, params.Limit
		return cached, nil
	}

	all, err := s.store.ListProducts(ctx)
	if err != nil {
		return ProductListResult{}, fmt.Errorf("list products: %w", err)
	}
	filtered := Filter(all, params)
	SortProducts(filtered, params.Sort)

	total := len(filtered)
	start := (params.Page - 1) * params.Limit
	if start > total {
		start = total
	}
	end := start + params.Limit
	if end > total {
		end = total
	}
	result := ProductListResult{Items: filtered[start:end], Total: total, Page: params.Page, Limit: params.Limit}
	if err := s.cache.SetJSON(ctx, key, result); err != nil {
		s.log.Warn().Err(err).Str("component", "catalog").Msg("write product list cache")
	}
	return result, nil
}

// GetProduct returns a single product.
func (s *Service) GetProduct(ctx context.Context, id string) (Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Product{}, badRequest("id", "id is required", nil)
	}
	key := s.cacheKey(ctx, "product:"+id)
	var cached Product
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return Product{}, mapStoreErr(err, "product")
	}
	_ = s.cache.SetJSON(ctx, key, p)
	return p, nil
}

// ListCategories returns the categories in display order.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	key := s.cacheKey(ctx, "categories")
	var cached []Category
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	rows, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if rows == nil {
		rows = []Category{}
	}
	_ = s.cache.SetJSON(ctx, key, rows)
	return rows, nil
}

// Filter applies the search and flag filters of params.
func Filter(products []Product, params ListParams) []Product {
	q := strings.ToLower(strings.TrimSpace(params.Query))
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if params.Category != "" && p.Category != params.Category {
			continue
		}
		if q != "" && !matchesQuery(p, q) {
			continue
		}
		if params.Dietary != "" && !hasDietary(p, params.Dietary) {
			continue
		}
		if params.Popular != nil && p.Popular != *params.Popular {
			continue
		}
		if params.Featured != nil && p.Featured != *params.Featured {
			continue
		}
		out = append(out, p)
	}
	return out
}

// SortProducts orders products in place. Ties keep their relative order.
func SortProducts(products []Product, by string) {
	switch by {
	case SortPriceLow:
		sort.SliceStable(products, func(i, j int) bool { return products[i].Price.LessThan(products[j].Price) })
	case SortPriceHigh:
		sort.SliceStable(products, func(i, j int) bool { return products[i].Price.GreaterThan(products[j].Price) })
	case SortPopular:
		sort.SliceStable(products, func(i, j int) bool { return products[i].Popular && !products[j].Popular })
	default:
		sort.SliceStable(products, func(i, j int) bool {
			return strings.ToLower(products[i].Name) < strings.ToLower(products[j].Name)
		})
	}
}

func matchesQuery(p Product, q string) bool {
	return strings.Contains(strings.ToLower(p.Name), q) ||
		strings.Contains(strings.ToLower(p.Description), q) ||
		strings.Contains(strings.ToLower(p.Category), q)
}

func hasDietary(p Product, tag string) bool {
	for _, d := range p.Dietary {
		if strings.EqualFold(d, tag) {
			return true
		}
	}
	return false
}

func (s *Service) cacheKey(ctx context.Context, name string) string {
	key, err := s.cache.Key(ctx, name)
	if err != nil {
		s.log.Warn().Err(err).Str("component", "catalog").Msg("read cache generation")
		return ""
	}
	return key
}

func listCacheSuffix(p ListParams) string {
	parts := []string{p.Query, p.Category, p.Dietary, boolKey(p.Popular), boolKey(p.Featured), p.Sort, strconv.Itoa(p.Page), strconv.Itoa(p.Limit)}
	return common.Sha256Hex(strings.Join(parts, "|"))
}

func boolKey(b *bool) string {
	if b == nil {
		return ""
	}
	return strconv.FormatBool(*b)
}

var nonSlug = regexp.MustCompile(`\s+`)

// Slugify derives a category identifier from its display name.
func Slugify(name string) string {
	return nonSlug.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "y":
		return true, nil
	case "false", "0", "no", "n":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean: %s", value)
	}
}

func normalizeSort(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return SortName, nil
	case SortName, SortPriceLow, SortPriceHigh, SortPopular:
		return s, nil
	default:
		return "", fmt.Errorf("unknown sort %q", s)
	}
}

func mapStoreErr(err error, entity string) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return &common.AppError{Code: "NOT_FOUND", Message: entity + " not found", HTTPStatus: http.StatusNotFound, Err: err}
	case errors.Is(err, ErrConflict):
		return &common.AppError{Code: "CONFLICT", Message: entity + " already exists", HTTPStatus: http.StatusConflict, Err: err}
	default:
		return fmt.Errorf("%s store: %w", entity, err)
	}
}

func badRequest(field, message string, err error) *common.AppError {
	return &common.AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details: map[string]any{
			"field": field,
		},
	}
}

func mustNonNegative(d decimal.Decimal) bool { return !d.IsNegative() }
