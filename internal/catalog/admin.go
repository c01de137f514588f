package catalog

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/slowdrip-api/internal/common"
)

// ProductInput is the admin payload for creating or replacing a product.
type ProductInput struct {
	Name            string          `json:"name" validate:"required,max=120"`
	Price           decimal.Decimal `json:"price"`
	Category        string          `json:"category" validate:"required"`
	Image           string          `json:"image" validate:"omitempty,max=500"`
	Description     string          `json:"description" validate:"max=500"`
	FullDescription string          `json:"fullDescription" validate:"max=4000"`
	Dietary         []string        `json:"dietary" validate:"dive,required"`
	Popular         bool            `json:"popular"`
	Featured        bool            `json:"featured"`
}

// CategoryInput is the admin payload for a category.
type CategoryInput struct {
	Name string `json:"name" validate:"required,max=80"`
	Icon string `json:"icon" validate:"max=80"`
}

func (in ProductInput) toProduct(id string) Product {
	dietary := in.Dietary
	if dietary == nil {
		dietary = []string{}
	}
	return Product{
		ID:              id,
		Name:            strings.TrimSpace(in.Name),
		Price:           in.Price,
		Category:        categoryTag(in.Category),
		Image:           in.Image,
		Description:     in.Description,
		FullDescription: in.FullDescription,
		Dietary:         dietary,
		Popular:         in.Popular,
		Featured:        in.Featured,
	}
}

// categoryTag is the stored form of a product's category: the exact tag the
// option schema matches on.
func categoryTag(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func (s *Service) checkProductInput(ctx context.Context, in ProductInput) error {
	if err := common.Validate(in); err != nil {
		return err
	}
	if !mustNonNegative(in.Price) {
		return badRequest("price", "price must not be negative", nil)
	}
	if in.Price.Exponent() < -2 && !in.Price.Equal(in.Price.Truncate(2)) {
		return badRequest("price", "price must have at most two decimal places", nil)
	}
	if _, err := s.store.GetCategory(ctx, categoryTag(in.Category)); err != nil {
		return badRequest("category", "category does not exist", err)
	}
	return nil
}

// CreateProduct adds a product with a generated identifier.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	if err := s.checkProductInput(ctx, in); err != nil {
		return Product{}, err
	}
	p := in.toProduct(s.newID())
	if err := s.store.CreateProduct(ctx, p); err != nil {
		return Product{}, mapStoreErr(err, "product")
	}
	s.invalidate(ctx)
	return p, nil
}

// UpdateProduct replaces the product with the given id.
func (s *Service) UpdateProduct(ctx context.Context, id string, in ProductInput) (Product, error) {
	if err := s.checkProductInput(ctx, in); err != nil {
		return Product{}, err
	}
	p := in.toProduct(id)
	if err := s.store.UpdateProduct(ctx, p); err != nil {
		return Product{}, mapStoreErr(err, "product")
	}
	s.invalidate(ctx)
	return p, nil
}

// DeleteProduct removes a product.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return mapStoreErr(err, "product")
	}
	s.invalidate(ctx)
	return nil
}

// CreateCategory adds a category whose id is the slug of its name.
func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (Category, error) {
	if err := common.Validate(in); err != nil {
		return Category{}, err
	}
	c := Category{ID: Slugify(in.Name), Name: strings.TrimSpace(in.Name), Icon: in.Icon}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return Category{}, mapStoreErr(err, "category")
	}
	s.invalidate(ctx)
	return c, nil
}

// UpdateCategory renames a category. Its id stays stable.
func (s *Service) UpdateCategory(ctx context.Context, id string, in CategoryInput) (Category, error) {
	if err := common.Validate(in); err != nil {
		return Category{}, err
	}
	c := Category{ID: id, Name: strings.TrimSpace(in.Name), Icon: in.Icon}
	if err := s.store.UpdateCategory(ctx, c); err != nil {
		return Category{}, mapStoreErr(err, "category")
	}
	s.invalidate(ctx)
	return c, nil
}

// DeleteCategory removes a category and every product in it.
func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return mapStoreErr(err, "category")
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn().Err(err).Str("component", "catalog").Msg("invalidate catalog cache")
	}
}
