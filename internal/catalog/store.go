package catalog

import (
	"context"
	"errors"
)

var (
	// ErrNotFound reports a missing product or category.
	ErrNotFound = errors.New("catalog: not found")
	// ErrConflict reports a duplicate identifier.
	ErrConflict = errors.New("catalog: already exists")
)

// Store persists the menu.
type Store interface {
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id string) (Product, error)
	CreateProduct(ctx context.Context, p Product) error
	UpdateProduct(ctx context.Context, p Product) error
	DeleteProduct(ctx context.Context, id string) error

	ListCategories(ctx context.Context) ([]Category, error)
	GetCategory(ctx context.Context, id string) (Category, error)
	CreateCategory(ctx context.Context, c Category) error
	UpdateCategory(ctx context.Context, c Category) error
	// DeleteCategory removes the category together with its products.
	DeleteCategory(ctx context.Context, id string) error
}
