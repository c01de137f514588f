package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// DB is the subset of pgxpool.Pool used by PostgresStore.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists the menu in PostgreSQL.
type PostgresStore struct {
	DB DB
}

const productColumns = `id, name, price::text, category, image, description, full_description, dietary, popular, featured`

func (s *PostgresStore) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetProduct(ctx context.Context, id string) (Product, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (s *PostgresStore) CreateProduct(ctx context.Context, p Product) error {
	_, err := s.DB.Exec(ctx, `INSERT INTO products (id, name, price, category, image, description, full_description, dietary, popular, featured)
VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.Name, p.Price.StringFixed(2), p.Category, p.Image, p.Description, p.FullDescription, dietaryOrEmpty(p.Dietary), p.Popular, p.Featured)
	return mapWriteErr(err)
}

func (s *PostgresStore) UpdateProduct(ctx context.Context, p Product) error {
	tag, err := s.DB.Exec(ctx, `UPDATE products SET name = $2, price = $3::numeric, category = $4, image = $5, description = $6,
full_description = $7, dietary = $8, popular = $9, featured = $10, updated_at = now() WHERE id = $1`,
		p.ID, p.Name, p.Price.StringFixed(2), p.Category, p.Image, p.Description, p.FullDescription, dietaryOrEmpty(p.Dietary), p.Popular, p.Featured)
	if err != nil {
		return mapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteProduct(ctx context.Context, id string) error {
	tag, err := s.DB.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.DB.Query(ctx, `SELECT id, name, icon FROM categories ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Icon); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetCategory(ctx context.Context, id string) (Category, error) {
	var c Category
	err := s.DB.QueryRow(ctx, `SELECT id, name, icon FROM categories WHERE id = $1`, id).Scan(&c.ID, &c.Name, &c.Icon)
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, ErrNotFound
	}
	if err != nil {
		return Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) CreateCategory(ctx context.Context, c Category) error {
	_, err := s.DB.Exec(ctx, `INSERT INTO categories (id, name, icon) VALUES ($1, $2, $3)`, c.ID, c.Name, c.Icon)
	return mapWriteErr(err)
}

func (s *PostgresStore) UpdateCategory(ctx context.Context, c Category) error {
	tag, err := s.DB.Exec(ctx, `UPDATE categories SET name = $2, icon = $3 WHERE id = $1`, c.ID, c.Name, c.Icon)
	if err != nil {
		return mapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCategory relies on the products.category foreign key cascading.
func (s *PostgresStore) DeleteCategory(ctx context.Context, id string) error {
	tag, err := s.DB.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p     Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &price, &p.Category, &p.Image, &p.Description, &p.FullDescription, &p.Dietary, &p.Popular, &p.Featured); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, err
		}
		return Product{}, fmt.Errorf("scan product: %w", err)
	}
	parsed, err := decimal.NewFromString(price)
	if err != nil {
		return Product{}, fmt.Errorf("parse price %q: %w", price, err)
	}
	p.Price = parsed
	if p.Dietary == nil {
		p.Dietary = []string{}
	}
	return p, nil
}

func dietaryOrEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func mapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrConflict
		case "23503":
			return fmt.Errorf("%w: unknown category", ErrNotFound)
		}
	}
	return err
}
