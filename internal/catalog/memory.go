package catalog

import (
	"context"
	"sync"
)

// MemoryStore keeps the menu in process memory, preserving insertion order.
type MemoryStore struct {
	mu         sync.RWMutex
	products   []Product
	categories []Category
}

// NewMemoryStore builds a store holding copies of the given menu.
func NewMemoryStore(categories []Category, products []Product) *MemoryStore {
	s := &MemoryStore{
		categories: append([]Category(nil), categories...),
		products:   make([]Product, 0, len(products)),
	}
	for _, p := range products {
		s.products = append(s.products, p.Clone())
	}
	return s
}

func (s *MemoryStore) ListProducts(_ context.Context) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p.Clone())
	}
	return out, nil
}

func (s *MemoryStore) GetProduct(_ context.Context, id string) (Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.productIndex(id); i >= 0 {
		return s.products[i].Clone(), nil
	}
	return Product{}, ErrNotFound
}

func (s *MemoryStore) CreateProduct(_ context.Context, p Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.productIndex(p.ID) >= 0 {
		return ErrConflict
	}
	s.products = append(s.products, p.Clone())
	return nil
}

func (s *MemoryStore) UpdateProduct(_ context.Context, p Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.productIndex(p.ID)
	if i < 0 {
		return ErrNotFound
	}
	s.products[i] = p.Clone()
	return nil
}

func (s *MemoryStore) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.productIndex(id)
	if i < 0 {
		return ErrNotFound
	}
	s.products = append(s.products[:i], s.products[i+1:]...)
	return nil
}

func (s *MemoryStore) ListCategories(_ context.Context) ([]Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Category(nil), s.categories...), nil
}

func (s *MemoryStore) GetCategory(_ context.Context, id string) (Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.categoryIndex(id); i >= 0 {
		return s.categories[i], nil
	}
	return Category{}, ErrNotFound
}

func (s *MemoryStore) CreateCategory(_ context.Context, c Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.categoryIndex(c.ID) >= 0 {
		return ErrConflict
	}
	s.categories = append(s.categories, c)
	return nil
}

func (s *MemoryStore) UpdateCategory(_ context.Context, c Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.categoryIndex(c.ID)
	if i < 0 {
		return ErrNotFound
	}
	s.categories[i] = c
	return nil
}

func (s *MemoryStore) DeleteCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.categoryIndex(id)
	if i < 0 {
		return ErrNotFound
	}
	s.categories = append(s.categories[:i], s.categories[i+1:]...)
	kept := s.products[:0]
	for _, p := range s.products {
		if p.Category != id {
			kept = append(kept, p)
		}
	}
	s.products = kept
	return nil
}

func (s *MemoryStore) productIndex(id string) int {
	for i := range s.products {
		if s.products[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *MemoryStore) categoryIndex(id string) int {
	for i := range s.categories {
		if s.categories[i].ID == id {
			return i
		}
	}
	return -1
}
