// Package favorites keeps the products a basket session has marked as
// favourites.
package favorites

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/slowdrip-api/internal/catalog"
)

// Store persists favourite product ids per session.
type Store interface {
	Add(ctx context.Context, session, productID string) error
	Remove(ctx context.Context, session, productID string) error
	List(ctx context.Context, session string) ([]string, error)
	Has(ctx context.Context, session, productID string) (bool, error)
}

// RedisStore keeps one set per session and refreshes its TTL on writes.
type RedisStore struct {
	Client *redis.Client
	TTL    time.Duration
}

func (s RedisStore) key(session string) string { return "favorites:" + session }

func (s RedisStore) ttl() time.Duration {
	if s.TTL <= 0 {
		return 30 * 24 * time.Hour
	}
	return s.TTL
}

func (s RedisStore) Add(ctx context.Context, session, productID string) error {
	pipe := s.Client.TxPipeline()
	pipe.SAdd(ctx, s.key(session), productID)
	pipe.Expire(ctx, s.key(session), s.ttl())
	_, err := pipe.Exec(ctx)
	return err
}

func (s RedisStore) Remove(ctx context.Context, session, productID string) error {
	return s.Client.SRem(ctx, s.key(session), productID).Err()
}

func (s RedisStore) List(ctx context.Context, session string) ([]string, error) {
	ids, err := s.Client.SMembers(ctx, s.key(session)).Result()
	if err != nil {
		return nil, err
	}
	slices.Sort(ids)
	return ids, nil
}

func (s RedisStore) Has(ctx context.Context, session, productID string) (bool, error) {
	return s.Client.SIsMember(ctx, s.key(session), productID).Result()
}

// MemoryStore is the in-process Store.
type MemoryStore struct {
	mu   sync.Mutex
	sets map[string]map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sets: map[string]map[string]struct{}{}}
}

func (s *MemoryStore) Add(_ context.Context, session, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[session]
	if !ok {
		set = map[string]struct{}{}
		s.sets[session] = set
	}
	set[productID] = struct{}{}
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, session, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sets[session], productID)
	return nil
}

func (s *MemoryStore) List(_ context.Context, session string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.sets[session]))
	for id := range s.sets[session] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *MemoryStore) Has(_ context.Context, session, productID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sets[session][productID]
	return ok, nil
}

// ProductReader resolves product ids against the menu.
type ProductReader interface {
	GetProduct(ctx context.Context, id string) (catalog.Product, error)
}

// Service toggles and lists favourites.
type Service struct {
	Store   Store
	Catalog ProductReader
}

// List returns the session's favourite products. Ids whose product has since
// left the menu are dropped from the store.
func (s *Service) List(ctx context.Context, session string) ([]catalog.Product, error) {
	ids, err := s.Store.List(ctx, session)
	if err != nil {
		return nil, err
	}
	products := make([]catalog.Product, 0, len(ids))
	for _, id := range ids {
		p, err := s.Catalog.GetProduct(ctx, id)
		if errors.Is(err, catalog.ErrNotFound) {
			_ = s.Store.Remove(ctx, session, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}

// Toggle flips the favourite flag for productID and returns the new state.
func (s *Service) Toggle(ctx context.Context, session, productID string) (bool, error) {
	if _, err := s.Catalog.GetProduct(ctx, productID); err != nil {
		return false, err
	}
	has, err := s.Store.Has(ctx, session, productID)
	if err != nil {
		return false, err
	}
	if has {
		return false, s.Store.Remove(ctx, session, productID)
	}
	return true, s.Store.Add(ctx, session, productID)
}

// Check reports whether productID is a favourite of the session.
func (s *Service) Check(ctx context.Context, session, productID string) (bool, error) {
	return s.Store.Has(ctx, session, productID)
}
