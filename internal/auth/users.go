package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

var (
	// ErrUserNotFound reports an unknown user.
	ErrUserNotFound = errors.New("auth: user not found")
	// ErrUsernameTaken reports a duplicate username.
	ErrUsernameTaken = errors.New("auth: username taken")
)

// Account is a stored user including its password hash.
type Account struct {
	ID           string
	Username     string
	Name         string
	Role         string
	PasswordHash string
	CreatedAt    time.Time
}

// UserStore persists accounts.
type UserStore interface {
	Create(ctx context.Context, a Account) error
	ByUsername(ctx context.Context, username string) (Account, error)
	ByID(ctx context.Context, id string) (Account, error)
}

// MemoryUsers keeps accounts in process memory. Usernames are case-insensitive.
type MemoryUsers struct {
	mu     sync.RWMutex
	byID   map[string]Account
	byName map[string]string
}

// NewMemoryUsers returns an empty store.
func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{byID: map[string]Account{}, byName: map[string]string{}}
}

func (s *MemoryUsers) Create(_ context.Context, a Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(a.Username)
	if _, ok := s.byName[key]; ok {
		return ErrUsernameTaken
	}
	s.byID[a.ID] = a
	s.byName[key] = a.ID
	return nil
}

func (s *MemoryUsers) ByUsername(_ context.Context, username string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[strings.ToLower(username)]
	if !ok {
		return Account{}, ErrUserNotFound
	}
	return s.byID[id], nil
}

func (s *MemoryUsers) ByID(_ context.Context, id string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	if !ok {
		return Account{}, ErrUserNotFound
	}
	return a, nil
}
