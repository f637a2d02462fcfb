package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailInUse   = errors.New("email already in use")
)

// User is a stored account.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Identity is the signed-in user as seen by the rest of the application.
type Identity struct {
	UserID string
	Email  string
}

// UserStore persists accounts. Emails compare case-insensitively.
type UserStore interface {
	// CreateUser stores u; ErrEmailInUse when the email is taken.
	CreateUser(ctx context.Context, u User) error
	// UserByEmail returns ErrUserNotFound when no account matches.
	UserByEmail(ctx context.Context, email string) (User, error)
}

// MemoryUsers is a UserStore kept in a map.
type MemoryUsers struct {
	mu    sync.Mutex
	users map[string]User
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{users: map[string]User{}}
}

func (m *MemoryUsers) CreateUser(_ context.Context, u User) error {
	key := strings.ToLower(u.Email)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[key]; ok {
		return ErrEmailInUse
	}
	m.users[key] = u
	return nil
}

func (m *MemoryUsers) UserByEmail(_ context.Context, email string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[strings.ToLower(email)]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}
