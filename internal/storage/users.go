package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tesouraria/internal/auth"
)

// CreateUser implements auth.UserStore.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u auth.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.CreatedAt.UTC().Format(timeLayout))
	if isUniqueViolation(err) {
		return auth.ErrEmailInUse
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UserByEmail implements auth.UserStore.
func (r *SQLiteRepository) UserByEmail(ctx context.Context, email string) (auth.User, error) {
	var (
		u       auth.User
		created string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = ?`, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrUserNotFound
	}
	if err != nil {
		return auth.User{}, fmt.Errorf("get user by email: %w", err)
	}
	u.CreatedAt, _ = time.Parse(timeLayout, created)
	return u, nil
}

var _ auth.UserStore = (*SQLiteRepository)(nil)
