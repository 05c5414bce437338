package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// CreateUser inserts a new user and returns it.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash, role string) (*User, error) {
	u := &User{ID: uuid.New().String(), Username: username, PasswordHash: passwordHash, Role: role, Active: true}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, role, active) VALUES ($1,$2,$3,$4,$5)`,
		u.ID, u.Username, u.PasswordHash, u.Role, u.Active)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetUserByUsername looks up a user by username; returns sql.ErrNoRows when
// absent so callers can translate to apperrors.ErrAuth/ErrNotFound.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, username, password_hash, role, active, created_at FROM users WHERE username = $1`,
		username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.Active, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByID looks up a user by id.
func (s *Store) GetUserByID(ctx context.Context, id string) (*User, error) {
	var u User
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, username, password_hash, role, active, created_at FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.Active, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// ListUsers lists every user, newest first, for the admin user-management
// surface.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, username, password_hash, role, active, created_at FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UpdateUser overwrites a user's role/active flag, the two fields an admin
// is allowed to change after creation.
func (s *Store) UpdateUser(ctx context.Context, id, role string, active bool) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE users SET role = $1, active = $2 WHERE id = $3`, role, active, id)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}
