package store

import (
	"context"
	"database/sql"
)

// AdminUserID addresses the single dashboard account.
const AdminUserID = "admin"

type User struct {
	Name         string
	PasswordHash string
}

func (s *Store) GetUser(ctx context.Context, id string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT name, password_hash FROM users WHERE id = ?`, id,
	).Scan(&u.Name, &u.PasswordHash)
	if err == sql.ErrNoRows {
		return User{}, ErrNotFound
	}
	return u, err
}

func (s *Store) UpsertUser(ctx context.Context, id string, u User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, password_hash) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, password_hash = excluded.password_hash
	`, id, u.Name, u.PasswordHash)
	return err
}
