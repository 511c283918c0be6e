package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/EternisAI/certpass/internal/users"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *users.User) error {
	err := r.db.QueryRowContext(ctx,
		`insert into admin_users (username, password_hash, role) values ($1, $2, $3)
		returning id, created_at`,
		u.Username, u.PasswordHash, u.Role).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return users.ErrUsernameExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*users.User, error) {
	var u users.User
	err := r.db.QueryRowContext(ctx,
		`select id, username, password_hash, role, created_at from admin_users where username = $1`,
		username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, users.ErrUserNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &u, nil
}
