package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const RoleAdmin = "admin"

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrUsernameExists = errors.New("username already exists")
)

type User struct {
	ID           string
	Username     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByUsername(ctx context.Context, username string) (*User, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.repo.GetByUsername(ctx, strings.TrimSpace(username))
}

// EnsureAdmin creates the bootstrap admin account when it does not exist yet.
// An existing account keeps its password.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return errors.New("admin username and password are required")
	}

	_, err := s.repo.GetByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return fmt.Errorf("lookup admin: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u := &User{Username: username, PasswordHash: hash, Role: RoleAdmin}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, ErrUsernameExists) {
			return nil
		}
		return fmt.Errorf("create admin: %w", err)
	}
	slog.Info("Admin account created", "username", username, "user_id", u.ID)
	return nil
}
