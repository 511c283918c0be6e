package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/EternisAI/certpass/internal/users"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type UserLookup interface {
	GetByUsername(ctx context.Context, username string) (*users.User, error)
}

type Service struct {
	users  UserLookup
	config JWTConfig
}

func NewService(lookup UserLookup, config JWTConfig) *Service {
	return &Service{
		users:  lookup,
		config: config,
	}
}

func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("query user: %w", err)
	}

	if !users.CheckPassword(password, user.PasswordHash) {
		return "", ErrInvalidCredentials
	}

	token, err := GenerateToken(s.config, user.ID, user.Username, user.Role)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return token, nil
}
