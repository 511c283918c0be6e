package apiauth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	keyPrefix        = "ck_"
	secretPrefix     = "cs_"
	keyLength        = 32
	displayPrefixLen = 10

	DefaultDailyLimit = 1000
)

var (
	ErrInvalidAPIKey      = errors.New("invalid API key")
	ErrInactiveAPIKey     = errors.New("API key is inactive")
	ErrCredentialNotFound = errors.New("API credential not found")
	ErrNoPermissions      = errors.New("at least one permission is required")
)

type Repository interface {
	Create(ctx context.Context, c *Credential) error
	GetByKeyHash(ctx context.Context, keyHash string) (*Credential, error)
	Deactivate(ctx context.Context, publicID string) error
	TouchLastUsed(ctx context.Context, id int64, at time.Time) error
}

type RequestLogStore interface {
	Append(ctx context.Context, entry RequestLog) error
}

type IssueRequest struct {
	Name              string
	Permissions       []Permission
	RateLimit         int
	RequiresSignature bool
}

// Issued carries the plaintext key and secret. They are only available here.
type Issued struct {
	Credential *Credential
	Key        string
	Secret     string
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// GenerateKey creates a new API key with crypto/rand
func GenerateKey() (string, error) {
	b := make([]byte, keyLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return keyPrefix + base64.RawURLEncoding.EncodeToString(b), nil
}

func GenerateSecret() (string, error) {
	b := make([]byte, keyLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return secretPrefix + hex.EncodeToString(b), nil
}

// HashKey computes SHA-256 hash of the key
func HashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", hash)
}

func (s *Service) Issue(ctx context.Context, req IssueRequest) (*Issued, error) {
	if len(req.Permissions) == 0 {
		return nil, ErrNoPermissions
	}
	if req.RateLimit <= 0 {
		req.RateLimit = DefaultDailyLimit
	}

	key, err := GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	secret, err := GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to generate secret: %w", err)
	}

	cred := &Credential{
		PublicID:          uuid.NewString(),
		Name:              req.Name,
		KeyHash:           HashKey(key),
		KeyPrefix:         key[:displayPrefixLen],
		Secret:            secret,
		Permissions:       req.Permissions,
		RateLimit:         req.RateLimit,
		RequiresSignature: req.RequiresSignature,
		IsActive:          true,
		CreatedAt:         s.now(),
	}
	if err := s.repo.Create(ctx, cred); err != nil {
		return nil, fmt.Errorf("failed to store credential: %w", err)
	}

	slog.Info("API credential issued",
		"credential_id", cred.PublicID,
		"key_prefix", cred.KeyPrefix,
		"requires_signature", cred.RequiresSignature)
	return &Issued{Credential: cred, Key: key, Secret: secret}, nil
}

// Authenticate resolves a presented bearer key. Store failures are returned
// as-is so the caller denies the request.
func (s *Service) Authenticate(ctx context.Context, key string) (*Credential, error) {
	if key == "" {
		return nil, ErrInvalidAPIKey
	}
	cred, err := s.repo.GetByKeyHash(ctx, HashKey(key))
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return nil, ErrInvalidAPIKey
		}
		return nil, fmt.Errorf("failed to lookup key: %w", err)
	}
	if !cred.IsActive {
		return nil, ErrInactiveAPIKey
	}

	if err := s.repo.TouchLastUsed(ctx, cred.ID, s.now()); err != nil {
		slog.Warn("Failed to update API key last use", "credential_id", cred.PublicID, "error", err)
	}
	return cred, nil
}

func (s *Service) Deactivate(ctx context.Context, publicID string) error {
	if _, err := uuid.Parse(publicID); err != nil {
		return ErrCredentialNotFound
	}
	if err := s.repo.Deactivate(ctx, publicID); err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return err
		}
		return fmt.Errorf("failed to deactivate credential: %w", err)
	}
	slog.Info("API credential deactivated", "credential_id", publicID)
	return nil
}
