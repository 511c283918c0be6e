package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/EternisAI/certpass/internal/apiauth"
)

type CredentialRepository struct {
	db *sql.DB
}

func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

func (r *CredentialRepository) Create(ctx context.Context, c *apiauth.Credential) error {
	perms, err := json.Marshal(c.Permissions)
	if err != nil {
		return fmt.Errorf("encode permissions: %w", err)
	}
	err = r.db.QueryRowContext(ctx,
		`insert into api_credentials (public_id, name, key_hash, key_prefix, secret, permissions,
			rate_limit, requires_signature, is_active, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		returning id`,
		c.PublicID, c.Name, c.KeyHash, c.KeyPrefix, c.Secret, string(perms),
		c.RateLimit, c.RequiresSignature, c.IsActive, c.CreatedAt).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("insert api credential: %w", err)
	}
	return nil
}

func (r *CredentialRepository) GetByKeyHash(ctx context.Context, keyHash string) (*apiauth.Credential, error) {
	var (
		c        apiauth.Credential
		perms    []byte
		lastUsed sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		`select id, public_id, name, key_hash, key_prefix, secret, permissions,
			rate_limit, requires_signature, is_active, created_at, last_used_at
		from api_credentials where key_hash = $1`, keyHash).
		Scan(&c.ID, &c.PublicID, &c.Name, &c.KeyHash, &c.KeyPrefix, &c.Secret, &perms,
			&c.RateLimit, &c.RequiresSignature, &c.IsActive, &c.CreatedAt, &lastUsed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apiauth.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("select api credential: %w", err)
	}
	if err := json.Unmarshal(perms, &c.Permissions); err != nil {
		return nil, fmt.Errorf("decode permissions: %w", err)
	}
	if lastUsed.Valid {
		c.LastUsedAt = &lastUsed.Time
	}
	return &c, nil
}

func (r *CredentialRepository) Deactivate(ctx context.Context, publicID string) error {
	res, err := r.db.ExecContext(ctx,
		`update api_credentials set is_active = false where public_id = $1`, publicID)
	if err != nil {
		return fmt.Errorf("deactivate api credential: %w", err)
	}
	return expectRow(res, apiauth.ErrCredentialNotFound)
}

func (r *CredentialRepository) TouchLastUsed(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`update api_credentials set last_used_at = $2 where id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("touch api credential: %w", err)
	}
	return nil
}
