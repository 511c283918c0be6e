package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/EternisAI/certpass/internal/apiauth"
)

type NonceRepository struct {
	db *sql.DB
}

func NewNonceRepository(db *sql.DB) *NonceRepository {
	return &NonceRepository{db: db}
}

func (r *NonceRepository) Exists(ctx context.Context, credentialID int64, nonce string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`select exists(select 1 from api_nonces where credential_id = $1 and nonce = $2)`,
		credentialID, nonce).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("lookup nonce: %w", err)
	}
	return exists, nil
}

// Insert relies on the (credential_id, nonce) unique constraint, so two
// concurrent requests with the same nonce cannot both succeed.
func (r *NonceRepository) Insert(ctx context.Context, credentialID int64, nonce string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`insert into api_nonces (credential_id, nonce, created_at) values ($1, $2, $3)`,
		credentialID, nonce, at)
	if err != nil {
		if isUniqueViolation(err) {
			return apiauth.ErrNonceExists
		}
		return fmt.Errorf("insert nonce: %w", err)
	}
	return nil
}
