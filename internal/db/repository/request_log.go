package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/EternisAI/certpass/internal/apiauth"
)

type RequestLogRepository struct {
	db *sql.DB
}

func NewRequestLogRepository(db *sql.DB) *RequestLogRepository {
	return &RequestLogRepository{db: db}
}

func (r *RequestLogRepository) Append(ctx context.Context, entry apiauth.RequestLog) error {
	_, err := r.db.ExecContext(ctx,
		`insert into api_request_logs (credential_id, method, path, status, client_ip, created_at)
		values ($1, $2, $3, $4, $5, $6)`,
		entry.CredentialID, entry.Method, entry.Path, entry.Status, entry.ClientIP, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert api request log: %w", err)
	}
	return nil
}
