package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/EternisAI/certpass/internal/ratelimit"
)

// RateLimitRepository is the Postgres backend of ratelimit.Store.
type RateLimitRepository struct {
	db *sql.DB
}

func NewRateLimitRepository(db *sql.DB) *RateLimitRepository {
	return &RateLimitRepository{db: db}
}

func (r *RateLimitRepository) Window(ctx context.Context, identifier, action string, since time.Time) (ratelimit.Window, error) {
	var (
		count  int
		oldest sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		`select count(*), min(created_at) from rate_limits
		where identifier = $1 and action = $2 and created_at > $3`,
		identifier, action, since).Scan(&count, &oldest)
	if err != nil {
		return ratelimit.Window{}, fmt.Errorf("count rate limit records: %w", err)
	}
	w := ratelimit.Window{Count: count}
	if oldest.Valid {
		w.Oldest = oldest.Time
	}
	return w, nil
}

func (r *RateLimitRepository) Record(ctx context.Context, rec ratelimit.Record) error {
	_, err := r.db.ExecContext(ctx,
		`insert into rate_limits (identifier, action, source_ip, created_at) values ($1, $2, $3, $4)`,
		rec.Identifier, rec.Action, rec.SourceIP, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("insert rate limit record: %w", err)
	}
	return nil
}

func (r *RateLimitRepository) PurgeBefore(ctx context.Context, action string, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`delete from rate_limits where action = $1 and created_at < $2`, action, before)
	if err != nil {
		return 0, fmt.Errorf("purge rate limit records: %w", err)
	}
	return res.RowsAffected()
}
