package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/EternisAI/certpass/internal/certificate"
	"github.com/EternisAI/certpass/internal/verification"
)

type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Append(ctx context.Context, e verification.Event) error {
	_, err := r.db.ExecContext(ctx,
		`insert into verification_events (certificate_id, actor_ip, actor_agent, device_class, verdict, outcome, created_at)
		values ($1, $2, $3, $4, $5, $6, $7)`,
		e.CertificateID, e.ActorIP, e.ActorAgent, e.DeviceClass, string(e.Verdict), e.Outcome, e.Timestamp)
	if err != nil {
		return fmt.Errorf("insert verification event: %w", err)
	}
	return nil
}

// ListByCertificate returns the newest events first.
func (r *EventRepository) ListByCertificate(ctx context.Context, certificateID string, limit int) ([]verification.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`select id, certificate_id, actor_ip, actor_agent, device_class, verdict, outcome, created_at
		from verification_events where certificate_id = $1
		order by created_at desc, id desc limit $2`,
		certificateID, limit)
	if err != nil {
		return nil, fmt.Errorf("list verification events: %w", err)
	}
	defer rows.Close()

	events := []verification.Event{}
	for rows.Next() {
		var (
			e       verification.Event
			verdict string
		)
		if err := rows.Scan(&e.ID, &e.CertificateID, &e.ActorIP, &e.ActorAgent, &e.DeviceClass,
			&verdict, &e.Outcome, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan verification event: %w", err)
		}
		e.Verdict = certificate.Verdict(verdict)
		events = append(events, e)
	}
	return events, rows.Err()
}
