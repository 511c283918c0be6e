package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/EternisAI/certpass/internal/certificate"
)

const certificateColumns = `id, certificate_id, holder_name, course_name, issue_date, expiry_date,
	is_active, validation_status, digital_signature, verification_count, last_verified,
	additional_fields, created_by, created_at, updated_at`

type CertificateRepository struct {
	db *sql.DB
}

func NewCertificateRepository(db *sql.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

func (r *CertificateRepository) Create(ctx context.Context, c *certificate.Certificate) error {
	fields, err := marshalFields(c.AdditionalFields)
	if err != nil {
		return err
	}
	row := r.db.QueryRowContext(ctx,
		`insert into certificates (certificate_id, holder_name, course_name, issue_date, expiry_date,
			is_active, digital_signature, additional_fields, created_by)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		returning id, created_at, updated_at`,
		c.CertificateID, c.HolderName, c.CourseName, c.IssueDate, nullTime(c.ExpiryDate),
		c.IsActive, c.DigitalSignature, fields, c.CreatedBy)
	if err := row.Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return certificate.ErrDuplicateID
		}
		return fmt.Errorf("insert certificate: %w", err)
	}
	return nil
}

func (r *CertificateRepository) GetByCertificateID(ctx context.Context, certificateID string) (*certificate.Certificate, error) {
	row := r.db.QueryRowContext(ctx,
		`select `+certificateColumns+` from certificates where certificate_id = $1`, certificateID)
	c, err := scanCertificate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, certificate.ErrNotFound
		}
		return nil, fmt.Errorf("select certificate: %w", err)
	}
	return c, nil
}

func (r *CertificateRepository) List(ctx context.Context, filter certificate.ListFilter) ([]certificate.Certificate, int64, error) {
	where := ""
	args := []any{}
	if filter.Status != "" {
		where = ` where is_active = $1`
		args = append(args, filter.Status == certificate.StatusActive)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `select count(*) from certificates`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count certificates: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf(`select %s from certificates%s order by id desc limit $%d offset $%d`,
		certificateColumns, where, n+1, n+2)
	rows, err := r.db.QueryContext(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list certificates: %w", err)
	}
	defer rows.Close()

	var certs []certificate.Certificate
	for rows.Next() {
		c, err := scanCertificate(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan certificate: %w", err)
		}
		certs = append(certs, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return certs, total, nil
}

func (r *CertificateRepository) SetActive(ctx context.Context, certificateID string, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`update certificates set is_active = $2, updated_at = now() where certificate_id = $1`,
		certificateID, active)
	if err != nil {
		return fmt.Errorf("update certificate: %w", err)
	}
	return expectRow(res, certificate.ErrNotFound)
}

func (r *CertificateRepository) RecordVerification(ctx context.Context, certificateID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`update certificates set verification_count = verification_count + 1, last_verified = $2
		where certificate_id = $1`,
		certificateID, at)
	if err != nil {
		return fmt.Errorf("record verification: %w", err)
	}
	return expectRow(res, certificate.ErrNotFound)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCertificate(s scanner) (*certificate.Certificate, error) {
	var (
		c            certificate.Certificate
		expiry       sql.NullTime
		validation   sql.NullBool
		lastVerified sql.NullTime
		fields       []byte
	)
	if err := s.Scan(&c.ID, &c.CertificateID, &c.HolderName, &c.CourseName, &c.IssueDate, &expiry,
		&c.IsActive, &validation, &c.DigitalSignature, &c.VerificationCount, &lastVerified,
		&fields, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if expiry.Valid {
		c.ExpiryDate = &expiry.Time
	}
	if validation.Valid {
		c.ValidationStatus = &validation.Bool
	}
	if lastVerified.Valid {
		c.LastVerified = &lastVerified.Time
	}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &c.AdditionalFields); err != nil {
			return nil, fmt.Errorf("decode additional fields: %w", err)
		}
	}
	return &c, nil
}

func marshalFields(fields map[string]any) (string, error) {
	if len(fields) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode additional fields: %w", err)
	}
	return string(b), nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func expectRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
