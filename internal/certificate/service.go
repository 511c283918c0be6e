package certificate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/EternisAI/certpass/internal/ids"
)

const (
	maxIssueAttempts = 5
	MaxListLimit     = 100
)

var (
	ErrNotFound         = errors.New("certificate not found")
	ErrDuplicateID      = errors.New("certificate id already exists")
	ErrInvalidDates     = errors.New("expiry date is before issue date")
	ErrMissingField     = errors.New("holder name and course name are required")
	ErrIDSpaceExhausted = errors.New("could not allocate a unique certificate id")
)

type Repository interface {
	Create(ctx context.Context, c *Certificate) error
	GetByCertificateID(ctx context.Context, certificateID string) (*Certificate, error)
	List(ctx context.Context, filter ListFilter) ([]Certificate, int64, error)
	SetActive(ctx context.Context, certificateID string, active bool) error
	RecordVerification(ctx context.Context, certificateID string, at time.Time) error
}

type Config struct {
	IDPrefix string
	BaseURL  string
}

type IssueRequest struct {
	HolderName       string
	CourseName       string
	IssueDate        time.Time
	ExpiryDate       *time.Time
	AdditionalFields map[string]any
	CreatedBy        string
}

type Service struct {
	repo   Repository
	signer *Signer
	config Config
	now    func() time.Time
}

func NewService(repo Repository, signer *Signer, config Config) *Service {
	return &Service{
		repo:   repo,
		signer: signer,
		config: config,
		now:    time.Now,
	}
}

// Issue creates and signs a new certificate, drawing a fresh id whenever the
// store reports a collision.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (*Certificate, error) {
	req.HolderName = strings.TrimSpace(req.HolderName)
	req.CourseName = strings.TrimSpace(req.CourseName)
	if req.HolderName == "" || req.CourseName == "" {
		return nil, ErrMissingField
	}
	req.IssueDate = dateOnly(req.IssueDate)
	if req.ExpiryDate != nil {
		expiry := dateOnly(*req.ExpiryDate)
		req.ExpiryDate = &expiry
		if expiry.Before(req.IssueDate) {
			return nil, ErrInvalidDates
		}
	}

	now := s.now()
	for attempt := 1; attempt <= maxIssueAttempts; attempt++ {
		c := &Certificate{
			CertificateID:    ids.NewCertificateID(s.config.IDPrefix, now),
			HolderName:       req.HolderName,
			CourseName:       req.CourseName,
			IssueDate:        req.IssueDate,
			ExpiryDate:       req.ExpiryDate,
			IsActive:         true,
			AdditionalFields: req.AdditionalFields,
			CreatedBy:        req.CreatedBy,
		}
		if s.signer != nil {
			c.DigitalSignature = s.signer.Sign(c)
		}

		err := s.repo.Create(ctx, c)
		if err == nil {
			slog.Info("Certificate issued", "certificate_id", c.CertificateID, "created_by", req.CreatedBy)
			return c, nil
		}
		if !errors.Is(err, ErrDuplicateID) {
			return nil, fmt.Errorf("create certificate: %w", err)
		}
		slog.Warn("Certificate id collision, retrying", "certificate_id", c.CertificateID, "attempt", attempt)
	}
	return nil, ErrIDSpaceExhausted
}

func (s *Service) Get(ctx context.Context, certificateID string) (*Certificate, error) {
	return s.repo.GetByCertificateID(ctx, certificateID)
}

// SetStatus is the only way a revoked certificate becomes active again.
func (s *Service) SetStatus(ctx context.Context, certificateID string, status Status) (*Certificate, error) {
	if err := s.repo.SetActive(ctx, certificateID, status == StatusActive); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update certificate status: %w", err)
	}
	slog.Info("Certificate status changed", "certificate_id", certificateID, "status", status)
	return s.repo.GetByCertificateID(ctx, certificateID)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Certificate, int64, error) {
	if filter.Limit < 1 || filter.Limit > MaxListLimit {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	certs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list certificates: %w", err)
	}
	return certs, total, nil
}

func (s *Service) VerificationURL(certificateID string) string {
	return VerificationURL(s.config.BaseURL, certificateID)
}

// dateOnly keeps the calendar date of t as midnight UTC, the form the store
// round-trips for DATE columns.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func VerificationURL(baseURL, certificateID string) string {
	return strings.TrimRight(baseURL, "/") + "/verify?id=" + url.QueryEscape(certificateID)
}
