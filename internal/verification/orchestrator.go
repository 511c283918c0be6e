package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/EternisAI/certpass/internal/certificate"
	"github.com/EternisAI/certpass/internal/ids"
	"github.com/EternisAI/certpass/internal/metrics"
	"github.com/EternisAI/certpass/internal/ratelimit"
)

const (
	ActionVerify = "verify"

	DefaultMaxRequests  = 5
	DefaultWindow       = 300 * time.Second
	DefaultStoreTimeout = 2 * time.Second
)

var ErrInvalidFormat = errors.New("invalid certificate id format")

type CertificateStore interface {
	GetByCertificateID(ctx context.Context, certificateID string) (*certificate.Certificate, error)
	RecordVerification(ctx context.Context, certificateID string, at time.Time) error
}

type EventStore interface {
	Append(ctx context.Context, e Event) error
}

type Config struct {
	MaxRequests  int           `mapstructure:"max_requests"`
	Window       time.Duration `mapstructure:"window"`
	StoreTimeout time.Duration `mapstructure:"store_timeout"`
}

type Orchestrator struct {
	certs   CertificateStore
	events  EventStore
	limiter *ratelimit.Limiter
	check   certificate.SignatureCheck
	salt    []byte
	config  Config
	now     func() time.Time
}

// NewOrchestrator wires the verification workflow. check may be nil to
// disable tamper detection.
func NewOrchestrator(certs CertificateStore, events EventStore, limiter *ratelimit.Limiter, check certificate.SignatureCheck, salt []byte, config Config) *Orchestrator {
	if config.MaxRequests <= 0 {
		config.MaxRequests = DefaultMaxRequests
	}
	if config.Window <= 0 {
		config.Window = DefaultWindow
	}
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = DefaultStoreTimeout
	}
	return &Orchestrator{
		certs:   certs,
		events:  events,
		limiter: limiter,
		check:   check,
		salt:    salt,
		config:  config,
		now:     time.Now,
	}
}

// VerifyCertificate runs one verification attempt for certificateID on
// behalf of actor. It returns ErrInvalidFormat, *RateLimitError, or a
// wrapped store error when the certificate could not be looked up.
func (o *Orchestrator) VerifyCertificate(ctx context.Context, certificateID string, actor Actor) (*Result, error) {
	if !ids.ValidCertificateID(certificateID) {
		return nil, ErrInvalidFormat
	}

	decision := o.limiter.Allow(ctx, ratelimit.Attempt{
		Identifier:  ids.RateLimitKey(o.salt, actor.IP, certificateID),
		Action:      ActionVerify,
		SourceIP:    actor.IP,
		MaxRequests: o.config.MaxRequests,
		Window:      o.config.Window,
	})
	if decision.Limited {
		slog.Info("Verification rate limited", "certificate_id", certificateID, "client_ip", actor.IP)
		return nil, &RateLimitError{RetryAfter: decision.RetryAfter}
	}

	cert, err := o.lookup(ctx, certificateID)
	if err != nil {
		slog.Error("Certificate lookup failed", "certificate_id", certificateID, "error", err)
		return nil, err
	}

	now := o.now()
	verdict, message := certificate.Evaluate(cert, now, o.check)
	metrics.Verifications.WithLabelValues(string(verdict)).Inc()

	o.recordEvent(ctx, Event{
		CertificateID: certificateID,
		ActorIP:       actor.IP,
		ActorAgent:    actor.UserAgent,
		DeviceClass:   ClassifyDevice(actor.UserAgent),
		Verdict:       verdict,
		Outcome:       verdict == certificate.VerdictValid,
		Timestamp:     now,
	})

	result := &Result{
		Verdict:       verdict,
		Message:       message,
		CertificateID: certificateID,
	}
	if cert == nil {
		return result, nil
	}
	result.Status = cert.Status()

	switch verdict {
	case certificate.VerdictValid:
		if o.bumpCounters(ctx, certificateID, now) {
			cert.VerificationCount++
			cert.LastVerified = &now
		}
		result.Certificate = project(cert)
	case certificate.VerdictTampered:
		slog.Warn("Certificate signature mismatch", "certificate_id", certificateID)
		result.Certificate = project(cert)
		result.Warning = message
	}

	slog.Info("Certificate verified", "certificate_id", certificateID, "verdict", verdict, "client_ip", actor.IP)
	return result, nil
}

func (o *Orchestrator) lookup(ctx context.Context, certificateID string) (*certificate.Certificate, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.StoreTimeout)
	defer cancel()

	cert, err := o.certs.GetByCertificateID(ctx, certificateID)
	if err != nil {
		if errors.Is(err, certificate.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup certificate: %w", err)
	}
	return cert, nil
}

func (o *Orchestrator) recordEvent(ctx context.Context, e Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.config.StoreTimeout)
	defer cancel()
	if err := o.events.Append(ctx, e); err != nil {
		slog.Warn("Failed to record verification event", "certificate_id", e.CertificateID, "error", err)
	}
}

func (o *Orchestrator) bumpCounters(ctx context.Context, certificateID string, at time.Time) bool {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.config.StoreTimeout)
	defer cancel()
	if err := o.certs.RecordVerification(ctx, certificateID, at); err != nil {
		slog.Warn("Failed to update verification counters", "certificate_id", certificateID, "error", err)
		return false
	}
	return true
}

func project(c *certificate.Certificate) *PublicView {
	return &PublicView{
		CertificateID:     c.CertificateID,
		HolderName:        c.HolderName,
		CourseName:        c.CourseName,
		IssueDate:         c.IssueDate,
		ExpiryDate:        c.ExpiryDate,
		Status:            c.Status(),
		VerificationCount: c.VerificationCount,
		LastVerified:      c.LastVerified,
	}
}
