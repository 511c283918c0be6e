package verification

import (
	"fmt"
	"time"

	"github.com/EternisAI/certpass/internal/certificate"
)

// Actor describes who is asking. It replaces any ambient request state.
type Actor struct {
	IP        string
	UserAgent string
	SessionID string
}

// Event is the audit record of one completed verification attempt.
type Event struct {
	ID            int64
	CertificateID string
	ActorIP       string
	ActorAgent    string
	DeviceClass   string
	Verdict       certificate.Verdict
	Outcome       bool
	Timestamp     time.Time
}

// PublicView is the projection of a certificate that may be shown to anyone
// holding its id.
type PublicView struct {
	CertificateID     string
	HolderName        string
	CourseName        string
	IssueDate         time.Time
	ExpiryDate        *time.Time
	Status            certificate.Status
	VerificationCount int64
	LastVerified      *time.Time
}

type Result struct {
	Verdict       certificate.Verdict
	Message       string
	CertificateID string
	// Status is set whenever the certificate exists.
	Status certificate.Status
	// Certificate is only populated for VALID and TAMPERED verdicts.
	Certificate *PublicView
	// Warning is set for TAMPERED: the certificate is reported as valid
	// but flagged.
	Warning string
}

func (r *Result) Valid() bool {
	return r.Verdict == certificate.VerdictValid || r.Verdict == certificate.VerdictTampered
}

type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many verification attempts, retry in %d seconds", int(e.RetryAfter.Seconds()))
}
