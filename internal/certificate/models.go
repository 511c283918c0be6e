package certificate

import "time"

type Certificate struct {
	ID                int64
	CertificateID     string
	HolderName        string
	CourseName        string
	IssueDate         time.Time
	ExpiryDate        *time.Time
	IsActive          bool
	ValidationStatus  *bool
	DigitalSignature  string
	VerificationCount int64
	LastVerified      *time.Time
	AdditionalFields  map[string]any
	CreatedBy         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Status is the externally visible lifecycle state of a certificate.
type Status string

const (
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
)

func (c *Certificate) Status() Status {
	if c.IsActive {
		return StatusActive
	}
	return StatusRevoked
}

func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusActive, StatusRevoked:
		return Status(s), true
	}
	return "", false
}

type ListFilter struct {
	Status Status
	Limit  int
	Offset int
}
