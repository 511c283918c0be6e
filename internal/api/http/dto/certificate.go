package dto

import "time"

type CreateCertificateRequest struct {
	FullName         string         `json:"full_name" binding:"required,max=255"`
	CourseName       string         `json:"course_name" binding:"required,max=255"`
	IssueDate        string         `json:"issue_date" binding:"required"`
	ExpiryDate       string         `json:"expiry_date"`
	AdditionalFields map[string]any `json:"additional_fields"`
}

type CreateCertificateResponse struct {
	Status          bool   `json:"status"`
	Message         string `json:"message"`
	CertificateID   string `json:"certificate_id"`
	VerificationURL string `json:"verification_url"`
}

type UpdateCertificateRequest struct {
	Status string `json:"status" binding:"required,oneof=active revoked"`
}

type CertificateResponse struct {
	ID                string         `json:"id"`
	FullName          string         `json:"full_name"`
	CourseName        string         `json:"course_name"`
	IssueDate         string         `json:"issue_date"`
	ExpiryDate        *string        `json:"expiry_date"`
	Status            string         `json:"status"`
	VerificationCount int64          `json:"verification_count"`
	LastVerified      *time.Time     `json:"last_verified,omitempty"`
	AdditionalFields  map[string]any `json:"additional_fields,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

type UpdateCertificateResponse struct {
	Status      bool                `json:"status"`
	Message     string              `json:"message"`
	Certificate CertificateResponse `json:"certificate"`
}

type ListCertificatesResponse struct {
	Status       bool                  `json:"status"`
	Message      string                `json:"message"`
	Certificates []CertificateResponse `json:"certificates"`
	Total        int64                 `json:"total"`
	Page         int                   `json:"page"`
	Limit        int                   `json:"limit"`
}

type VerificationEventResponse struct {
	ID          int64     `json:"id"`
	Verdict     string    `json:"verdict"`
	Outcome     bool      `json:"outcome"`
	ActorIP     string    `json:"actor_ip"`
	ActorAgent  string    `json:"actor_agent"`
	DeviceClass string    `json:"device_class"`
	Timestamp   time.Time `json:"timestamp"`
}

type ListVerificationEventsResponse struct {
	CertificateID string                      `json:"certificate_id"`
	Events        []VerificationEventResponse `json:"events"`
}
