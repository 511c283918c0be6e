package dto

// VerificationResponse is returned by the public GET /verify endpoint.
type VerificationResponse struct {
	Status        bool             `json:"status"`
	Verdict       string           `json:"verdict"`
	Message       string           `json:"message"`
	CertificateID string           `json:"certificate_id"`
	Warning       string           `json:"warning,omitempty"`
	Certificate   *CertificateView `json:"certificate,omitempty"`
}

type CertificateView struct {
	ID                string  `json:"id"`
	FullName          string  `json:"full_name"`
	CourseName        string  `json:"course_name"`
	IssueDate         string  `json:"issue_date"`
	ExpiryDate        *string `json:"expiry_date"`
	Status            string  `json:"status"`
	VerificationCount int64   `json:"verification_count"`
	LastVerified      *string `json:"last_verified,omitempty"`
}

// APIVerifyResponse is returned by GET /api/v1/verify/:certificate_id.
type APIVerifyResponse struct {
	Status      bool               `json:"status"`
	Message     string             `json:"message"`
	Warning     string             `json:"warning,omitempty"`
	Certificate *APICertificateRef `json:"certificate,omitempty"`
}

type APICertificateRef struct {
	ID         string  `json:"id"`
	FullName   string  `json:"full_name,omitempty"`
	CourseName string  `json:"course_name,omitempty"`
	IssueDate  string  `json:"issue_date,omitempty"`
	ExpiryDate *string `json:"expiry_date,omitempty"`
	Status     string  `json:"status"`
}
