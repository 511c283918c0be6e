package handler

import (
	"strings"
	"time"

	"github.com/EternisAI/certpass/internal/api/http/dto"
	"github.com/EternisAI/certpass/internal/certificate"
	"github.com/EternisAI/certpass/internal/verification"
)

const dateLayout = time.DateOnly

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

func publicView(v *verification.PublicView) *dto.CertificateView {
	if v == nil {
		return nil
	}
	view := &dto.CertificateView{
		ID:                v.CertificateID,
		FullName:          v.HolderName,
		CourseName:        v.CourseName,
		IssueDate:         v.IssueDate.Format(dateLayout),
		ExpiryDate:        formatDate(v.ExpiryDate),
		Status:            string(v.Status),
		VerificationCount: v.VerificationCount,
	}
	if v.LastVerified != nil {
		s := v.LastVerified.UTC().Format(time.RFC3339)
		view.LastVerified = &s
	}
	return view
}

func certificateResponse(c *certificate.Certificate) dto.CertificateResponse {
	return dto.CertificateResponse{
		ID:                c.CertificateID,
		FullName:          c.HolderName,
		CourseName:        c.CourseName,
		IssueDate:         c.IssueDate.Format(dateLayout),
		ExpiryDate:        formatDate(c.ExpiryDate),
		Status:            string(c.Status()),
		VerificationCount: c.VerificationCount,
		LastVerified:      c.LastVerified,
		AdditionalFields:  c.AdditionalFields,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}
