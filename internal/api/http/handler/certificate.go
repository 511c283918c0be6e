package handler

import (
	"net/http"
	"strconv"

	"github.com/EternisAI/certpass/internal/api/http/dto"
	"github.com/EternisAI/certpass/internal/certificate"
	"github.com/gin-gonic/gin"
)

type CertificateHandler struct {
	certificates *certificate.Service
}

func NewCertificateHandler(certificates *certificate.Service) *CertificateHandler {
	return &CertificateHandler{certificates: certificates}
}

// MaxListPage bounds the page number so the computed offset cannot overflow.
const MaxListPage = 1_000_000

// List returns a page of certificates, newest first.
// GET /api/v1/certificates?page&limit&status
func (h *CertificateHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	if page > MaxListPage {
		page = MaxListPage
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 {
		limit = 20
	}
	if limit > certificate.MaxListLimit {
		limit = certificate.MaxListLimit
	}

	filter := certificate.ListFilter{Limit: limit, Offset: (page - 1) * limit}
	if raw := c.Query("status"); raw != "" {
		status, ok := certificate.ParseStatus(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "status must be active or revoked"})
			return
		}
		filter.Status = status
	}

	certs, total, err := h.certificates.List(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	responses := make([]dto.CertificateResponse, len(certs))
	for i := range certs {
		responses[i] = certificateResponse(&certs[i])
	}
	c.JSON(http.StatusOK, dto.ListCertificatesResponse{
		Status:       true,
		Message:      "ok",
		Certificates: responses,
		Total:        total,
		Page:         page,
		Limit:        limit,
	})
}

// Create issues a new certificate.
// POST /api/v1/certificates
func (h *CertificateHandler) Create(c *gin.Context) {
	var req dto.CreateCertificateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
		return
	}

	issueDate, err := parseDate(req.IssueDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	issue := certificate.IssueRequest{
		HolderName:       req.FullName,
		CourseName:       req.CourseName,
		IssueDate:        issueDate,
		AdditionalFields: req.AdditionalFields,
	}
	if req.ExpiryDate != "" {
		expiry, err := parseDate(req.ExpiryDate)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		issue.ExpiryDate = &expiry
	}
	if cred, ok := CredentialFrom(c); ok {
		issue.CreatedBy = "api:" + cred.PublicID
	}

	cert, err := h.certificates.Issue(c.Request.Context(), issue)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.CreateCertificateResponse{
		Status:          true,
		Message:         "certificate created",
		CertificateID:   cert.CertificateID,
		VerificationURL: h.certificates.VerificationURL(cert.CertificateID),
	})
}

// Update changes the lifecycle status of a certificate.
// PUT /api/v1/certificates/:id
func (h *CertificateHandler) Update(c *gin.Context) {
	var req dto.UpdateCertificateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
		return
	}
	status, _ := certificate.ParseStatus(req.Status)

	cert, err := h.certificates.SetStatus(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.UpdateCertificateResponse{
		Status:      true,
		Message:     "certificate " + string(status),
		Certificate: certificateResponse(cert),
	})
}
