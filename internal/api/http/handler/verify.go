package handler

import (
	"net/http"
	"strconv"

	"github.com/EternisAI/certpass/internal/api/http/dto"
	"github.com/EternisAI/certpass/internal/certificate"
	"github.com/EternisAI/certpass/internal/ids"
	"github.com/EternisAI/certpass/internal/qrcode"
	"github.com/EternisAI/certpass/internal/verification"
	"github.com/gin-gonic/gin"
)

type VerifyHandler struct {
	orchestrator *verification.Orchestrator
	baseURL      string
	qrSize       int
}

func NewVerifyHandler(orchestrator *verification.Orchestrator, baseURL string, qrSize int) *VerifyHandler {
	return &VerifyHandler{
		orchestrator: orchestrator,
		baseURL:      baseURL,
		qrSize:       qrSize,
	}
}

// Verify is the public lookup behind the printed QR code.
// GET /verify?id=
func (h *VerifyHandler) Verify(c *gin.Context) {
	result, err := h.orchestrator.VerifyCertificate(c.Request.Context(), c.Query("id"), actorFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := dto.VerificationResponse{
		Status:        result.Valid(),
		Verdict:       string(result.Verdict),
		Message:       result.Message,
		CertificateID: result.CertificateID,
		Warning:       result.Warning,
		Certificate:   publicView(result.Certificate),
	}
	c.JSON(verdictStatus(result.Verdict), resp)
}

// VerifyAPI is the machine-readable variant for API clients.
// GET /api/v1/verify/:certificate_id
func (h *VerifyHandler) VerifyAPI(c *gin.Context) {
	result, err := h.orchestrator.VerifyCertificate(c.Request.Context(), c.Param("certificate_id"), actorFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := dto.APIVerifyResponse{
		Status:  result.Valid(),
		Message: result.Message,
		Warning: result.Warning,
	}
	switch {
	case result.Certificate != nil:
		v := result.Certificate
		resp.Certificate = &dto.APICertificateRef{
			ID:         v.CertificateID,
			FullName:   v.HolderName,
			CourseName: v.CourseName,
			IssueDate:  v.IssueDate.Format(dateLayout),
			ExpiryDate: formatDate(v.ExpiryDate),
			Status:     string(v.Status),
		}
	case result.Status != "":
		resp.Certificate = &dto.APICertificateRef{
			ID:     result.CertificateID,
			Status: string(result.Status),
		}
	}
	c.JSON(verdictStatus(result.Verdict), resp)
}

// QRCode renders the verification link for id as a PNG.
// GET /verify/qr?id=&size=
func (h *VerifyHandler) QRCode(c *gin.Context) {
	id := c.Query("id")
	if !ids.ValidCertificateID(id) {
		AbortWithError(c, verification.ErrInvalidFormat)
		return
	}

	size := h.qrSize
	if raw := c.Query("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			AbortWithError(c, qrcode.ErrInvalidSize)
			return
		}
		size = n
	}

	png, err := qrcode.PNG(certificate.VerificationURL(h.baseURL, id), size)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, "image/png", png)
}

func verdictStatus(v certificate.Verdict) int {
	if v == certificate.VerdictNotFound {
		return http.StatusNotFound
	}
	return http.StatusOK
}

func actorFrom(c *gin.Context) verification.Actor {
	return verification.Actor{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		SessionID: c.GetString("request_id"),
	}
}
