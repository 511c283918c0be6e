package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/EternisAI/certpass/internal/api/http/dto"
	"github.com/EternisAI/certpass/internal/auth"
	"github.com/EternisAI/certpass/internal/ids"
	"github.com/EternisAI/certpass/internal/verification"
	"github.com/gin-gonic/gin"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

type EventLister interface {
	ListByCertificate(ctx context.Context, certificateID string, limit int) ([]verification.Event, error)
}

type AdminHandler struct {
	auth   *auth.Service
	events EventLister
}

func NewAdminHandler(authService *auth.Service, events EventLister) *AdminHandler {
	return &AdminHandler{
		auth:   authService,
		events: events,
	}
}

// POST /admin/login
func (h *AdminHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		status, message := ErrorStatus(err)
		if status == http.StatusInternalServerError {
			slog.Error("Admin login failed", "username", req.Username, "error", err)
		}
		c.JSON(status, gin.H{"error": message})
		return
	}

	slog.Info("Admin logged in", "username", req.Username, "client_ip", c.ClientIP())
	c.JSON(http.StatusOK, dto.LoginResponse{Token: token})
}

// CertificateEvents returns the verification history of one certificate.
// GET /admin/certificates/:id/events
func (h *AdminHandler) CertificateEvents(c *gin.Context) {
	id := c.Param("id")
	if !ids.ValidCertificateID(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": verification.ErrInvalidFormat.Error()})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultEventLimit)))
	if err != nil || limit < 1 {
		limit = defaultEventLimit
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}

	events, err := h.events.ListByCertificate(c.Request.Context(), id, limit)
	if err != nil {
		slog.Error("Failed to list verification events", "certificate_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	resp := dto.ListVerificationEventsResponse{
		CertificateID: id,
		Events:        make([]dto.VerificationEventResponse, len(events)),
	}
	for i, e := range events {
		resp.Events[i] = dto.VerificationEventResponse{
			ID:          e.ID,
			Verdict:     string(e.Verdict),
			Outcome:     e.Outcome,
			ActorIP:     e.ActorIP,
			ActorAgent:  e.ActorAgent,
			DeviceClass: e.DeviceClass,
			Timestamp:   e.Timestamp,
		}
	}
	c.JSON(http.StatusOK, resp)
}
