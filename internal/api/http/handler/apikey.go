package handler

import (
	"net/http"

	"github.com/EternisAI/certpass/internal/api/http/dto"
	"github.com/EternisAI/certpass/internal/apiauth"
	"github.com/EternisAI/certpass/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

// CredentialKey is the gin context key holding the authenticated *apiauth.Credential.
const CredentialKey = "api_credential"

func CredentialFrom(c *gin.Context) (*apiauth.Credential, bool) {
	v, ok := c.Get(CredentialKey)
	if !ok {
		return nil, false
	}
	cred, ok := v.(*apiauth.Credential)
	return cred, ok && cred != nil
}

type APIKeyHandler struct {
	credentials *apiauth.Service
	limiter     *ratelimit.Limiter
}

func NewAPIKeyHandler(credentials *apiauth.Service, limiter *ratelimit.Limiter) *APIKeyHandler {
	return &APIKeyHandler{
		credentials: credentials,
		limiter:     limiter,
	}
}

// CreateKey issues a new API credential
// POST /admin/api-keys
func (h *APIKeyHandler) CreateKey(c *gin.Context) {
	var req dto.CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	perms := make([]apiauth.Permission, 0, len(req.Permissions))
	for _, raw := range req.Permissions {
		p, ok := apiauth.ParsePermission(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown permission " + raw})
			return
		}
		perms = append(perms, p)
	}

	issued, err := h.credentials.Issue(c.Request.Context(), apiauth.IssueRequest{
		Name:              req.Name,
		Permissions:       perms,
		RateLimit:         req.RateLimit,
		RequiresSignature: req.RequiresSignature,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := apiKeyResponse(issued.Credential)
	resp.Key = issued.Key
	resp.Secret = issued.Secret
	c.JSON(http.StatusCreated, resp)
}

// RevokeKey deactivates an API credential
// DELETE /admin/api-keys/:id
func (h *APIKeyHandler) RevokeKey(c *gin.Context) {
	id := c.Param("id")
	if err := h.credentials.Deactivate(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "API key revoked"})
}

// Info describes the calling key and its remaining daily quota.
// GET /api/v1/info
func (h *APIKeyHandler) Info(c *gin.Context) {
	cred, ok := CredentialFrom(c)
	if !ok {
		AbortWithError(c, ErrMissingAPIKey)
		return
	}

	perms := make([]string, len(cred.Permissions))
	for i, p := range cred.Permissions {
		perms[i] = string(p)
	}
	attempt := apiauth.QuotaAttempt(cred, c.ClientIP())
	c.JSON(http.StatusOK, dto.InfoResponse{
		Status:            true,
		Message:           "ok",
		Name:              cred.Name,
		KeyPrefix:         cred.KeyPrefix,
		Permissions:       perms,
		RateLimit:         attempt.MaxRequests,
		Remaining:         h.limiter.Remaining(c.Request.Context(), attempt),
		RequiresSignature: cred.RequiresSignature,
	})
}

func apiKeyResponse(cred *apiauth.Credential) dto.APIKeyResponse {
	perms := make([]string, len(cred.Permissions))
	for i, p := range cred.Permissions {
		perms[i] = string(p)
	}
	return dto.APIKeyResponse{
		ID:                cred.PublicID,
		Name:              cred.Name,
		KeyPrefix:         cred.KeyPrefix,
		Permissions:       perms,
		RateLimit:         cred.RateLimit,
		RequiresSignature: cred.RequiresSignature,
		IsActive:          cred.IsActive,
		CreatedAt:         cred.CreatedAt,
	}
}
