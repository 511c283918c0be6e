package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/EternisAI/certpass/internal/api/http/handler"
	"github.com/EternisAI/certpass/internal/apiauth"
	"github.com/EternisAI/certpass/internal/auth"
	"github.com/EternisAI/certpass/internal/metrics"
	"github.com/EternisAI/certpass/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

const (
	maxSignedBody     = 1 << 20
	requestLogTimeout = 2 * time.Second
)

func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid authorization header"})
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		claims, err := auth.ValidateToken(secret, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("username", claims.Username)
		c.Set("role", claims.Role)
		c.Next()
	}
}

func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get("role")
		if !exists {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		userRole, ok := role.(string)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		for _, r := range roles {
			if r == userRole {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}

type APIAuthConfig struct {
	Credentials *apiauth.Service
	Verifier    *apiauth.Verifier
	RequestLogs apiauth.RequestLogStore
}

// APIKeyAuth authenticates the bearer API key and verifies the HMAC signature
// when the key requires it or the caller sent one. Every call that resolved a
// credential is written to the request log.
func APIKeyAuth(config APIAuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		key, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(key) == "" {
			metrics.APIAuthFailures.WithLabelValues("missing_key").Inc()
			handler.AbortWithError(c, handler.ErrMissingAPIKey)
			return
		}
		key = strings.TrimSpace(key)

		ctx := c.Request.Context()
		cred, err := config.Credentials.Authenticate(ctx, key)
		if err != nil {
			metrics.APIAuthFailures.WithLabelValues(failureReason(err)).Inc()
			if errors.Is(err, apiauth.ErrInvalidAPIKey) || errors.Is(err, apiauth.ErrInactiveAPIKey) {
				slog.Warn("Invalid API key attempt", "path", c.Request.URL.Path, "client_ip", c.ClientIP())
			}
			handler.AbortWithError(c, err)
			return
		}

		c.Set(handler.CredentialKey, cred)
		defer appendRequestLog(c, config.RequestLogs, cred)

		if cred.RequiresSignature || c.GetHeader(apiauth.HeaderSignature) != "" {
			if err := verifySignature(c, config.Verifier, cred, key); err != nil {
				metrics.APIAuthFailures.WithLabelValues(failureReason(err)).Inc()
				slog.Warn("API signature rejected",
					"credential_id", cred.PublicID,
					"client_ip", c.ClientIP(),
					"error", err)
				handler.AbortWithError(c, err)
				return
			}
		}

		c.Next()
	}
}

// APIQuota charges one call against the credential's daily quota. Routes place
// it after RequirePermission so rejected calls are not counted.
func APIQuota(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		cred, ok := handler.CredentialFrom(c)
		if !ok {
			handler.AbortWithError(c, handler.ErrMissingAPIKey)
			return
		}

		decision := limiter.Allow(c.Request.Context(), apiauth.QuotaAttempt(cred, c.ClientIP()))
		if decision.Limited {
			handler.AbortWithError(c, &handler.QuotaExceededError{RetryAfter: decision.RetryAfter})
			return
		}
		c.Next()
	}
}

func RequirePermission(p apiauth.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		cred, ok := handler.CredentialFrom(c)
		if !ok || !cred.Can(p) {
			metrics.APIAuthFailures.WithLabelValues("permission").Inc()
			handler.AbortWithError(c, handler.ErrPermissionDenied)
			return
		}
		c.Next()
	}
}

func verifySignature(c *gin.Context, v *apiauth.Verifier, cred *apiauth.Credential, key string) error {
	var body []byte
	if c.Request.Body != nil {
		var err error
		body, err = io.ReadAll(io.LimitReader(c.Request.Body, maxSignedBody))
		if err != nil {
			return apiauth.ErrInvalidSignature
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
	}

	h := apiauth.Headers{
		Signature: c.GetHeader(apiauth.HeaderSignature),
		Timestamp: c.GetHeader(apiauth.HeaderTimestamp),
		Nonce:     c.GetHeader(apiauth.HeaderNonce),
	}
	return v.VerifyRequest(c.Request.Context(), cred, key, h, c.Request.Method, c.Request.URL.RequestURI(), body)
}

func appendRequestLog(c *gin.Context, logs apiauth.RequestLogStore, cred *apiauth.Credential) {
	if logs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), requestLogTimeout)
	defer cancel()

	entry := apiauth.RequestLog{
		CredentialID: cred.ID,
		Method:       c.Request.Method,
		Path:         c.Request.URL.Path,
		Status:       c.Writer.Status(),
		ClientIP:     c.ClientIP(),
		CreatedAt:    time.Now(),
	}
	if err := logs.Append(ctx, entry); err != nil {
		slog.Warn("Failed to write API request log", "credential_id", cred.PublicID, "error", err)
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, apiauth.ErrInvalidAPIKey):
		return "invalid_key"
	case errors.Is(err, apiauth.ErrInactiveAPIKey):
		return "inactive_key"
	case errors.Is(err, apiauth.ErrMissingSignatureHeaders):
		return "missing_signature"
	case errors.Is(err, apiauth.ErrStaleTimestamp):
		return "stale_timestamp"
	case errors.Is(err, apiauth.ErrReplayedNonce):
		return "replayed_nonce"
	case errors.Is(err, apiauth.ErrInvalidSignature):
		return "invalid_signature"
	}
	return "unavailable"
}
