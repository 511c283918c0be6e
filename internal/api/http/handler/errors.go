package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/EternisAI/certpass/internal/api/http/dto"
	"github.com/EternisAI/certpass/internal/apiauth"
	"github.com/EternisAI/certpass/internal/auth"
	"github.com/EternisAI/certpass/internal/certificate"
	"github.com/EternisAI/certpass/internal/qrcode"
	"github.com/EternisAI/certpass/internal/verification"
	"github.com/gin-gonic/gin"
)

var (
	ErrPermissionDenied = errors.New("API key does not have the required permission")
	ErrMissingAPIKey    = errors.New("missing or invalid authorization header")
	ErrInvalidDate      = errors.New("dates must use the YYYY-MM-DD format")
)

// QuotaExceededError is returned when a credential has used its daily quota.
type QuotaExceededError struct {
	RetryAfter time.Duration
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("API rate limit exceeded, retry in %d seconds", int(e.RetryAfter.Seconds()))
}

// ErrorStatus maps an error to the HTTP status and the message shown to the
// caller. Unknown errors become a generic 500.
func ErrorStatus(err error) (int, string) {
	var (
		rateErr  *verification.RateLimitError
		quotaErr *QuotaExceededError
	)
	switch {
	case errors.As(err, &rateErr), errors.As(err, &quotaErr):
		return http.StatusTooManyRequests, err.Error()

	case errors.Is(err, verification.ErrInvalidFormat),
		errors.Is(err, certificate.ErrInvalidDates),
		errors.Is(err, certificate.ErrMissingField),
		errors.Is(err, qrcode.ErrInvalidSize),
		errors.Is(err, ErrInvalidDate):
		return http.StatusBadRequest, err.Error()

	case errors.Is(err, ErrMissingAPIKey),
		errors.Is(err, apiauth.ErrInvalidAPIKey),
		errors.Is(err, apiauth.ErrInactiveAPIKey),
		errors.Is(err, apiauth.ErrMissingSignatureHeaders),
		errors.Is(err, apiauth.ErrStaleTimestamp),
		errors.Is(err, apiauth.ErrReplayedNonce),
		errors.Is(err, apiauth.ErrInvalidSignature),
		errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, err.Error()

	case errors.Is(err, apiauth.ErrAuthUnavailable):
		return http.StatusUnauthorized, "authentication failed"

	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden, err.Error()

	case errors.Is(err, certificate.ErrNotFound),
		errors.Is(err, apiauth.ErrCredentialNotFound):
		return http.StatusNotFound, err.Error()
	}
	return http.StatusInternalServerError, "internal error"
}

// AbortWithError writes the error envelope and stops the handler chain.
func AbortWithError(c *gin.Context, err error) {
	status, message := ErrorStatus(err)
	if status >= http.StatusInternalServerError || errors.Is(err, apiauth.ErrAuthUnavailable) {
		slog.Error("Request failed", "path", c.Request.URL.Path, "client_ip", c.ClientIP(), "error", err)
	}

	var (
		rateErr  *verification.RateLimitError
		quotaErr *QuotaExceededError
	)
	switch {
	case errors.As(err, &rateErr):
		c.Header("Retry-After", strconv.Itoa(int(rateErr.RetryAfter.Seconds())))
	case errors.As(err, &quotaErr):
		c.Header("Retry-After", strconv.Itoa(int(quotaErr.RetryAfter.Seconds())))
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, dto.ErrorResponse{Status: false, Message: message})
}
