package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/EternisAI/certpass/internal/apiauth"
	"github.com/EternisAI/certpass/internal/auth"
	"github.com/EternisAI/certpass/internal/certificate"
	"github.com/EternisAI/certpass/internal/verification"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid format", verification.ErrInvalidFormat, http.StatusBadRequest},
		{"invalid dates", certificate.ErrInvalidDates, http.StatusBadRequest},
		{"bad date", ErrInvalidDate, http.StatusBadRequest},
		{"invalid key", apiauth.ErrInvalidAPIKey, http.StatusUnauthorized},
		{"replayed nonce", apiauth.ErrReplayedNonce, http.StatusUnauthorized},
		{"stale timestamp", apiauth.ErrStaleTimestamp, http.StatusUnauthorized},
		{"nonce store down", fmt.Errorf("%w: check nonce: timeout", apiauth.ErrAuthUnavailable), http.StatusUnauthorized},
		{"bad login", auth.ErrInvalidCredentials, http.StatusUnauthorized},
		{"permission", ErrPermissionDenied, http.StatusForbidden},
		{"not found", certificate.ErrNotFound, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("get: %w", certificate.ErrNotFound), http.StatusNotFound},
		{"rate limited", &verification.RateLimitError{RetryAfter: time.Minute}, http.StatusTooManyRequests},
		{"quota", &QuotaExceededError{RetryAfter: time.Hour}, http.StatusTooManyRequests},
		{"infrastructure", errors.New("connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := ErrorStatus(tt.err)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestErrorStatusHidesInfrastructureDetails(t *testing.T) {
	_, message := ErrorStatus(errors.New("pq: password authentication failed for user certpass"))
	assert.Equal(t, "internal error", message)

	_, message = ErrorStatus(fmt.Errorf("%w: record nonce: dial tcp", apiauth.ErrAuthUnavailable))
	assert.Equal(t, "authentication failed", message)
}

func TestAbortWithErrorSetsRetryAfter(t *testing.T) {
	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		AbortWithError(c, &verification.RateLimitError{RetryAfter: 42 * time.Second})
	})

	req, _ := http.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "42", w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"status":false,"message":"too many verification attempts, retry in 42 seconds"}`, w.Body.String())
}
