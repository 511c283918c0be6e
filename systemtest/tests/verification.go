package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/EternisAI/certpass/internal/api/http/dto"
	"github.com/EternisAI/certpass/internal/certificate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck(t *testing.T, env *Env) {
	rr := doJSON(env.Router, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp dto.HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestAdminLogin(t *testing.T, env *Env) {
	t.Run("success", func(t *testing.T) {
		assert.NotEmpty(t, adminToken(t, env))
	})

	t.Run("wrong password", func(t *testing.T) {
		rr := doJSON(env.Router, "POST", "/admin/login", dto.LoginRequest{Username: env.AdminUser, Password: "wrongpassword"})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("protected routes need a token", func(t *testing.T) {
		rr := doJSON(env.Router, "POST", "/admin/api-keys", dto.CreateAPIKeyRequest{Name: "x", Permissions: []string{"read"}})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func issue(t *testing.T, env *Env, expiry *time.Time) string {
	t.Helper()
	c, err := env.Certificates.Issue(context.Background(), certificate.IssueRequest{
		HolderName: "Ada Lovelace",
		CourseName: "Analytical Engines",
		IssueDate:  time.Now().UTC().AddDate(-1, 0, 0),
		ExpiryDate: expiry,
		CreatedBy:  "systemtest",
	})
	require.NoError(t, err)
	return c.CertificateID
}

func TestPublicVerification(t *testing.T, env *Env) {
	t.Run("valid certificate verified twice", func(t *testing.T) {
		id := issue(t, env, nil)

		for i := 0; i < 2; i++ {
			rr := doRaw(env.Router, "GET", "/verify?id="+id, nil, nil)
			require.Equal(t, http.StatusOK, rr.Code)

			var resp dto.VerificationResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.True(t, resp.Status)
			assert.Equal(t, "VALID", resp.Verdict)
		}

		var count int64
		require.NoError(t, env.DB.QueryRow(`select verification_count from certificates where certificate_id = $1`, id).Scan(&count))
		assert.Equal(t, int64(2), count)

		var events int
		require.NoError(t, env.DB.QueryRow(`select count(*) from verification_events where certificate_id = $1`, id).Scan(&events))
		assert.Equal(t, 2, events)
	})

	t.Run("expired certificate", func(t *testing.T) {
		past := time.Now().UTC().AddDate(0, 0, -2)
		id := issue(t, env, &past)

		rr := doRaw(env.Router, "GET", "/verify?id="+id, nil, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var resp dto.VerificationResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.False(t, resp.Status)
		assert.Equal(t, "EXPIRED", resp.Verdict)
		assert.Nil(t, resp.Certificate)
	})

	t.Run("revoked certificate", func(t *testing.T) {
		id := issue(t, env, nil)
		_, err := env.Certificates.SetStatus(context.Background(), id, certificate.StatusRevoked)
		require.NoError(t, err)

		rr := doRaw(env.Router, "GET", "/verify?id="+id, nil, nil)
		var resp dto.VerificationResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "REVOKED", resp.Verdict)
	})

	t.Run("tampered record is flagged", func(t *testing.T) {
		id := issue(t, env, nil)
		_, err := env.DB.Exec(`update certificates set holder_name = 'Mallory' where certificate_id = $1`, id)
		require.NoError(t, err)

		rr := doRaw(env.Router, "GET", "/verify?id="+id, nil, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var resp dto.VerificationResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "TAMPERED", resp.Verdict)
		assert.NotEmpty(t, resp.Warning)
	})

	t.Run("unknown certificate", func(t *testing.T) {
		rr := doRaw(env.Router, "GET", "/verify?id=CP-ZZZZZZ-1999", nil, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestVerificationRateLimit(t *testing.T, env *Env) {
	id := issue(t, env, nil)
	headers := map[string]string{"X-Forwarded-For": "198.51.100.23"}

	for i := 0; i < 5; i++ {
		rr := doRaw(env.Router, "GET", "/verify?id="+id, nil, headers)
		require.Equal(t, http.StatusOK, rr.Code)
	}

	rr := doRaw(env.Router, "GET", "/verify?id="+id, nil, headers)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	retry, err := strconv.Atoi(rr.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Greater(t, retry, 0)
	assert.LessOrEqual(t, retry, 300)

	// Another client is not affected.
	rr = doRaw(env.Router, "GET", "/verify?id="+id, nil, map[string]string{"X-Forwarded-For": "198.51.100.99"})
	assert.Equal(t, http.StatusOK, rr.Code)
}
