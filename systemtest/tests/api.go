package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/EternisAI/certpass/internal/api/http/dto"
	"github.com/EternisAI/certpass/internal/apiauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCertificateAPI(t *testing.T, env *Env) {
	key := createAPIKey(t, env, dto.CreateAPIKeyRequest{
		Name:        "registrar",
		Permissions: []string{"read", "create", "update"},
		RateLimit:   100,
	})
	readOnly := createAPIKey(t, env, dto.CreateAPIKeyRequest{
		Name:        "auditor",
		Permissions: []string{"read"},
	})

	var certificateID string

	t.Run("create certificate", func(t *testing.T) {
		rr := doJSONWithAuth(env.Router, "POST", "/api/v1/certificates", dto.CreateCertificateRequest{
			FullName:         "Grace Hopper",
			CourseName:       "Compilers",
			IssueDate:        "2026-01-15",
			ExpiryDate:       "2031-01-15",
			AdditionalFields: map[string]any{"grade": "A"},
		}, key.Key)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

		var resp dto.CreateCertificateResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Regexp(t, `^CP-[A-Z0-9]{6}-\d{4}$`, resp.CertificateID)
		assert.Equal(t, "https://certs.example.com/verify?id="+resp.CertificateID, resp.VerificationURL)
		certificateID = resp.CertificateID
	})

	t.Run("read-only key cannot create", func(t *testing.T) {
		rr := doJSONWithAuth(env.Router, "POST", "/api/v1/certificates", dto.CreateCertificateRequest{
			FullName: "A", CourseName: "B", IssueDate: "2026-01-15",
		}, readOnly.Key)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("verify through the API", func(t *testing.T) {
		rr := doJSONWithAuth(env.Router, "GET", "/api/v1/verify/"+certificateID, nil, readOnly.Key)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp dto.APIVerifyResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.True(t, resp.Status)
		require.NotNil(t, resp.Certificate)
		assert.Equal(t, "Grace Hopper", resp.Certificate.FullName)
		assert.Equal(t, "2026-01-15", resp.Certificate.IssueDate)
		require.NotNil(t, resp.Certificate.ExpiryDate)
		assert.Equal(t, "2031-01-15", *resp.Certificate.ExpiryDate)
	})

	t.Run("revoke and verify", func(t *testing.T) {
		rr := doJSONWithAuth(env.Router, "PUT", "/api/v1/certificates/"+certificateID,
			dto.UpdateCertificateRequest{Status: "revoked"}, key.Key)
		require.Equal(t, http.StatusOK, rr.Code)

		rr = doJSONWithAuth(env.Router, "GET", "/api/v1/verify/"+certificateID, nil, key.Key)
		require.Equal(t, http.StatusOK, rr.Code)
		var resp dto.APIVerifyResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.False(t, resp.Status)
		require.NotNil(t, resp.Certificate)
		assert.Equal(t, "revoked", resp.Certificate.Status)
	})

	t.Run("list revoked", func(t *testing.T) {
		rr := doJSONWithAuth(env.Router, "GET", "/api/v1/certificates?status=revoked&limit=500", nil, key.Key)
		require.Equal(t, http.StatusOK, rr.Code)
		var resp dto.ListCertificatesResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.GreaterOrEqual(t, resp.Total, int64(1))
		assert.Equal(t, 100, resp.Limit)
		for _, c := range resp.Certificates {
			assert.Equal(t, "revoked", c.Status)
		}
	})

	t.Run("info reports quota and request log is written", func(t *testing.T) {
		rr := doJSONWithAuth(env.Router, "GET", "/api/v1/info", nil, key.Key)
		require.Equal(t, http.StatusOK, rr.Code)
		var resp dto.InfoResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, 100, resp.RateLimit)
		assert.Less(t, resp.Remaining, 100)

		var logged int
		require.NoError(t, env.DB.QueryRow(
			`select count(*) from api_request_logs l join api_credentials c on c.id = l.credential_id where c.public_id = $1`,
			key.ID).Scan(&logged))
		assert.GreaterOrEqual(t, logged, 4)
	})

	t.Run("revoked key is rejected", func(t *testing.T) {
		rr := doJSONWithAuth(env.Router, "DELETE", "/admin/api-keys/"+readOnly.ID, nil, adminToken(t, env))
		require.Equal(t, http.StatusOK, rr.Code)

		rr = doJSONWithAuth(env.Router, "GET", "/api/v1/info", nil, readOnly.Key)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("verification history", func(t *testing.T) {
		rr := doJSONWithAuth(env.Router, "GET", "/admin/certificates/"+certificateID+"/events", nil, adminToken(t, env))
		require.Equal(t, http.StatusOK, rr.Code)
		var resp dto.ListVerificationEventsResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.Len(t, resp.Events, 2)
		assert.Equal(t, "REVOKED", resp.Events[0].Verdict)
		assert.Equal(t, "VALID", resp.Events[1].Verdict)
	})
}

func TestSignedRequestReplay(t *testing.T, env *Env) {
	key := createAPIKey(t, env, dto.CreateAPIKeyRequest{
		Name:              "signed-partner",
		Permissions:       []string{"read", "create"},
		RequiresSignature: true,
	})

	t.Run("unsigned request rejected", func(t *testing.T) {
		rr := doJSONWithAuth(env.Router, "GET", "/api/v1/info", nil, key.Key)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("replayed headers rejected", func(t *testing.T) {
		headers := signedHeaders(key, "systemtest-nonce-1", "GET", "/api/v1/info", nil)

		rr := doRaw(env.Router, "GET", "/api/v1/info", nil, headers)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		rr = doRaw(env.Router, "GET", "/api/v1/info", nil, headers)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		var resp dto.ErrorResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, apiauth.ErrReplayedNonce.Error(), resp.Message)
	})

	t.Run("signed create", func(t *testing.T) {
		body, _ := json.Marshal(dto.CreateCertificateRequest{FullName: "Alan Turing", CourseName: "Computability", IssueDate: "2026-02-01"})
		headers := signedHeaders(key, "systemtest-nonce-2", "POST", "/api/v1/certificates", body)

		rr := doRaw(env.Router, "POST", "/api/v1/certificates", body, headers)
		assert.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	})
}
