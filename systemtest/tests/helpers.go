package tests

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/EternisAI/certpass/internal/api/http/dto"
	"github.com/EternisAI/certpass/internal/apiauth"
	"github.com/EternisAI/certpass/internal/certificate"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type Env struct {
	Router        *gin.Engine
	DB            *sql.DB
	Certificates  *certificate.Service
	JWTSecret     string
	AdminUser     string
	AdminPassword string
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	return doJSONWithHeaders(router, method, path, body, nil)
}

func doJSONWithAuth(router *gin.Engine, method, path string, body any, token string) *httptest.ResponseRecorder {
	return doJSONWithHeaders(router, method, path, body, map[string]string{"Authorization": "Bearer " + token})
}

func doJSONWithHeaders(router *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var b []byte
	if body != nil {
		b, _ = json.Marshal(body)
	}
	return doRaw(router, method, path, b, headers)
}

func doRaw(router *gin.Engine, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func adminToken(t *testing.T, env *Env) string {
	t.Helper()
	rr := doJSON(env.Router, "POST", "/admin/login", dto.LoginRequest{Username: env.AdminUser, Password: env.AdminPassword})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp dto.LoginResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Token
}

func createAPIKey(t *testing.T, env *Env, req dto.CreateAPIKeyRequest) dto.APIKeyResponse {
	t.Helper()
	rr := doJSONWithAuth(env.Router, "POST", "/admin/api-keys", req, adminToken(t, env))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp dto.APIKeyResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func signedHeaders(key dto.APIKeyResponse, nonce, method, path string, body []byte) map[string]string {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	return map[string]string{
		"Authorization":         "Bearer " + key.Key,
		apiauth.HeaderTimestamp: ts,
		apiauth.HeaderNonce:     nonce,
		apiauth.HeaderSignature: apiauth.Sign(key.Secret, key.Key, ts, nonce, method, path, body),
	}
}
