package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/EternisAI/certpass/internal/apiauth"
	"github.com/EternisAI/certpass/internal/ids"
)

// Client calls the CertPass API with a bearer key and, when a secret is
// configured, signs every request.
type Client struct {
	baseURL string
	key     string
	secret  string
	http    *http.Client
	now     func() time.Time
	nonce   func() string
}

func NewClient(cfg ServerConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		key:     cfg.APIKey,
		secret:  cfg.APISecret,
		http:    &http.Client{Timeout: cfg.Timeout},
		now:     time.Now,
		nonce:   ids.New,
	}
}

func (c *Client) Verify(ctx context.Context, certificateID string) (int, []byte, error) {
	return c.do(ctx, http.MethodGet, "/api/v1/verify/"+url.PathEscape(certificateID), nil)
}

func (c *Client) Info(ctx context.Context) (int, []byte, error) {
	return c.do(ctx, http.MethodGet, "/api/v1/info", nil)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	if c.key == "" {
		return 0, nil, fmt.Errorf("API key is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.key)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.secret != "" {
		ts := strconv.FormatInt(c.now().Unix(), 10)
		nonce := c.nonce()
		signature := apiauth.Sign(c.secret, c.key, ts, nonce, method, req.URL.RequestURI(), body)
		req.Header.Set(apiauth.HeaderTimestamp, ts)
		req.Header.Set(apiauth.HeaderNonce, nonce)
		req.Header.Set(apiauth.HeaderSignature, signature)
		slog.Debug("Signed request", "method", method, "path", req.URL.RequestURI(), "nonce", nonce)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}
