package apiauth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const (
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
	HeaderNonce     = "X-Nonce"

	DefaultMaxSkew      = 300 * time.Second
	DefaultStoreTimeout = 2 * time.Second
)

var (
	ErrMissingSignatureHeaders = errors.New("missing signature headers")
	ErrStaleTimestamp          = errors.New("request timestamp outside allowed window")
	ErrReplayedNonce           = errors.New("nonce has already been used")
	ErrInvalidSignature        = errors.New("invalid request signature")
	// ErrNonceExists is returned by NonceStore.Insert on a unique violation.
	ErrNonceExists = errors.New("nonce already recorded")
	// ErrAuthUnavailable wraps nonce store failures; the request is denied.
	ErrAuthUnavailable = errors.New("signature verification unavailable")
)

// NonceStore is the durable replay log. Insert must be atomic with respect
// to the (credential, nonce) uniqueness constraint.
type NonceStore interface {
	Exists(ctx context.Context, credentialID int64, nonce string) (bool, error)
	Insert(ctx context.Context, credentialID int64, nonce string, at time.Time) error
}

type Headers struct {
	Signature string
	Timestamp string
	Nonce     string
}

type Verifier struct {
	nonces  NonceStore
	now     func() time.Time
	maxSkew time.Duration
	timeout time.Duration
}

type VerifierOption func(*Verifier)

func WithVerifierClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) { v.now = now }
}

func WithMaxSkew(d time.Duration) VerifierOption {
	return func(v *Verifier) {
		if d > 0 {
			v.maxSkew = d
		}
	}
}

func WithStoreTimeout(d time.Duration) VerifierOption {
	return func(v *Verifier) {
		if d > 0 {
			v.timeout = d
		}
	}
}

func NewVerifier(nonces NonceStore, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		nonces:  nonces,
		now:     time.Now,
		maxSkew: DefaultMaxSkew,
		timeout: DefaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Sign computes hex(HMAC-SHA256(secret, key||timestamp||nonce||method||path||body)).
func Sign(secret, key, timestamp, nonce, method, path string, body []byte) string {
	return hex.EncodeToString(signature(secret, key, timestamp, nonce, method, path, body))
}

func signature(secret, key, timestamp, nonce, method, path string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(key))
	mac.Write([]byte(timestamp))
	mac.Write([]byte(nonce))
	mac.Write([]byte(method))
	mac.Write([]byte(path))
	mac.Write(body)
	return mac.Sum(nil)
}

// VerifyRequest authenticates one signed request. On success the nonce has
// been persisted, so a second call with the same nonce fails.
func (v *Verifier) VerifyRequest(ctx context.Context, cred *Credential, key string, h Headers, method, path string, body []byte) error {
	if h.Signature == "" || h.Timestamp == "" || h.Nonce == "" {
		return ErrMissingSignatureHeaders
	}

	ts, err := strconv.ParseInt(h.Timestamp, 10, 64)
	if err != nil {
		return ErrStaleTimestamp
	}
	now := v.now()
	// Sub saturates for timestamps centuries away; Abs maps both ends above maxSkew.
	if now.Sub(time.Unix(ts, 0)).Abs() > v.maxSkew {
		return ErrStaleTimestamp
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	used, err := v.nonces.Exists(ctx, cred.ID, h.Nonce)
	if err != nil {
		return fmt.Errorf("%w: check nonce: %v", ErrAuthUnavailable, err)
	}
	if used {
		return ErrReplayedNonce
	}

	supplied, err := hex.DecodeString(h.Signature)
	if err != nil {
		return ErrInvalidSignature
	}
	expected := signature(cred.Secret, key, h.Timestamp, h.Nonce, method, path, body)
	if !hmac.Equal(supplied, expected) {
		return ErrInvalidSignature
	}

	if err := v.nonces.Insert(ctx, cred.ID, h.Nonce, now); err != nil {
		if errors.Is(err, ErrNonceExists) {
			return ErrReplayedNonce
		}
		return fmt.Errorf("%w: record nonce: %v", ErrAuthUnavailable, err)
	}
	return nil
}
