package ids

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	DefaultCertificatePrefix = "CP"
	certificateSegmentLength = 6
	certificateAlphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxCertificateIDLength   = 64
)

var certificateIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// New returns a lexicographically sortable identifier for request ids and nonces.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewCertificateID returns "<prefix>-<6 random [A-Z0-9]>-<year>".
// Uniqueness is enforced by the certificates table; callers retry on collision.
func NewCertificateID(prefix string, now time.Time) string {
	if prefix == "" {
		prefix = DefaultCertificatePrefix
	}
	return fmt.Sprintf("%s-%s-%04d", prefix, randomSegment(certificateSegmentLength), now.Year())
}

func randomSegment(n int) string {
	// 252 is the largest multiple of 36 below 256; bytes above it are rejected
	// so every character of the alphabet is equally likely.
	const limit = 252
	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	for len(out) < n {
		// crypto/rand.Read never returns an error.
		_, _ = rand.Read(buf)
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, certificateAlphabet[int(b)%len(certificateAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out)
}

// ValidCertificateID reports whether id only uses the characters a certificate
// id may contain. It is a cheap guard before any store round-trip.
func ValidCertificateID(id string) bool {
	if id == "" || len(id) > maxCertificateIDLength {
		return false
	}
	return certificateIDPattern.MatchString(id)
}

// RateLimitKey derives an opaque throttle key from the client address and a
// context discriminator (certificate id, user agent, session id, ...).
// Different contexts from the same address land in different buckets.
func RateLimitKey(salt []byte, ip string, context ...string) string {
	mac := hmac.New(sha256.New, salt)
	mac.Write([]byte(ip))
	for _, part := range context {
		mac.Write([]byte{0})
		mac.Write([]byte(strings.TrimSpace(part)))
	}
	return hex.EncodeToString(mac.Sum(nil))
}
