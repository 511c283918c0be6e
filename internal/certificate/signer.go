package certificate

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const dateLayout = "2006-01-02"

// Signer binds a certificate's critical fields to a server-side key.
type Signer struct {
	key []byte
}

func NewSigner(key []byte) *Signer {
	return &Signer{key: key}
}

func (s *Signer) Sign(c *Certificate) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(canonicalFields(c)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether c.DigitalSignature matches its fields. Records that
// were never signed pass.
func (s *Signer) Verify(c *Certificate) bool {
	if c.DigitalSignature == "" {
		return true
	}
	got, err := hex.DecodeString(c.DigitalSignature)
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(s.Sign(c))
	return hmac.Equal(got, want)
}

func canonicalFields(c *Certificate) string {
	expiry := ""
	if c.ExpiryDate != nil {
		expiry = c.ExpiryDate.UTC().Format(dateLayout)
	}
	return strings.Join([]string{
		c.CertificateID,
		c.HolderName,
		c.CourseName,
		c.IssueDate.UTC().Format(dateLayout),
		expiry,
	}, "\n")
}
