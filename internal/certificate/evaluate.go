package certificate

import "time"

type Verdict string

const (
	VerdictValid       Verdict = "VALID"
	VerdictRevoked     Verdict = "REVOKED"
	VerdictInvalidFlag Verdict = "INVALID_FLAG"
	VerdictExpired     Verdict = "EXPIRED"
	VerdictNotFound    Verdict = "NOT_FOUND"
	VerdictTampered    Verdict = "TAMPERED"
)

// SignatureCheck reports whether a certificate's stored signature still
// matches its fields. A nil SignatureCheck disables the tamper check.
type SignatureCheck func(*Certificate) bool

var verdictMessages = map[Verdict]string{
	VerdictValid:       "Certificate is valid",
	VerdictRevoked:     "This certificate has been revoked",
	VerdictInvalidFlag: "This certificate is not valid",
	VerdictExpired:     "This certificate has expired",
	VerdictNotFound:    "Certificate not found",
	VerdictTampered:    "Certificate is active but its signature could not be verified",
}

func (v Verdict) Message() string {
	return verdictMessages[v]
}

// Evaluate decides the verdict for a certificate snapshot at now.
// The checks run in a fixed order and the first match wins: not found,
// revoked, validation flag, expiry, signature.
func Evaluate(c *Certificate, now time.Time, check SignatureCheck) (Verdict, string) {
	var v Verdict
	switch {
	case c == nil:
		v = VerdictNotFound
	case !c.IsActive:
		v = VerdictRevoked
	case c.ValidationStatus != nil && !*c.ValidationStatus:
		v = VerdictInvalidFlag
	case c.ExpiryDate != nil && c.ExpiryDate.Before(now):
		v = VerdictExpired
	case check != nil && !check(c):
		v = VerdictTampered
	default:
		v = VerdictValid
	}
	return v, v.Message()
}
