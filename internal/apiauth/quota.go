package apiauth

import (
	"time"

	"github.com/EternisAI/certpass/internal/ratelimit"
)

const (
	ActionAPICall = "api_call"
	QuotaWindow   = 24 * time.Hour
)

// QuotaAttempt describes one API call against the credential's daily quota.
func QuotaAttempt(c *Credential, clientIP string) ratelimit.Attempt {
	limit := c.RateLimit
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	return ratelimit.Attempt{
		Identifier:  "credential:" + c.PublicID,
		Action:      ActionAPICall,
		SourceIP:    clientIP,
		MaxRequests: limit,
		Window:      QuotaWindow,
	}
}
