package apiauth

import (
	"slices"
	"time"
)

type Permission string

const (
	PermissionRead   Permission = "read"
	PermissionCreate Permission = "create"
	PermissionUpdate Permission = "update"
)

func ParsePermission(s string) (Permission, bool) {
	switch p := Permission(s); p {
	case PermissionRead, PermissionCreate, PermissionUpdate:
		return p, true
	}
	return "", false
}

// Credential is an issued API key. Secret is the HMAC key for signed
// requests and never leaves the server after issuance.
type Credential struct {
	ID                int64
	PublicID          string
	Name              string
	KeyHash           string
	KeyPrefix         string
	Secret            string
	Permissions       []Permission
	RateLimit         int
	RequiresSignature bool
	IsActive          bool
	CreatedAt         time.Time
	LastUsedAt        *time.Time
}

func (c *Credential) Can(p Permission) bool {
	return slices.Contains(c.Permissions, p)
}

type RequestLog struct {
	CredentialID int64
	Method       string
	Path         string
	Status       int
	ClientIP     string
	CreatedAt    time.Time
}
