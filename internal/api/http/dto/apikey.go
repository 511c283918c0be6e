package dto

import "time"

type CreateAPIKeyRequest struct {
	Name              string   `json:"name" binding:"required,max=255"`
	Permissions       []string `json:"permissions" binding:"required,min=1,dive,oneof=read create update"`
	RateLimit         int      `json:"rate_limit" binding:"omitempty,min=1"`
	RequiresSignature bool     `json:"requires_signature"`
}

type APIKeyResponse struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Key               string    `json:"key,omitempty"`    // Only returned on creation
	Secret            string    `json:"secret,omitempty"` // Only returned on creation
	KeyPrefix         string    `json:"key_prefix"`
	Permissions       []string  `json:"permissions"`
	RateLimit         int       `json:"rate_limit"`
	RequiresSignature bool      `json:"requires_signature"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
}

type InfoResponse struct {
	Status            bool     `json:"status"`
	Message           string   `json:"message"`
	Name              string   `json:"name"`
	KeyPrefix         string   `json:"key_prefix"`
	Permissions       []string `json:"permissions"`
	RateLimit         int      `json:"rate_limit"`
	Remaining         int      `json:"remaining"`
	RequiresSignature bool     `json:"requires_signature"`
}
