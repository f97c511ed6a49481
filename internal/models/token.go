// Package models defines data models for namespace tokens, scopes, and managed processes.
package models

import "time"

// NamespaceToken is a persisted namespace credential. The plaintext token
// is never stored; only its hash.
type NamespaceToken struct {
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	ID          string    `json:"id"`
	TokenHash   string    `json:"-"`
	Namespace   string    `json:"namespace"`
	Description string    `json:"description,omitempty"`
}

// Public returns the projection that is safe to hand to callers.
func (t *NamespaceToken) Public() TokenResponse {
	return TokenResponse{
		ID:          t.ID,
		Namespace:   t.Namespace,
		Description: t.Description,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// TokenResponse is the public view of a NamespaceToken.
type TokenResponse struct {
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	ID          string    `json:"id"`
	Namespace   string    `json:"namespace"`
	Description string    `json:"description,omitempty"`
}

// CreatedToken is returned exactly once, when a token is minted.
type CreatedToken struct {
	TokenResponse
	Token string `json:"token"`
}

// CreateTokenRequest contains the data for minting a namespace token.
type CreateTokenRequest struct {
	Namespace   string `json:"namespace" binding:"required"`
	Description string `json:"description"`
}
