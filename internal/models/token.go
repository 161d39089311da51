package models

import "time"

// TokenScope limits what an API token may do
type TokenScope string

const (
	// TokenScopeFull allows every API operation
	TokenScopeFull TokenScope = "full"
	// TokenScopeRead allows only safe (read) requests
	TokenScopeRead TokenScope = "read"
)

// Valid reports whether s is a known scope
func (s TokenScope) Valid() bool {
	return s == TokenScopeFull || s == TokenScopeRead
}

// TokenClaims are the verified claims of an API bearer token
type TokenClaims struct {
	Subject   string     `json:"sub"`
	Scope     TokenScope `json:"scope"`
	Issuer    string     `json:"iss"`
	IssuedAt  time.Time  `json:"iat"`
	ExpiresAt time.Time  `json:"exp"`
}

// CanWrite reports whether the token may mutate plans or conversations
func (c *TokenClaims) CanWrite() bool {
	return c != nil && c.Scope == TokenScopeFull
}
