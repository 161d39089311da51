package request

import (
	"context"
	"net/http"
	"strings"

	"github.com/benvon/soonish/internal/models"
)

type contextKey string

const claimsContextKey contextKey = "token_claims"

// ClaimsContextKey returns the context key used for token claims. Exposed for tests that inject non-claims values.
func ClaimsContextKey() contextKey { return claimsContextKey }

// ClientIP extracts the client IP from the request, respecting X-Forwarded-For and X-Real-IP.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return r.RemoteAddr
}

// WithClaims returns a context carrying verified token claims.
func WithClaims(ctx context.Context, claims *models.TokenClaims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// ClaimsFromContext returns the token claims of the request, or nil when auth is disabled.
func ClaimsFromContext(r *http.Request) *models.TokenClaims {
	c, _ := r.Context().Value(claimsContextKey).(*models.TokenClaims)
	return c
}

// Subject returns the token subject, or "anonymous" without claims.
func Subject(r *http.Request) string {
	if c := ClaimsFromContext(r); c != nil && c.Subject != "" {
		return c.Subject
	}
	return "anonymous"
}
