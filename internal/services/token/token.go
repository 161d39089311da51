// Package token issues and verifies the HS256 bearer tokens that guard the
// HTTP API.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/benvon/soonish/internal/models"
)

const (
	// DefaultIssuer is the iss claim written into and required from tokens
	DefaultIssuer = "soonish"
	// DefaultTTL is the lifetime of tokens issued without an explicit ttl
	DefaultTTL = 90 * 24 * time.Hour

	scopeClaim = "scope"
	// minSecretLength matches the HS256 key size
	minSecretLength = 32
)

var (
	// ErrSecretTooShort is returned for secrets shorter than 32 bytes
	ErrSecretTooShort = errors.New("token secret must be at least 32 bytes")
	// ErrInvalidScope is returned when issuing or verifying an unknown scope
	ErrInvalidScope = errors.New("invalid token scope")
)

// Service signs and verifies API tokens with a shared secret
type Service struct {
	key    []byte
	issuer string
	now    func() time.Time
}

// NewService creates a token service for secret
func NewService(secret string) (*Service, error) {
	if len(secret) < minSecretLength {
		return nil, ErrSecretTooShort
	}
	return &Service{key: []byte(secret), issuer: DefaultIssuer, now: time.Now}, nil
}

// SetClock replaces the time source used for iat/exp and validation
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Issue creates a signed token for subject with the given scope. A zero ttl
// uses DefaultTTL.
func (s *Service) Issue(subject string, scope models.TokenScope, ttl time.Duration) (string, error) {
	if !scope.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidScope, scope)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := s.now()

	tok, err := jwt.NewBuilder().
		Issuer(s.issuer).
		Subject(subject).
		IssuedAt(now).
		Expiration(now.Add(ttl)).
		Claim(scopeClaim, string(scope)).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build token: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, s.key))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return string(signed), nil
}

// Verify checks the signature, issuer and expiry of tokenString and returns
// its claims
func (s *Service) Verify(tokenString string) (*models.TokenClaims, error) {
	tok, err := jwt.Parse([]byte(tokenString),
		jwt.WithKey(jwa.HS256, s.key),
		jwt.WithValidate(true),
		jwt.WithIssuer(s.issuer),
		jwt.WithClock(jwt.ClockFunc(s.now)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse/verify token: %w", err)
	}

	claims := &models.TokenClaims{
		Subject:   tok.Subject(),
		Issuer:    tok.Issuer(),
		IssuedAt:  tok.IssuedAt(),
		ExpiresAt: tok.Expiration(),
	}
	if raw, ok := tok.Get(scopeClaim); ok {
		if scope, ok := raw.(string); ok {
			claims.Scope = models.TokenScope(scope)
		}
	}
	if !claims.Scope.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidScope, claims.Scope)
	}
	return claims, nil
}
