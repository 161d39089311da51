package middleware

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	logpkg "github.com/benvon/soonish/internal/logger"
	"github.com/benvon/soonish/internal/models"
	"github.com/benvon/soonish/internal/request"
)

// TokenVerifier validates bearer tokens
type TokenVerifier interface {
	Verify(tokenString string) (*models.TokenClaims, error)
}

// Auth requires a valid bearer token on every request. Read-scoped tokens
// are limited to safe methods.
func Auth(verifier TokenVerifier, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Missing Authorization header", logger)
				return
			}

			scheme, tokenString, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(tokenString) == "" {
				respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Invalid Authorization header format", logger)
				return
			}

			claims, err := verifier.Verify(strings.TrimSpace(tokenString))
			if err != nil {
				logger.Debug("token_verification_failed",
					zap.String("error", logpkg.SanitizeError(err)),
					zap.String("path", logpkg.SanitizePath(r.URL.Path)),
				)
				respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Invalid or expired token", logger)
				return
			}

			if !isSafeMethod(r.Method) && !claims.CanWrite() {
				respondErrorJSON(w, r, http.StatusForbidden, "Forbidden", "Token is read-only", logger)
				return
			}

			next.ServeHTTP(w, r.WithContext(request.WithClaims(r.Context(), claims)))
		})
	}
}

func isSafeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}
