package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/benvon/soonish/internal/database"
	"github.com/benvon/soonish/internal/models"
)

const defaultCORSMaxAge = 86400

// CORSSettingsSource provides the stored CORS settings, nil when unset
type CORSSettingsSource interface {
	GetCORS(ctx context.Context) (*models.CorsSettings, error)
}

// CORSReloader wraps rs/cors and reloads its options from the settings store
type CORSReloader struct {
	next     http.Handler
	source   CORSSettingsSource
	fallback string
	log      *zap.Logger
	interval time.Duration

	mu      sync.RWMutex
	current http.Handler
	origins []string
}

// NewCORSReloader creates a CORS middleware. frontendURLFallback (a comma
// separated origin list) is used while no settings are stored.
func NewCORSReloader(source CORSSettingsSource, frontendURLFallback string, log *zap.Logger, reloadInterval time.Duration) *CORSReloader {
	if log == nil {
		log = zap.NewNop()
	}
	return &CORSReloader{
		source:   source,
		fallback: strings.TrimSpace(frontendURLFallback),
		log:      log,
		interval: reloadInterval,
	}
}

// Middleware returns a middleware that wraps next with CORS and hot-reload.
func (r *CORSReloader) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		r.next = next
		r.Reload(context.Background())
		return r
	}
}

// Start runs the reload loop until ctx is cancelled. Call after Middleware() is applied.
func (r *CORSReloader) Start(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Reload(ctx)
		}
	}
}

// Reload rebuilds the CORS handler from the current settings
func (r *CORSReloader) Reload(ctx context.Context) {
	if r.next == nil {
		return
	}

	origins := database.AllowedOriginsSlice(r.fallback)
	allowCreds := true
	maxAge := defaultCORSMaxAge

	var settings *models.CorsSettings
	var err error
	if r.source != nil {
		settings, err = r.source.GetCORS(ctx)
	}
	switch {
	case err != nil:
		r.log.Warn("failed_to_load_cors_settings_using_fallback", zap.Error(err))
	case settings != nil:
		origins = database.AllowedOriginsSlice(strings.Join(settings.AllowedOrigins, ","))
		allowCreds = settings.AllowCredentials
		maxAge = settings.MaxAge
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: allowCreds,
		MaxAge:           maxAge,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
	})
	h := c.Handler(r.next)

	r.mu.Lock()
	r.current = h
	r.origins = origins
	r.mu.Unlock()
}

// Origins returns the origins currently allowed
func (r *CORSReloader) Origins() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.origins...)
}

// ServeHTTP implements http.Handler.
func (r *CORSReloader) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.RLock()
	h := r.current
	r.mu.RUnlock()
	if h != nil {
		h.ServeHTTP(w, req)
		return
	}
	if r.next != nil {
		r.next.ServeHTTP(w, req)
	}
}
