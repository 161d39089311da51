package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"

	"github.com/benvon/soonish/internal/models"
	"github.com/benvon/soonish/internal/request"
)

const (
	defaultChatRate   = "10-M"
	rateLimiterPrefix = "soonish_chat_limiter"
)

// RateLimitSettingsSource provides the stored chat rate limit, nil when unset
type RateLimitSettingsSource interface {
	GetChatRateLimit(ctx context.Context) (*models.ChatRateLimitSettings, error)
}

// NewLimiterStore returns a Redis-backed limiter store, or an in-process
// store when client is nil
func NewLimiterStore(client *redis.Client) (limiter.Store, error) {
	opts := limiter.StoreOptions{Prefix: rateLimiterPrefix, CleanUpInterval: time.Minute}
	if client == nil {
		return memorystore.NewStoreWithOptions(opts), nil
	}
	store, err := redisstore.NewStoreWithOptions(client, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis limiter store: %w", err)
	}
	return store, nil
}

// RateLimitReloader wraps ulule/limiter and reloads the rate from the
// settings store. Requests are keyed by token subject, falling back to the
// client IP.
type RateLimitReloader struct {
	next        http.Handler
	store       limiter.Store
	source      RateLimitSettingsSource
	defaultRate string
	log         *zap.Logger
	interval    time.Duration

	mu      sync.RWMutex
	current http.Handler
	rate    string
}

// NewRateLimitReloader creates a rate limit middleware over store
func NewRateLimitReloader(store limiter.Store, source RateLimitSettingsSource, defaultRate string, log *zap.Logger, reloadInterval time.Duration) *RateLimitReloader {
	if defaultRate == "" {
		defaultRate = defaultChatRate
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RateLimitReloader{
		store:       store,
		source:      source,
		defaultRate: defaultRate,
		log:         log,
		interval:    reloadInterval,
	}
}

// Middleware returns a middleware that wraps next with rate limiting and hot-reload.
func (r *RateLimitReloader) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		r.next = next
		r.Reload(context.Background())
		return r
	}
}

// Start runs the reload loop until ctx is cancelled. Call after Middleware() is applied.
func (r *RateLimitReloader) Start(ctx context.Context) {
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

// Reload rebuilds the limiter from the current settings. An unparseable
// stored rate keeps the default.
func (r *RateLimitReloader) Reload(ctx context.Context) {
	if r.next == nil {
		return
	}

	rateStr := r.defaultRate
	if r.source != nil {
		settings, err := r.source.GetChatRateLimit(ctx)
		if err != nil {
			r.log.Warn("failed_to_load_ratelimit_settings_using_default",
				zap.Error(err),
				zap.String("default_rate", r.defaultRate),
			)
		} else if settings != nil && settings.Rate != "" {
			rateStr = settings.Rate
		}
	}

	rate, err := limiter.NewRateFromFormatted(rateStr)
	if err != nil {
		r.log.Error("failed_to_parse_rate_limit_using_default",
			zap.Error(err),
			zap.String("rate_str", rateStr),
			zap.String("default_rate", r.defaultRate),
		)
		rateStr = r.defaultRate
		if rate, err = limiter.NewRateFromFormatted(rateStr); err != nil {
			r.log.Error("failed_to_parse_default_rate_limit", zap.Error(err))
			return
		}
	}

	instance := limiter.New(r.store, rate)
	mw := stdlibmw.NewMiddleware(instance,
		stdlibmw.WithKeyGetter(rateLimitKey),
		stdlibmw.WithLimitReachedHandler(limitReached),
	)
	h := mw.Handler(r.next)

	r.mu.Lock()
	changed := r.rate != rateStr
	r.current = h
	r.rate = rateStr
	r.mu.Unlock()

	if changed {
		r.log.Info("chat_rate_limit_loaded", zap.String("rate", rateStr))
	}
}

// Rate returns the formatted rate currently enforced
func (r *RateLimitReloader) Rate() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rate
}

// ServeHTTP implements http.Handler.
func (r *RateLimitReloader) ServeHTTP(w http.ResponseWriter, req *http.Request) {
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

func rateLimitKey(r *http.Request) string {
	if claims := request.ClaimsFromContext(r); claims != nil && claims.Subject != "" {
		return "sub:" + claims.Subject
	}
	return "ip:" + request.ClientIP(r)
}

func limitReached(w http.ResponseWriter, r *http.Request) {
	respondErrorJSON(w, r, http.StatusTooManyRequests, "Too Many Requests", "Chat rate limit exceeded, try again shortly", nil)
}
