package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/ulule/limiter/v3"
)

// Config holds application configuration
type Config struct {
	DatabaseURL             string
	ServerPort              string
	FrontendURL             string
	EnableHSTS              bool
	OpenAIKey               string
	AIProvider              string
	AIModel                 string
	AIBaseURL               string
	RedisURL                string
	RabbitMQURL             string
	RabbitMQPrefetch        int
	APITokenSecret          string
	ChatRateLimit           string
	BoardRefreshDebounce    time.Duration
	ConversationIdleTimeout time.Duration
	DLQRetention            time.Duration
	Timezone                string
	Location                *time.Location
	WorkerDebugMode         bool
	ServerDebugMode         bool
	MetricsEnabled          bool
	OTELEnabled             bool
	OTELEndpoint            string
}

// ErrDatabaseURLRequired is returned by Load when DATABASE_URL is unset
var ErrDatabaseURLRequired = errors.New("DATABASE_URL is required")

// Load reads configuration for the server and worker, which need a database
func Load() (*Config, error) {
	cfg, err := LoadEnv()
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, ErrDatabaseURLRequired
	}
	return cfg, nil
}

// LoadEnv reads configuration without requiring a database. A .env file in
// the working directory is loaded first when present; real environment
// variables take precedence over it.
func LoadEnv() (*Config, error) {
	_ = godotenv.Load()
	return loadFrom(os.Getenv)
}

func loadFrom(lookup func(string) string) (*Config, error) {
	e := env(lookup)
	cfg := &Config{
		DatabaseURL:             e.get("DATABASE_URL", ""),
		ServerPort:              e.get("SERVER_PORT", "8080"),
		FrontendURL:             e.get("FRONTEND_URL", "http://localhost:3000"),
		EnableHSTS:              e.getBool("ENABLE_HSTS", false),
		OpenAIKey:               e.get("OPENAI_API_KEY", ""),
		AIProvider:              e.get("AI_PROVIDER", "openai"),
		AIModel:                 e.get("AI_MODEL", ""),
		AIBaseURL:               e.get("AI_BASE_URL", ""),
		RedisURL:                e.get("REDIS_URL", ""),
		RabbitMQURL:             e.get("RABBITMQ_URL", ""),
		RabbitMQPrefetch:        e.getInt("RABBITMQ_PREFETCH", 1),
		APITokenSecret:          e.get("API_TOKEN_SECRET", ""),
		ChatRateLimit:           e.get("CHAT_RATE_LIMIT", "10-M"),
		BoardRefreshDebounce:    e.getDuration("BOARD_REFRESH_DEBOUNCE", 3*time.Second),
		ConversationIdleTimeout: e.getDuration("CONVERSATION_IDLE_TIMEOUT", 30*time.Minute),
		DLQRetention:            e.getDuration("DLQ_RETENTION", 24*time.Hour),
		Timezone:                e.get("TIMEZONE", "Local"),
		WorkerDebugMode:         e.getBool("WORKER_DEBUG_MODE", false),
		ServerDebugMode:         e.getBool("SERVER_DEBUG_MODE", false),
		MetricsEnabled:          e.getBool("METRICS_ENABLED", true),
		OTELEnabled:             e.getBool("OTEL_ENABLED", false),
		OTELEndpoint:            e.get("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	if _, err := limiter.NewRateFromFormatted(cfg.ChatRateLimit); err != nil {
		return nil, fmt.Errorf("invalid CHAT_RATE_LIMIT %q: %w", cfg.ChatRateLimit, err)
	}
	if cfg.RabbitMQPrefetch < 1 {
		return nil, fmt.Errorf("RABBITMQ_PREFETCH must be at least 1, got %d", cfg.RabbitMQPrefetch)
	}
	if cfg.OTELEnabled && cfg.OTELEndpoint == "" {
		return nil, fmt.Errorf("OTEL_EXPORTER_OTLP_ENDPOINT is required when OTEL_ENABLED is set")
	}

	return cfg, nil
}

// Now returns the current instant in the configured timezone
func (c *Config) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// AuthEnabled reports whether API bearer tokens are enforced
func (c *Config) AuthEnabled() bool {
	return c.APITokenSecret != ""
}

type env func(string) string

func (e env) get(key, defaultValue string) string {
	if value := e(key); value != "" {
		return value
	}
	return defaultValue
}

func (e env) getBool(key string, defaultValue bool) bool {
	if value := e(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func (e env) getInt(key string, defaultValue int) int {
	if value := e(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func (e env) getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := e(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
