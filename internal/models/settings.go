package models

import "time"

// CorsSettings controls which web front-ends may call the API
type CorsSettings struct {
	AllowedOrigins   []string  `json:"allowed_origins" yaml:"allowed_origins"`
	AllowCredentials bool      `json:"allow_credentials" yaml:"allow_credentials"`
	MaxAge           int       `json:"max_age" yaml:"max_age"`
	UpdatedAt        time.Time `json:"updated_at" yaml:"updated_at"`
}

// ChatRateLimitSettings throttles conversation turns. Rate uses the
// limiter's formatted form, e.g. "10-M".
type ChatRateLimitSettings struct {
	Rate      string    `json:"rate" yaml:"rate"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}
