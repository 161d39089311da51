package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ulule/limiter/v3"

	"github.com/benvon/soonish/internal/models"
)

const (
	corsSettingKey          = "cors"
	chatRateLimitSettingKey = "chat_rate_limit"
)

// SettingsRepository stores runtime-tunable server settings as JSON values
type SettingsRepository struct {
	db *DB
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetCORS returns the stored CORS settings, or nil when none are stored
func (r *SettingsRepository) GetCORS(ctx context.Context) (*models.CorsSettings, error) {
	var s models.CorsSettings
	found, err := r.get(ctx, corsSettingKey, &s)
	if err != nil || !found {
		return nil, err
	}
	return &s, nil
}

// SetCORS upserts the CORS settings
func (r *SettingsRepository) SetCORS(ctx context.Context, s *models.CorsSettings) error {
	origins := AllowedOriginsSlice(strings.Join(s.AllowedOrigins, ","))
	if len(origins) == 0 {
		return fmt.Errorf("allowed_origins cannot be empty")
	}
	if s.MaxAge < 0 {
		return fmt.Errorf("max_age cannot be negative")
	}
	stored := *s
	stored.AllowedOrigins = origins
	stored.UpdatedAt = time.Now().UTC()
	return r.set(ctx, corsSettingKey, stored)
}

// GetChatRateLimit returns the stored chat rate limit, or nil when none is stored
func (r *SettingsRepository) GetChatRateLimit(ctx context.Context) (*models.ChatRateLimitSettings, error) {
	var s models.ChatRateLimitSettings
	found, err := r.get(ctx, chatRateLimitSettingKey, &s)
	if err != nil || !found {
		return nil, err
	}
	return &s, nil
}

// SetChatRateLimit upserts the chat rate limit after checking its format
func (r *SettingsRepository) SetChatRateLimit(ctx context.Context, s *models.ChatRateLimitSettings) error {
	rate := strings.TrimSpace(s.Rate)
	if rate == "" {
		return fmt.Errorf("rate cannot be empty")
	}
	if _, err := limiter.NewRateFromFormatted(rate); err != nil {
		return fmt.Errorf("invalid rate %q: %w", rate, err)
	}
	return r.set(ctx, chatRateLimitSettingKey, models.ChatRateLimitSettings{Rate: rate, UpdatedAt: time.Now().UTC()})
}

func (r *SettingsRepository) get(ctx context.Context, key string, dest any) (bool, error) {
	var raw []byte
	err := r.db.GetContext(ctx, &raw, `SELECT value FROM server_settings WHERE setting_key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s settings: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("failed to decode %s settings: %w", key, err)
	}
	return true, nil
}

func (r *SettingsRepository) set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s settings: %w", key, err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO server_settings (setting_key, value, created_at, updated_at)
		VALUES ($1, $2, now(), now())
		ON CONFLICT (setting_key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
	`, key, string(raw))
	if err != nil {
		return fmt.Errorf("failed to set %s settings: %w", key, err)
	}
	return nil
}

// AllowedOriginsSlice splits a comma-separated origin list, trimming and
// de-duplicating entries
func AllowedOriginsSlice(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, p := range strings.Split(raw, ",") {
		s := strings.TrimSpace(p)
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
