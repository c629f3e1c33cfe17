package webhooks

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SettingsConfigSource reads tenant webhook configuration from the
// business_webhook_settings table. That table is owned and migrated by the
// main Surveypulse application; this service only ever reads it.
type SettingsConfigSource struct {
	db *pgxpool.Pool
}

// NewSettingsConfigSource creates a config source over the shared database.
func NewSettingsConfigSource(db *pgxpool.Pool) *SettingsConfigSource {
	return &SettingsConfigSource{db: db}
}

// GetWebhookConfig returns the tenant's webhook settings, or nil when the
// tenant has not enabled webhooks.
func (s *SettingsConfigSource) GetWebhookConfig(ctx context.Context, businessID string) (*Config, error) {
	query := `
		SELECT webhook_url, webhook_secret
		FROM business_webhook_settings
		WHERE business_id = $1
	`

	var cfg Config
	err := s.db.QueryRow(ctx, query, businessID).Scan(&cfg.URL, &cfg.Secret)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load webhook settings: %w", err)
	}
	return &cfg, nil
}
