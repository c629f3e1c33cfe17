package webhooks_test

import (
	"context"
	"testing"

	"github.com/surveypulse/courier/internal/testutil"
	"github.com/surveypulse/courier/internal/webhooks"
)

func TestSettingsConfigSource(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Postgres integration test in short mode")
	}
	pool := testutil.SetupTestDB(t)
	ctx := context.Background()

	// The settings table is owned by the main application; create the shape
	// this service reads.
	_, err := pool.Exec(ctx, `
		CREATE TABLE business_webhook_settings (
			business_id TEXT PRIMARY KEY,
			webhook_url TEXT NOT NULL,
			webhook_secret TEXT NOT NULL
		)
	`)
	if err != nil {
		t.Fatalf("create settings table: %v", err)
	}
	_, err = pool.Exec(ctx, `
		INSERT INTO business_webhook_settings (business_id, webhook_url, webhook_secret)
		VALUES ('biz_1', 'https://example.com/hook', 'whk_secret')
	`)
	if err != nil {
		t.Fatalf("seed settings: %v", err)
	}

	source := webhooks.NewSettingsConfigSource(pool)

	cfg, err := source.GetWebhookConfig(ctx, "biz_1")
	if err != nil {
		t.Fatalf("GetWebhookConfig: %v", err)
	}
	if cfg == nil || cfg.URL != "https://example.com/hook" || cfg.Secret != "whk_secret" {
		t.Errorf("unexpected config %+v", cfg)
	}

	cfg, err = source.GetWebhookConfig(ctx, "biz_unknown")
	if err != nil {
		t.Fatalf("GetWebhookConfig: %v", err)
	}
	if cfg != nil {
		t.Errorf("expected nil config for unconfigured business, got %+v", cfg)
	}
}
