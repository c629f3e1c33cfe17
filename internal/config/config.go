package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
)

// Config holds the application configuration, loaded from the environment.
type Config struct {
	DatabaseURL string `env:"DATABASE_URL" envDefault:"postgres://localhost/courier?sslmode=disable"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"development"`

	PollInterval    time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"10s"`
	FetchLimit      int           `env:"WORKER_FETCH_LIMIT" envDefault:"10"`
	BatchSize       int           `env:"WORKER_BATCH_SIZE" envDefault:"5"`
	DeliveryTimeout time.Duration `env:"DELIVERY_TIMEOUT" envDefault:"10s"`
	EnqueueDelay    time.Duration `env:"ENQUEUE_DELAY" envDefault:"180s"`

	OTelEnabled  bool   `env:"OTEL_ENABLED" envDefault:"false"`
	OTLPEndpoint string `env:"OTLP_ENDPOINT" envDefault:"localhost:4318"`
}

// Load parses configuration from environment variables.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}
