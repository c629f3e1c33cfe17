package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/surveypulse/courier/internal/api"
	"github.com/surveypulse/courier/internal/config"
	"github.com/surveypulse/courier/internal/delivery"
	"github.com/surveypulse/courier/internal/logger"
	"github.com/surveypulse/courier/internal/observability"
	"github.com/surveypulse/courier/internal/webhooks"
	"github.com/surveypulse/courier/internal/worker"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		logger.NewLogger("main").Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	log := logger.NewLogger("main")

	// OpenTelemetry is opt-in; without a collector the exporters just log
	// noise on shutdown.
	if cfg.OTelEnabled {
		otelCfg := observability.DefaultConfig()
		otelCfg.OTLPEndpoint = cfg.OTLPEndpoint
		otelCfg.Environment = cfg.AppEnv

		shutdown, err := observability.Setup(ctx, otelCfg)
		if err != nil {
			log.Error("Failed to setup OpenTelemetry", "error", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error("Failed to shutdown OpenTelemetry", "error", err)
			}
		}()
	}

	// Database connection pool
	dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("Failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to database")

	// Wire the delivery pipeline: store, tenant settings, client, service,
	// worker.
	store := webhooks.NewRepository(dbPool)
	configs := webhooks.NewSettingsConfigSource(dbPool)
	client := delivery.NewClientWithTimeout(cfg.DeliveryTimeout)

	service := webhooks.NewService(store, configs, client)
	service.SetEnqueueDelay(cfg.EnqueueDelay)

	w := worker.New(store, client, worker.Config{
		PollInterval: cfg.PollInterval,
		FetchLimit:   cfg.FetchLimit,
		BatchSize:    cfg.BatchSize,
	})
	if err := w.Start(); err != nil {
		log.Error("Failed to start worker", "error", err)
		os.Exit(1)
	}

	// Admin API for the rest of the platform
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.NewServer(service, w).Handler(),
	}

	go func() {
		log.Info("HTTP server starting", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", "error", err)
	}

	// Stop waits for the in-flight cycle, so claimed jobs settle before the
	// pool closes.
	w.Stop()

	log.Info("Shutdown complete")
}
