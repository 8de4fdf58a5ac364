package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/krelinga/video-generator/internal"
	"github.com/krelinga/video-generator/internal/metrics"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("component", "worker").Logger()

	if err := run(logger); err != nil {
		logger.Fatal().Err(err).Msg("worker error")
	}
}

func run(logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn().Err(err).Msg("failed to load .env")
	}
	cfg := internal.NewWorkerConfigFromEnv()

	reg := metrics.NewRegistry()
	handler, err := internal.NewHandler(ctx, cfg.Handler, reg, logger)
	if err != nil {
		return err
	}

	pool, err := internal.NewDBPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to create database pool: %w", err)
	}
	defer pool.Close()

	logger.Info().Msg("Running database migrations...")
	if err := internal.MigrateUp(ctx, pool, logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info().Msg("Migrations complete")

	workers := river.NewWorkers()
	river.AddWorker(workers, &GenerateWorker{
		Generator: handler,
		Logger:    logger,
	})
	river.AddWorker(workers, &WebhookWorker{Metrics: reg})

	// One generation at a time: the engine session is not shared.
	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 1},
		},
		Workers: workers,
	})
	if err != nil {
		return fmt.Errorf("failed to create river client: %w", err)
	}

	var metricsServer *http.Server
	if cfg.MetricsPort != 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", reg.Handler())
		metricsServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info().Int("port", cfg.MetricsPort).Msg("serving metrics")
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	if err := riverClient.Start(ctx); err != nil {
		return fmt.Errorf("failed to start river client: %w", err)
	}

	logger.Info().Msg("Worker started, waiting for jobs...")

	<-ctx.Done()
	logger.Info().Msg("Shutdown signal received, shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsServer != nil {
		metricsServer.Shutdown(shutdownCtx)
	}
	if err := riverClient.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("river client shutdown error: %w", err)
	}

	logger.Info().Msg("Worker shutdown complete")
	return nil
}
