package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"nexus/internal/amqp"
	"nexus/internal/config"
	applog "nexus/internal/log"
	"nexus/internal/narration"
	"nexus/internal/storage"
	"nexus/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	decimal.MarshalJSONWithoutQuotes = true

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	logger.Info("Starting nexus-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	// The worker exists to replace static narration with model text; without
	// an API key there is nothing for it to do.
	if !cfg.NarrationEnabled() {
		logger.Error("No API key configured, backfill worker cannot run")
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("No AMQP URL configured, backfill worker cannot run")
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	narrator, err := narration.NewGeminiNarrator(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel, logger)
	if err != nil {
		logger.Error("Failed to initialize Gemini narrator", applog.FieldError, err)
		os.Exit(1)
	}

	backfill := worker.NewBackfillWorker(repo, narrator, cfg.BackfillBatchSize, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Catch up on runs recorded while the worker was down.
	if err := backfill.ProcessPendingNarrations(ctx); err != nil {
		logger.Error("Startup backfill sweep failed", applog.FieldError, err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.ConsumeAllocationRecorded(ctx, func(msg *amqp.AllocationRecordedMessage) error {
			return backfill.HandleAllocationRecorded(ctx, msg)
		})
	})

	// Periodic sweep catches messages that were lost or nacked to death.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.BackfillInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := backfill.ProcessPendingNarrations(ctx); err != nil {
					logger.Error("Periodic backfill sweep failed", applog.FieldError, err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}

	logger.Info("Worker shutdown complete")
}
