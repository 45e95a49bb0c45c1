package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"nexus/internal/amqp"
	"nexus/internal/config"
	"nexus/internal/engine"
	apphttp "nexus/internal/http"
	applog "nexus/internal/log"
	"nexus/internal/narration"
	"nexus/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Amounts serialize as bare JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// AMQP is optional; without it runs are stored but never backfilled.
	var pub apphttp.Publisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, events disabled", applog.FieldError, err)
		} else {
			defer amqpClient.Close()
			pub = amqpClient
		}
	}

	narrator := selectNarrator(cfg, logger)
	eng := engine.New(engine.Strategy(cfg.AllocationStrategy))

	srv := apphttp.NewServer(cfg, eng, narrator, repo, pub, logger)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		cancel()
	}()

	logger.Info("Starting nexus server",
		"port", cfg.Port,
		applog.FieldStrategy, cfg.AllocationStrategy,
		applog.FieldNarrator, narrator.Name())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}

// selectNarrator returns the Gemini narrator when an API key is configured,
// otherwise the static fallback.
func selectNarrator(cfg *config.Config, logger *applog.Logger) narration.Narrator {
	if !cfg.NarrationEnabled() {
		logger.Info("No API key configured, using static narrator")
		return narration.NewStaticNarrator()
	}

	gemini, err := narration.NewGeminiNarrator(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel, logger)
	if err != nil {
		logger.Warn("Failed to initialize Gemini narrator, using static fallback", applog.FieldError, err)
		return narration.NewStaticNarrator()
	}
	logger.Info("Gemini narrator initialized", "model", cfg.GeminiModel)
	return gemini
}
