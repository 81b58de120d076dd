package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/autoguardian/negotiator/internal/api"
	"github.com/autoguardian/negotiator/internal/config"
	"github.com/autoguardian/negotiator/internal/events"
	"github.com/autoguardian/negotiator/internal/llm"
	"github.com/autoguardian/negotiator/internal/negotiation"
	"github.com/autoguardian/negotiator/internal/store"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("negotiator starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database connected")

	// Gemini client (optional — without it every turn runs on the
	// deterministic fallbacks)
	var gen negotiation.Generator
	if cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			slog.Error("failed to create gemini client", "error", err)
			os.Exit(1)
		}
		defer gemini.Close()
		gen = gemini
		slog.Info("gemini client ready", "model", cfg.GeminiModel)
	} else {
		slog.Warn("GEMINI_API_KEY not set — running on fallback responses only")
	}

	// NATS publisher (optional — the marketplace just won't hear about
	// lifecycle transitions)
	var publisher negotiation.Publisher
	if cfg.NatsURL != "" {
		pub, err := events.NewPublisher(cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer pub.Close()
		publisher = pub
		slog.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		slog.Warn("NATS_URL not set — lifecycle events disabled")
	}

	engine := negotiation.NewEngine(db, gen, publisher, slog.Default(),
		time.Duration(cfg.LLMTimeoutSecs)*time.Second)

	srv := api.NewServer(cfg.Port, cfg.APIToken, engine, db, db)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("negotiator ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("negotiator stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
