package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/mlipovsky/lettermill/app/api"
	"github.com/mlipovsky/lettermill/app/cfg"
	"github.com/mlipovsky/lettermill/app/config"
	"github.com/mlipovsky/lettermill/app/database"
	"github.com/mlipovsky/lettermill/app/ingest"
	"github.com/mlipovsky/lettermill/app/llm"
	"github.com/mlipovsky/lettermill/app/mail"
	"github.com/mlipovsky/lettermill/app/metrics"
	"github.com/mlipovsky/lettermill/app/notify"
	"github.com/mlipovsky/lettermill/app/review"
	"github.com/mlipovsky/lettermill/app/rss"
	"github.com/mlipovsky/lettermill/app/tasks"
)

func main() {
	// .env is optional, real environment wins
	_ = godotenv.Load()

	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	setupLogger(appCfg.Debug)

	slog.Info("Starting Lettermill", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to connect to database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "schema_version", version, "dirty", dirty)

	// Repositories
	sourceRepo := database.NewSourceRepository(db)
	queueRepo := database.NewQueueRepository(db)
	runRepo := database.NewRunLogRepository(db)
	articleRepo := database.NewArticleRepository(db)
	topicRepo := database.NewTopicRepository(db)

	// Register configured sources and topics
	loader := config.NewLoader(appCfg.SourcesDir)
	registerSources(loader, sourceRepo)
	registerTopics(loader, topicRepo)

	// Core components
	searcher := mail.NewCLIClient(appCfg.MailCLIBin)
	coordinator := ingest.NewCoordinator(searcher, sourceRepo, queueRepo, runRepo)
	llmClient := llm.NewClient(appCfg.LLMEndpoint, appCfg.LLMModel, appCfg.LLMAPIKey)
	reviewService := review.NewService(queueRepo, articleRepo, topicRepo, llmClient)
	poller := rss.NewPoller(&http.Client{Timeout: 60 * time.Second}, sourceRepo, queueRepo, appCfg.UserAgent)
	recorder := metrics.NewRecorder()

	var notifier tasks.RunNotifier
	if tg, err := notify.NewTelegramNotifier(appCfg.TelegramToken, appCfg.TelegramChatID); err == nil {
		notifier = tg
		slog.Info("Telegram notifications enabled", "chat_id", appCfg.TelegramChatID)
	} else {
		slog.Debug("Telegram notifications disabled", "reason", err)
	}

	// Background scheduler
	slog.Info("Starting background scheduler", "workers", appCfg.WorkerCount)
	scheduler := tasks.NewScheduler(coordinator, poller, sourceRepo, recorder, notifier)
	scheduler.Start()
	defer scheduler.Stop()

	// HTTP server
	handler := api.NewHandler(sourceRepo, queueRepo, runRepo, articleRepo, topicRepo,
		reviewService, coordinator, llmClient, recorder, notifier, recorder, recorder,
		scheduler, appCfg.Version)
	limiter := api.NewRateLimiter(appCfg.RateLimitRPS, appCfg.RateLimitBurst)
	server := api.NewServer(handler, limiter, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port,
			"api_enabled", appCfg.APIAccessKey != "")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Scheduler is stopped via defer
	slog.Info("Shutdown complete")
}

func registerSources(loader *config.Loader, sourceRepo database.SourceRepository) {
	sources, err := loader.LoadSources()
	if err != nil {
		slog.Error("Failed to load source configurations", "error", err)
		os.Exit(1)
	}

	registered := 0
	for _, source := range sources {
		id, err := sourceRepo.UpsertSource(source.Name, source.Email, source.FeedURL,
			source.IsEnabled(), source.Settings.PollInterval)
		if err != nil {
			slog.Warn("Failed to register source", "source", source.Name, "error", err)
			continue
		}
		slog.Debug("Registered source", "source", source.Name, "email", source.Email, "id", id)
		registered++
	}

	slog.Info("Sources registered", "count", registered, "configured", len(sources))
}

func registerTopics(loader *config.Loader, topicRepo database.TopicRepository) {
	topics, err := loader.LoadTopics()
	if err != nil {
		slog.Error("Failed to load focus topics", "error", err)
		os.Exit(1)
	}

	for _, topic := range topics {
		if _, err := topicRepo.UpsertTopic(topic.Slug, topic.Name, topic.Description); err != nil {
			slog.Warn("Failed to register topic", "slug", topic.Slug, "error", err)
		}
	}

	slog.Info("Focus topics registered", "count", len(topics))
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if os.Getenv("LOG_FORMAT") == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.DateTime,
		})
	}

	slog.SetDefault(slog.New(handler))
}
