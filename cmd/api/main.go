package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jordanw/callscope/internal/analytics"
	"github.com/jordanw/callscope/internal/api"
	"github.com/jordanw/callscope/internal/classify"
	"github.com/jordanw/callscope/internal/config"
	"github.com/jordanw/callscope/internal/logger"
	"github.com/jordanw/callscope/internal/pipeline"
	"github.com/jordanw/callscope/internal/remote"
	"github.com/jordanw/callscope/internal/store"
	"github.com/jordanw/callscope/internal/transcribe"
	"github.com/jordanw/callscope/internal/watch"
)

func main() {
	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("Failed to create directories: %v", err)
	}

	// Initialize logger
	logFile := cfg.Logging.File
	if logFile == "" && cfg.Paths.LogDir != "" {
		logFile = filepath.Join(cfg.Paths.LogDir, "callscope.log")
	}
	appLogger := logger.New(&logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		ServiceName: "callscope-api",
		File:        logFile,
	})
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Initialize record store
	st, err := store.New(&cfg.Storage)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize record store")
	}
	defer st.Close()

	// Initialize external service clients
	transcriber := transcribe.New(&transcribe.Config{
		APIKey:  cfg.Deepgram.APIKey,
		BaseURL: cfg.Deepgram.BaseURL,
		Model:   cfg.Deepgram.Model,
		Timeout: cfg.Processing.RequestTimeout,
	})
	classifier := classify.New(&classify.Config{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.Model,
		Timeout: cfg.Processing.RequestTimeout,
	})

	// Initialize processing pipeline
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipe := pipeline.New(&cfg.Processing, cfg.Paths.ProcessedDir, st, transcriber, classifier, appLogger)
	pipe.Start(ctx)

	// Watch the intake directory for new audio files
	watcher, err := watch.New(cfg.Paths.IntakeDir, pipe.Submit, func(ctx context.Context, filename string) bool {
		_, err := st.Get(ctx, filename)
		return err == nil
	}, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to create intake watcher")
	}
	watcher.Start(ctx)

	// Optional S3 sync
	var (
		manager   *remote.Manager
		scheduler *remote.Scheduler
	)
	if cfg.AWS.SyncEnabled {
		manager, err = remote.NewManager(&cfg.AWS, cfg.Paths.IntakeDir, cfg.Processing.LookbackDays, appLogger)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize S3 manager")
		}
		scheduler = remote.NewScheduler(manager, st, cfg.AWS.SyncInterval, appLogger)
		scheduler.Start(ctx)
		appLogger.WithFields(logger.Fields{
			"bucket":   cfg.AWS.Bucket,
			"interval": cfg.AWS.SyncInterval.String(),
		}).Info("S3 sync enabled")
	}

	// Setup router
	router := api.SetupRouter(api.Deps{
		Config:    cfg,
		Store:     st,
		Pipeline:  pipe,
		Engine:    analytics.New(st),
		Manager:   manager,
		Scheduler: scheduler,
		Logger:    appLogger,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}

	// Stop intake before draining the pipeline so no new jobs arrive.
	if scheduler != nil {
		scheduler.Stop()
	}
	if err := watcher.Close(); err != nil {
		appLogger.WithError(err).Warn("Failed to close intake watcher")
	}
	pipe.Stop()

	appLogger.Info("Server exited")
}
