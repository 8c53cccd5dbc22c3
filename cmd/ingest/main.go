package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jordanw/callscope/internal/classify"
	"github.com/jordanw/callscope/internal/config"
	"github.com/jordanw/callscope/internal/domain"
	"github.com/jordanw/callscope/internal/logger"
	"github.com/jordanw/callscope/internal/pipeline"
	"github.com/jordanw/callscope/internal/remote"
	"github.com/jordanw/callscope/internal/store"
	"github.com/jordanw/callscope/internal/transcribe"
)

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "text",
		ServiceName: "callscope-ingest",
	})
	logger.SetDefaultLogger(appLogger)

	// Parse command line flags
	dir := flag.String("dir", "", "Directory of audio files to process (defaults to the configured intake dir)")
	limit := flag.Int("limit", 0, "Maximum number of files to process, 0 for no limit")
	force := flag.Bool("force", false, "Re-process files that already have a record")
	syncFirst := flag.Bool("sync", false, "Pull new recordings from S3 before processing")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		appLogger.WithError(err).Fatal("Invalid config")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		appLogger.WithError(err).Fatal("Failed to create directories")
	}

	intakeDir := *dir
	if intakeDir == "" {
		intakeDir = cfg.Paths.IntakeDir
	}

	appLogger.WithFields(logger.Fields{
		"dir":   intakeDir,
		"limit": *limit,
		"force": *force,
	}).Info("Starting ingestion")

	// Initialize record store
	st, err := store.New(&cfg.Storage)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize record store")
	}
	defer st.Close()

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	// Optionally pull new recordings from S3 first
	if *syncFirst {
		if !cfg.AWS.SyncEnabled {
			appLogger.Fatal("S3 sync requested but not configured (set ENABLE_S3_SYNC and AWS credentials)")
		}
		manager, err := remote.NewManager(&cfg.AWS, intakeDir, cfg.Processing.LookbackDays, appLogger)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize S3 manager")
		}
		result, err := manager.Sync(ctx, st)
		if err != nil {
			appLogger.WithError(err).Fatal("S3 sync failed")
		}
		appLogger.WithFields(logger.Fields{
			"found":      result.Found,
			"downloaded": result.Downloaded,
			"skipped":    result.Skipped,
			"failed":     result.Failed,
		}).Info("S3 sync completed")
	}

	// Initialize external service clients and the pipeline
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
	pipe := pipeline.New(&cfg.Processing, cfg.Paths.ProcessedDir, st, transcriber, classifier, appLogger)
	pipe.Start(ctx)

	// Queue every unprocessed audio file in the directory
	entries, err := os.ReadDir(intakeDir)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to read intake directory")
	}

	queued, skipped := 0, 0
	for _, entry := range entries {
		if entry.IsDir() || !config.IsSupportedAudioFile(entry.Name()) {
			continue
		}
		if *limit > 0 && queued >= *limit {
			break
		}
		if !*force {
			if _, err := st.Get(ctx, entry.Name()); err == nil {
				skipped++
				continue
			}
		}
		if err := pipe.Submit(filepath.Join(intakeDir, entry.Name())); err != nil {
			appLogger.WithError(err).WithField("filename", entry.Name()).Error("Failed to queue file")
			continue
		}
		queued++
	}

	if queued == 0 {
		pipe.Stop()
		appLogger.WithField("skipped", skipped).Info("Nothing to process")
		return
	}

	appLogger.WithFields(logger.Fields{
		"queued":  queued,
		"skipped": skipped,
	}).Info("Files queued, waiting for completion")

	// Stop closes the queue and blocks until the workers drain it.
	pipe.Stop()

	completed, failed, err := tally(ctx, st)
	if err != nil {
		appLogger.WithError(err).Error("Failed to read final record counts")
		return
	}
	appLogger.WithFields(logger.Fields{
		"completed": completed,
		"failed":    failed,
	}).Info("Ingestion completed")
}

func tally(ctx context.Context, st store.Store) (completed, failed int, err error) {
	records, err := st.List(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, r := range records {
		switch r.Status {
		case domain.StatusCompleted:
			completed++
		case domain.StatusFailed:
			failed++
		}
	}
	return completed, failed, nil
}
