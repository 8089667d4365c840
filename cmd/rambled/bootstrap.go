package main

import (
	"log/slog"
	"time"

	"ramble/internal/config"
	"ramble/internal/encoding"
	"ramble/internal/enhancer"
	"ramble/internal/notifications"
	"ramble/internal/organizer"
	"ramble/internal/persistence"
	"ramble/internal/pipeline"
	"ramble/internal/services/assemblyai"
	"ramble/internal/services/llm"
	"ramble/internal/stage"
	"ramble/internal/storage"
	"ramble/internal/transcriber"
)

// buildHandlers assembles the ordered stage handlers for the pipeline.
func buildHandlers(cfg *config.Config, store storage.Store, logger *slog.Logger) []stage.Handler {
	transcription := assemblyai.NewClient(assemblyai.Config{
		APIKey:         cfg.Transcription.APIKey,
		BaseURL:        cfg.Transcription.BaseURL,
		Language:       cfg.Transcription.Language,
		TimeoutSeconds: cfg.Transcription.TimeoutSeconds,
		PollSeconds:    cfg.Transcription.PollSeconds,
	})

	structuring := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})

	compressor := encoding.NewCompressor(
		cfg.FFmpegBinary(),
		cfg.Processing.CompressAudio,
		cfg.Processing.CompressionQuality,
		logger,
	)

	return []stage.Handler{
		transcriber.NewHandler(store, transcription, cfg.Storage.WorkDir, cfg.Processing.MaxFileSizeMB, logger),
		enhancer.NewHandler(structuring, logger),
		organizer.NewHandler(store, compressor, cfg.Storage.WorkDir, organizer.ServiceNames{
			Transcription: cfg.Transcription.Service,
			LLM:           cfg.LLM.Model,
		}, logger),
	}
}

// buildRunner wires the stage handlers, retry policy, notifier, and the
// optional persistence sink into a pipeline runner.
func buildRunner(cfg *config.Config, store storage.Store, db *persistence.Store, notifier notifications.Service, logger *slog.Logger) *pipeline.Runner {
	var sink pipeline.Persister
	if db != nil {
		sink = pipeline.NewSQLiteSink(db, cfg.Transcription.Service, cfg.LLM.Model)
	}

	return pipeline.NewRunner(pipeline.Options{
		Store:       store,
		Handlers:    buildHandlers(cfg, store, logger),
		Persister:   sink,
		Notifier:    notifier,
		MaxAttempts: cfg.Processing.MaxRetries,
		BackoffBase: time.Duration(cfg.Processing.RetryBackoffSeconds) * time.Second,
		Logger:      logger,
	})
}
