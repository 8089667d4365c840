package main

import (
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"ramble/internal/config"
	"ramble/internal/encoding"
	"ramble/internal/enhancer"
	"ramble/internal/logging"
	"ramble/internal/notifications"
	"ramble/internal/organizer"
	"ramble/internal/persistence"
	"ramble/internal/pipeline"
	"ramble/internal/services/assemblyai"
	"ramble/internal/services/llm"
	"ramble/internal/session"
	"ramble/internal/stage"
	"ramble/internal/storage"
	"ramble/internal/transcriber"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "process <audio-file>",
		Short: "Process a single recording without the daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			source, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve audio file: %w", err)
			}
			name := filepath.Base(source)
			if !storage.IsAudioFile(name) {
				return fmt.Errorf("%s is not a supported audio file", name)
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			store := storage.NewLocal(cfg.Storage.RootDir)
			runCtx := cmd.Context()

			inboxPath := path.Join(storage.InboxDir, name)
			if err := store.Upload(runCtx, source, inboxPath); err != nil {
				return fmt.Errorf("stage audio file: %w", err)
			}
			entry, err := store.Stat(runCtx, inboxPath)
			if err != nil {
				return fmt.Errorf("stat staged file: %w", err)
			}

			var db *persistence.Store
			if cfg.Persistence.Enabled {
				db, err = persistence.Open(cfg.Persistence.DBPath)
				if err != nil {
					return fmt.Errorf("open session database: %w", err)
				}
				defer db.Close()
			}

			runner := newOneShotRunner(cfg, store, db, logger)
			tracker := session.NewTracker(store, logger)

			sess, err := tracker.Begin(runCtx, entry)
			if err != nil {
				return fmt.Errorf("claim file: %w", err)
			}
			if err := runner.Process(runCtx, sess); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if sess.Stage == session.StageFailed {
				return fmt.Errorf("processing failed: %s (see %s)", sess.LastError, storage.FailedPath(sess.ID))
			}
			fmt.Fprintf(out, "Processed %s\n", name)
			fmt.Fprintf(out, "  Title:  %s\n", sess.Title)
			fmt.Fprintf(out, "  Topics: %d\n", len(sess.Topics))
			fmt.Fprintf(out, "  Output: %s\n", sess.OutputPath)
			return nil
		},
	}
}

// newOneShotRunner mirrors the daemon's pipeline wiring for a single file.
func newOneShotRunner(cfg *config.Config, store storage.Store, db *persistence.Store, logger *slog.Logger) *pipeline.Runner {
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

	var sink pipeline.Persister
	if db != nil {
		sink = pipeline.NewSQLiteSink(db, cfg.Transcription.Service, cfg.LLM.Model)
	}

	return pipeline.NewRunner(pipeline.Options{
		Store: store,
		Handlers: []stage.Handler{
			transcriber.NewHandler(store, transcription, cfg.Storage.WorkDir, cfg.Processing.MaxFileSizeMB, logger),
			enhancer.NewHandler(structuring, logger),
			organizer.NewHandler(store, compressor, cfg.Storage.WorkDir, organizer.ServiceNames{
				Transcription: cfg.Transcription.Service,
				LLM:           cfg.LLM.Model,
			}, logger),
		},
		Persister:   sink,
		Notifier:    notifications.NewService(cfg),
		MaxAttempts: cfg.Processing.MaxRetries,
		BackoffBase: time.Duration(cfg.Processing.RetryBackoffSeconds) * time.Second,
		Logger:      logger,
	})
}
