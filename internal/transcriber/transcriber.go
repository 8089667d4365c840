// Package transcriber is the pipeline stage that turns claimed audio into a
// transcript via the transcription collaborator.
package transcriber

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"ramble/internal/logging"
	"ramble/internal/services"
	"ramble/internal/session"
	"ramble/internal/stage"
	"ramble/internal/storage"
)

// Service is the transcription collaborator boundary.
type Service interface {
	Transcribe(ctx context.Context, audioPath string) (*session.Transcript, error)
	HealthCheck(ctx context.Context) error
	Name() string
}

// Handler downloads the claimed audio into the scratch directory and submits
// it for transcription. Files over the configured size limit are rejected
// before any upload and never retried.
type Handler struct {
	store         storage.Store
	service       Service
	workDir       string
	maxFileSizeMB float64
	logger        *slog.Logger
}

func NewHandler(store storage.Store, service Service, workDir string, maxFileSizeMB int, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		store:         store,
		service:       service,
		workDir:       workDir,
		maxFileSizeMB: float64(maxFileSizeMB),
		logger:        logger,
	}
}

func (h *Handler) Name() string { return "transcriber" }

func (h *Handler) Target() session.Stage { return session.StageTranscribed }

func (h *Handler) Prepare(ctx context.Context, sess *session.Session) error {
	if !storage.IsAudioFile(sess.SourceName) {
		return services.Wrap(services.ErrPermanent, h.Name(), "prepare",
			fmt.Sprintf("unsupported file type %q", sess.SourceName), nil)
	}
	if h.maxFileSizeMB > 0 && sess.OriginalSizeMB > h.maxFileSizeMB {
		return services.Wrap(services.ErrPermanent, h.Name(), "prepare",
			fmt.Sprintf("file size %.1fMB exceeds limit %.0fMB", sess.OriginalSizeMB, h.maxFileSizeMB), nil)
	}
	return nil
}

func (h *Handler) Execute(ctx context.Context, sess *session.Session) error {
	localPath := filepath.Join(h.workDir, sess.ID, sess.SourceName)
	if err := h.store.Download(ctx, sess.AudioPath(), localPath); err != nil {
		return services.Wrap(services.ErrTransient, h.Name(), "download", sess.AudioPath(), err)
	}
	defer os.RemoveAll(filepath.Dir(localPath))

	transcript, err := h.service.Transcribe(ctx, localPath)
	if err != nil {
		return err
	}
	if strings.TrimSpace(transcript.Text) == "" {
		return services.Wrap(services.ErrPermanent, h.Name(), "transcribe",
			"transcript is empty, nothing to process", nil)
	}

	sess.Transcript = transcript
	h.logger.Info("transcription complete",
		logging.String(logging.FieldSessionID, sess.ID),
		logging.Float64("duration_seconds", transcript.DurationSeconds),
		logging.Int("words", len(transcript.Words)))
	return nil
}

func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if err := h.service.HealthCheck(ctx); err != nil {
		return stage.Unhealthy(h.Name(), err)
	}
	return stage.Healthy(h.Name())
}
