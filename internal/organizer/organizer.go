// Package organizer is the output assembler: it turns a structured session
// into the final processed directory with compressed audio, raw transcript,
// one file per topic, and the metadata record.
package organizer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"ramble/internal/encoding"
	"ramble/internal/fileutil"
	"ramble/internal/logging"
	"ramble/internal/services"
	"ramble/internal/session"
	"ramble/internal/stage"
	"ramble/internal/storage"
	"ramble/internal/textutil"
)

// ServiceNames identifies the collaborators recorded in the metadata record.
type ServiceNames struct {
	Transcription string
	LLM           string
}

// Handler assembles the processed output directory. All writes for one
// session go into a staging directory first and are renamed into processed/
// in one step, so a partial failure never leaves a half-written directory
// that looks complete.
type Handler struct {
	store      storage.Store
	compressor *encoding.Compressor
	workDir    string
	names      ServiceNames
	logger     *slog.Logger

	now func() time.Time
}

func NewHandler(store storage.Store, compressor *encoding.Compressor, workDir string, names ServiceNames, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		store:      store,
		compressor: compressor,
		workDir:    workDir,
		names:      names,
		logger:     logger,
		now:        time.Now,
	}
}

func (h *Handler) Name() string { return "organizer" }

func (h *Handler) Target() session.Stage { return session.StageOrganized }

func (h *Handler) Prepare(ctx context.Context, sess *session.Session) error {
	if sess.Transcript == nil {
		return services.Wrap(services.ErrPermanent, h.Name(), "prepare", "no transcript on session", nil)
	}
	if len(sess.Topics) == 0 {
		return services.Wrap(services.ErrPermanent, h.Name(), "prepare", "no topics on session", nil)
	}
	return nil
}

func (h *Handler) Execute(ctx context.Context, sess *session.Session) error {
	scratch := filepath.Join(h.workDir, sess.ID+"-output")
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return services.Wrap(services.ErrTransient, h.Name(), "scratch", "create scratch dir", err)
	}
	defer os.RemoveAll(scratch)

	audioLocal := filepath.Join(scratch, "source", sess.SourceName)
	if err := h.store.Download(ctx, sess.AudioPath(), audioLocal); err != nil {
		return services.Wrap(services.ErrTransient, h.Name(), "download", sess.AudioPath(), err)
	}

	audio, err := h.compressor.Compress(ctx, audioLocal, scratch)
	if err != nil {
		return services.Wrap(services.ErrTransient, h.Name(), "compress", sess.SourceName, err)
	}
	sess.CompressedSizeMB, _ = fileutil.FileSizeMB(audio.Path)

	folderName := h.folderName(sess)
	staging := storage.ProcessedPath(".staging-" + sess.ID)
	final := storage.ProcessedPath(folderName)

	// Clean any staging leftovers from an earlier failed attempt.
	if err := h.store.Remove(ctx, staging); err != nil {
		return services.Wrap(services.ErrTransient, h.Name(), "staging", "clear staging dir", err)
	}

	if err := h.writeOutputs(ctx, sess, staging, audio); err != nil {
		_ = h.store.Remove(ctx, staging)
		return err
	}

	if err := h.store.Move(ctx, staging, final); err != nil {
		_ = h.store.Remove(ctx, staging)
		return services.Wrap(services.ErrTransient, h.Name(), "commit", final, err)
	}
	sess.OutputPath = final

	// The claim directory has served its purpose; removing it keeps crash
	// recovery from re-processing a session that already produced output.
	if err := h.store.Remove(ctx, sess.ProcessingDir()); err != nil {
		h.logger.Warn("could not remove processing directory",
			logging.String(logging.FieldSessionID, sess.ID),
			logging.Error(err))
	}

	h.logger.Info("output committed",
		logging.String(logging.FieldSessionID, sess.ID),
		logging.String("output", final),
		logging.Int("topics", len(sess.Topics)))
	return nil
}

func (h *Handler) writeOutputs(ctx context.Context, sess *session.Session, staging string, audio encoding.Result) error {
	if err := h.store.Upload(ctx, audio.Path, staging+"/"+audio.Name); err != nil {
		return services.Wrap(services.ErrTransient, h.Name(), "write", audio.Name, err)
	}

	if err := h.store.Write(ctx, staging+"/transcript_raw.md", []byte(renderTranscript(sess.Transcript))); err != nil {
		return services.Wrap(services.ErrTransient, h.Name(), "write", "transcript_raw.md", err)
	}

	topicSummaries := make([]topicMetadata, 0, len(sess.Topics))
	for _, topic := range sess.Topics {
		filename := topic.Slug + ".md"
		content := renderTopic(topic)
		if err := h.store.Write(ctx, staging+"/"+filename, []byte(content)); err != nil {
			return services.Wrap(services.ErrTransient, h.Name(), "write", filename, err)
		}
		topicSummaries = append(topicSummaries, topicMetadata{
			Filename:  filename,
			Title:     topic.Title,
			WordCount: textutil.WordCount(content),
		})
	}

	metadata, err := h.renderMetadata(sess, topicSummaries)
	if err != nil {
		return services.Wrap(services.ErrPermanent, h.Name(), "metadata", "encode metadata", err)
	}
	if err := h.store.Write(ctx, staging+"/metadata.json", metadata); err != nil {
		return services.Wrap(services.ErrTransient, h.Name(), "write", "metadata.json", err)
	}
	return nil
}

func (h *Handler) folderName(sess *session.Session) string {
	date := sess.EffectiveDate().Format("2006-01-02")
	clock := sess.CreatedAt.Format("15-04")
	slug := textutil.Slugify(sess.Title)
	return fmt.Sprintf("%s_%s_%s", date, clock, slug)
}

func renderTopic(topic session.Topic) string {
	return "# " + topic.Title + "\n\n" + topic.Content + "\n"
}

func renderTranscript(transcript *session.Transcript) string {
	var b []byte
	b = fmt.Appendf(b, "# Raw Transcript\n\n")
	b = fmt.Appendf(b, "**Duration:** %.1f seconds\n", transcript.DurationSeconds)
	language := transcript.Language
	if language == "" {
		language = "unknown"
	}
	b = fmt.Appendf(b, "**Language:** %s\n", language)
	b = fmt.Appendf(b, "**Confidence:** %.2f\n\n", transcript.Confidence)
	b = fmt.Appendf(b, "## Transcript Text\n\n%s\n", transcript.Text)

	if len(transcript.Words) > 0 {
		b = fmt.Appendf(b, "\n## Word-Level Timestamps\n\n")
		b = fmt.Appendf(b, "| Word | Start (ms) | End (ms) |\n")
		b = fmt.Appendf(b, "|------|------------|----------|\n")
		const limit = 50
		for i, word := range transcript.Words {
			if i >= limit {
				b = fmt.Appendf(b, "| ... | ... | ... |\n")
				break
			}
			b = fmt.Appendf(b, "| %s | %d | %d |\n", word.Text, word.StartMS, word.EndMS)
		}
	}
	return string(b)
}

type topicMetadata struct {
	Filename  string `json:"filename"`
	Title     string `json:"title"`
	WordCount int    `json:"word_count"`
}

type metadataRecord struct {
	ProcessingDate        string          `json:"processing_date"`
	OriginalFilename      string          `json:"original_filename"`
	SessionTitle          string          `json:"session_title"`
	OverrideDate          *string         `json:"override_date"`
	DurationSeconds       float64         `json:"duration_seconds"`
	OriginalSizeMB        float64         `json:"original_size_mb"`
	CompressedSizeMB      float64         `json:"compressed_size_mb"`
	TranscriptionService  string          `json:"transcription_service"`
	LLMService            string          `json:"llm_service"`
	Topics                []topicMetadata `json:"topics"`
	TotalWordCount        int             `json:"total_word_count"`
	ProcessingTimeSeconds float64         `json:"processing_time_seconds"`
}

func (h *Handler) renderMetadata(sess *session.Session, topics []topicMetadata) ([]byte, error) {
	record := metadataRecord{
		ProcessingDate:       h.now().Format(time.RFC3339),
		OriginalFilename:     sess.SourceName,
		SessionTitle:         sess.Title,
		DurationSeconds:      sess.Transcript.DurationSeconds,
		OriginalSizeMB:       roundMB(sess.OriginalSizeMB),
		CompressedSizeMB:     roundMB(sess.CompressedSizeMB),
		TranscriptionService: h.names.Transcription,
		LLMService:           h.names.LLM,
		Topics:               topics,
	}
	if sess.OverrideDate != nil {
		formatted := sess.OverrideDate.Format("2006-01-02")
		record.OverrideDate = &formatted
	}
	for _, topic := range topics {
		record.TotalWordCount += topic.WordCount
	}
	record.ProcessingTimeSeconds = h.now().Sub(sess.CreatedAt).Seconds()
	return json.MarshalIndent(record, "", "  ")
}

func roundMB(value float64) float64 {
	return float64(int(value*100+0.5)) / 100
}

func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if _, err := h.store.Stat(ctx, storage.ProcessedDir); err != nil {
		if err := h.store.EnsureDir(ctx, storage.ProcessedDir); err != nil {
			return stage.Unhealthy(h.Name(), err)
		}
	}
	return stage.Healthy(h.Name())
}
