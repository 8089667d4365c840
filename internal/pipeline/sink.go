package pipeline

import (
	"context"
	"time"

	"ramble/internal/persistence"
	"ramble/internal/session"
	"ramble/internal/tasks"
)

// SQLiteSink adapts the persistence store to the Persister boundary. It runs
// task extraction over the final topic contents just before the write; the
// summary is the same content joined, so scanning it again would only
// duplicate matches.
type SQLiteSink struct {
	store                *persistence.Store
	transcriptionService string
	llmService           string

	now func() time.Time
}

func NewSQLiteSink(store *persistence.Store, transcriptionService, llmService string) *SQLiteSink {
	return &SQLiteSink{
		store:                store,
		transcriptionService: transcriptionService,
		llmService:           llmService,
		now:                  time.Now,
	}
}

func (s *SQLiteSink) Persist(ctx context.Context, sess *session.Session) error {
	blocks := make(map[string]string, len(sess.Topics))
	for _, topic := range sess.Topics {
		blocks[topic.Slug] = topic.Content
	}
	taskList := tasks.Extract(blocks, s.now())

	metadata := map[string]any{
		"session_title":         sess.Title,
		"duration_seconds":      0.0,
		"original_size_mb":      sess.OriginalSizeMB,
		"compressed_size_mb":    sess.CompressedSizeMB,
		"transcription_service": s.transcriptionService,
		"llm_service":           s.llmService,
	}
	if sess.Transcript != nil {
		metadata["duration_seconds"] = sess.Transcript.DurationSeconds
	}
	if sess.OverrideDate != nil {
		metadata["override_date"] = sess.OverrideDate.Format("2006-01-02")
	}

	_, err := s.store.Save(ctx, sess, taskList, metadata)
	return err
}
