package organizer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ramble/internal/encoding"
	"ramble/internal/session"
	"ramble/internal/storage"
	"ramble/internal/textutil"
)

func newTestHandler(t *testing.T) (*Handler, *storage.Local) {
	t.Helper()
	store := storage.NewLocal(t.TempDir())
	compressor := encoding.NewCompressor("ffmpeg", false, "medium", nil)
	handler := NewHandler(store, compressor, t.TempDir(),
		ServiceNames{Transcription: "assemblyai", LLM: "anthropic/claude-sonnet-4"}, nil)
	handler.now = func() time.Time {
		return time.Date(2025, 6, 9, 14, 45, 0, 0, time.UTC)
	}
	return handler, store
}

func structuredSession(t *testing.T, store *storage.Local) *session.Session {
	t.Helper()
	sess := &session.Session{
		ID:             "20250609-143000-abcd1234",
		SourceName:     "memo.m4a",
		Stage:          session.StageEnhanced,
		CreatedAt:      time.Date(2025, 6, 9, 14, 30, 0, 0, time.Local),
		NominalDate:    time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC),
		OriginalSizeMB: 1.2,
		Title:          "Bank Call and Project X",
		Transcript: &session.Transcript{
			Text:            "remind myself to call the bank tomorrow and also notes on project X",
			DurationSeconds: 12.5,
			Language:        "en",
			Confidence:      0.93,
			Words: []session.Word{
				{Text: "remind", StartMS: 0, EndMS: 300},
				{Text: "myself", StartMS: 300, EndMS: 600},
			},
		},
		Topics: []session.Topic{
			{Slug: "follow-up-call-bank", Title: "Follow Up Call Bank", Content: "Call the bank tomorrow."},
			{Slug: "project-x-notes", Title: "Project X Notes", Content: "Notes on project X."},
		},
	}
	if err := store.Write(context.Background(), sess.AudioPath(), []byte("audio-bytes")); err != nil {
		t.Fatalf("seed audio: %v", err)
	}
	return sess
}

func TestExecuteWritesCompleteOutputDirectory(t *testing.T) {
	handler, store := newTestHandler(t)
	sess := structuredSession(t, store)
	ctx := context.Background()

	if err := handler.Execute(ctx, sess); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	wantDir := "processed/2025-06-09_14-30_bank-call-and-project-x"
	if sess.OutputPath != wantDir {
		t.Fatalf("unexpected output path %q", sess.OutputPath)
	}

	entries, err := store.List(ctx, wantDir)
	if err != nil {
		t.Fatalf("list output: %v", err)
	}
	names := make(map[string]bool, len(entries))
	for _, entry := range entries {
		names[entry.Name] = true
	}
	for _, want := range []string{"original.m4a", "transcript_raw.md", "follow-up-call-bank.md", "project-x-notes.md", "metadata.json"} {
		if !names[want] {
			t.Errorf("missing output file %s (have %v)", want, names)
		}
	}
	if len(entries) != 5 {
		t.Errorf("expected exactly 5 files, got %d", len(entries))
	}

	// The claim directory is cleaned up after commit.
	if _, err := store.Stat(ctx, sess.ProcessingDir()); err == nil {
		t.Error("processing directory should be removed after commit")
	}
	// No staging leftovers.
	if _, err := store.Stat(ctx, "processed/.staging-"+sess.ID); err == nil {
		t.Error("staging directory should not survive commit")
	}
}

func TestMetadataWordCountsMatchWrittenFiles(t *testing.T) {
	handler, store := newTestHandler(t)
	sess := structuredSession(t, store)
	ctx := context.Background()

	if err := handler.Execute(ctx, sess); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(store.Root(), filepath.FromSlash(sess.OutputPath), "metadata.json"))
	if err != nil {
		t.Fatalf("read metadata: %v", err)
	}
	var record metadataRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		t.Fatalf("decode metadata: %v", err)
	}

	if record.SessionTitle != "Bank Call and Project X" {
		t.Errorf("unexpected session title %q", record.SessionTitle)
	}
	if record.OverrideDate != nil {
		t.Errorf("expected null override date, got %v", *record.OverrideDate)
	}
	if record.TranscriptionService != "assemblyai" {
		t.Errorf("unexpected transcription service %q", record.TranscriptionService)
	}
	if len(record.Topics) != 2 {
		t.Fatalf("expected 2 topics in metadata, got %d", len(record.Topics))
	}
	for _, topic := range record.Topics {
		content, err := os.ReadFile(filepath.Join(store.Root(), filepath.FromSlash(sess.OutputPath), topic.Filename))
		if err != nil {
			t.Fatalf("read topic %s: %v", topic.Filename, err)
		}
		if got := textutil.WordCount(string(content)); got != topic.WordCount {
			t.Errorf("topic %s word count %d, metadata says %d", topic.Filename, got, topic.WordCount)
		}
	}
}

func TestExecuteUsesOverrideDateForFolderName(t *testing.T) {
	handler, store := newTestHandler(t)
	sess := structuredSession(t, store)
	override := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	sess.OverrideDate = &override

	if err := handler.Execute(context.Background(), sess); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.HasPrefix(sess.OutputPath, "processed/2025-06-02_14-30_") {
		t.Fatalf("folder should use override date, got %q", sess.OutputPath)
	}
}

func TestExecuteRetriesCleanlyAfterPartialFailure(t *testing.T) {
	handler, store := newTestHandler(t)
	sess := structuredSession(t, store)
	ctx := context.Background()

	// Simulate leftovers from a crashed earlier attempt.
	if err := store.Write(ctx, "processed/.staging-"+sess.ID+"/transcript_raw.md", []byte("stale")); err != nil {
		t.Fatalf("seed staging leftovers: %v", err)
	}

	if err := handler.Execute(ctx, sess); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	entries, err := store.List(ctx, sess.OutputPath)
	if err != nil {
		t.Fatalf("list output: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("expected clean rebuild with 5 files, got %d", len(entries))
	}
}

func TestPrepareRequiresTopics(t *testing.T) {
	handler, store := newTestHandler(t)
	sess := structuredSession(t, store)
	sess.Topics = nil
	if err := handler.Prepare(context.Background(), sess); err == nil {
		t.Fatal("expected error without topics")
	}
}

func TestRenderTranscriptCapsTimestampTable(t *testing.T) {
	transcript := &session.Transcript{Text: "long memo", DurationSeconds: 600}
	for i := 0; i < 60; i++ {
		transcript.Words = append(transcript.Words, session.Word{Text: "w", StartMS: int64(i), EndMS: int64(i + 1)})
	}
	rendered := renderTranscript(transcript)
	if !strings.Contains(rendered, "| ... | ... | ... |") {
		t.Error("expected truncation marker after 50 words")
	}
	if got := strings.Count(rendered, "| w |"); got != 50 {
		t.Errorf("expected 50 word rows, got %d", got)
	}
}
