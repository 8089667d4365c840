package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"ramble/internal/persistence"
	"ramble/internal/session"
)

func TestSQLiteSinkPersistsTasksAndMetadata(t *testing.T) {
	store, err := persistence.Open(filepath.Join(t.TempDir(), "ramble.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	sink := NewSQLiteSink(store, "assemblyai", "anthropic/claude-sonnet-4")
	sink.now = func() time.Time { return time.Date(2025, 6, 9, 15, 0, 0, 0, time.UTC) }

	sess := &session.Session{
		ID:         "20250609-143000-abcd1234",
		SourceName: "memo.m4a",
		Stage:      session.StageDone,
		CreatedAt:  time.Date(2025, 6, 9, 14, 30, 0, 0, time.UTC),
		Title:      "Bank Call",
		Summary:    "# Bank Call\n\nRemember to call the bank.",
		OutputPath: "processed/2025-06-09_14-30_bank-call",
		Transcript: &session.Transcript{Text: "remember to call the bank", DurationSeconds: 8},
		Topics: []session.Topic{
			{Slug: "bank-call", Title: "Bank Call", Content: "Remember to call the bank."},
		},
	}

	if err := sink.Persist(context.Background(), sess); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	records, err := store.Recent(context.Background(), 5)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].TaskCount != 1 {
		t.Fatalf("expected one extracted task, got %d", records[0].TaskCount)
	}
	if records[0].Status != "done" {
		t.Fatalf("unexpected status %q", records[0].Status)
	}
	if records[0].StoragePath != sess.OutputPath {
		t.Fatalf("unexpected storage path %q", records[0].StoragePath)
	}
}
