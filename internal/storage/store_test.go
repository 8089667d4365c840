package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ramble/internal/services"
)

func TestLocalListSortsByName(t *testing.T) {
	root := t.TempDir()
	store := NewLocal(root)
	ctx := context.Background()

	if err := store.Write(ctx, "inbox/b.m4a", []byte("b")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := store.Write(ctx, "inbox/a.m4a", []byte("a")); err != nil {
		t.Fatalf("write: %v", err)
	}

	entries, err := store.List(ctx, InboxDir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Name != "a.m4a" || entries[1].Name != "b.m4a" {
		t.Fatalf("unexpected order: %q %q", entries[0].Name, entries[1].Name)
	}
}

func TestLocalStatMissingIsNotFound(t *testing.T) {
	store := NewLocal(t.TempDir())
	_, err := store.Stat(context.Background(), "inbox/missing.m4a")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLocalMoveCreatesTargetDir(t *testing.T) {
	root := t.TempDir()
	store := NewLocal(root)
	ctx := context.Background()

	if err := store.Write(ctx, "inbox/memo.m4a", []byte("audio")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := store.Move(ctx, "inbox/memo.m4a", ProcessingPath("20240101-120000-abcd1234")+"/memo.m4a"); err != nil {
		t.Fatalf("move: %v", err)
	}

	moved := filepath.Join(root, "processing", "20240101-120000-abcd1234", "memo.m4a")
	if _, err := os.Stat(moved); err != nil {
		t.Fatalf("expected moved file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "inbox", "memo.m4a")); !os.IsNotExist(err) {
		t.Fatalf("source should be gone, got %v", err)
	}
}

func TestLocalUploadDownloadRoundTrip(t *testing.T) {
	store := NewLocal(t.TempDir())
	scratch := t.TempDir()
	ctx := context.Background()

	src := filepath.Join(scratch, "src.bin")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.Upload(ctx, src, "processing/x/src.bin"); err != nil {
		t.Fatalf("upload: %v", err)
	}

	dst := filepath.Join(scratch, "out", "src.bin")
	if err := store.Download(ctx, "processing/x/src.bin", dst); err != nil {
		t.Fatalf("download: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestIsAudioFile(t *testing.T) {
	cases := map[string]bool{
		"memo.m4a":     true,
		"memo.WAV":     true,
		"memo.opus":    true,
		"notes.txt":    false,
		"memo.m4a.tmp": false,
		".hidden":      false,
	}
	for name, want := range cases {
		if got := IsAudioFile(name); got != want {
			t.Errorf("IsAudioFile(%q) = %v, want %v", name, got, want)
		}
	}
}
