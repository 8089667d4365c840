// Package testsupport provides shared fixtures for package tests: configs
// seeded with per-test temp directories and a populated storage tree.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"ramble/internal/config"
	"ramble/internal/storage"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test
// and the storage layout already created.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Storage.RootDir = filepath.Join(base, "audio")
	cfg.Storage.WorkDir = filepath.Join(base, "work")
	cfg.Storage.LogDir = filepath.Join(base, "logs")
	cfg.Persistence.DBPath = filepath.Join(base, "ramble.db")
	cfg.Processing.StabilityWindowSecs = 1
	cfg.Processing.RetryBackoffSeconds = 1

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithAPIKeys sets both service credentials on the test config.
func WithAPIKeys(transcription, llm string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Transcription.APIKey = transcription
		cfg.LLM.APIKey = llm
	}
}

// WithPersistence enables the SQLite mirror on the test config.
func WithPersistence() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Persistence.Enabled = true
	}
}

// NewStore returns a local store over the config's root directory.
func NewStore(t testing.TB, cfg *config.Config) *storage.Local {
	t.Helper()
	return storage.NewLocal(cfg.Storage.RootDir)
}

// SeedInboxFile writes an audio fixture into the inbox with the given
// modification time and returns its store-relative path.
func SeedInboxFile(t testing.TB, cfg *config.Config, name string, modTime time.Time) string {
	t.Helper()

	target := filepath.Join(cfg.Storage.RootDir, storage.InboxDir, name)
	if err := os.WriteFile(target, []byte("fixture-audio-bytes"), 0o644); err != nil {
		t.Fatalf("write inbox fixture: %v", err)
	}
	if err := os.Chtimes(target, modTime, modTime); err != nil {
		t.Fatalf("set fixture mtime: %v", err)
	}
	return storage.InboxDir + "/" + name
}
