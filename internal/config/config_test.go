package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ramble/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
[storage]
root_dir = "`+t.TempDir()+`"

[transcription]
api_key = "test-key"

[llm]
api_key = "test-key"
model = "test/model"
`)

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.Processing.PollIntervalSeconds != 60 {
		t.Fatalf("poll interval default = %d, want 60", cfg.Processing.PollIntervalSeconds)
	}
	if cfg.Processing.MaxRetries != 3 {
		t.Fatalf("max retries default = %d, want 3", cfg.Processing.MaxRetries)
	}
	if cfg.Transcription.Service != "assemblyai" {
		t.Fatalf("transcription service = %q", cfg.Transcription.Service)
	}
}

func TestLoadResolvesEnvReferences(t *testing.T) {
	t.Setenv("RAMBLE_TEST_API_KEY", "resolved-secret")
	path := writeConfig(t, `
[storage]
root_dir = "`+t.TempDir()+`"

[transcription]
api_key = "${RAMBLE_TEST_API_KEY}"

[llm]
api_key = "literal-key"
model = "test/model"
`)

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	if cfg.Transcription.APIKey != "resolved-secret" {
		t.Fatalf("api key = %q, want resolved env value", cfg.Transcription.APIKey)
	}
	if cfg.LLM.APIKey != "literal-key" {
		t.Fatalf("literal api key altered: %q", cfg.LLM.APIKey)
	}
}

func TestLoadRejectsUnsetEnvReference(t *testing.T) {
	path := writeConfig(t, `
[storage]
root_dir = "`+t.TempDir()+`"

[transcription]
api_key = "${RAMBLE_TEST_DEFINITELY_UNSET}"

[llm]
api_key = "k"
model = "m"
`)

	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for unset environment reference")
	}
}

func TestLoadRejectsMissingCredentials(t *testing.T) {
	path := writeConfig(t, `
[storage]
root_dir = "`+t.TempDir()+`"
`)

	_, _, _, err := config.Load(path)
	if err == nil {
		t.Fatal("expected validation failure")
	}
	if !strings.Contains(err.Error(), "transcription.api_key") {
		t.Fatalf("expected transcription credential error, got %v", err)
	}
}

func TestValidateRejectsBadCompressionQuality(t *testing.T) {
	path := writeConfig(t, `
[storage]
root_dir = "`+t.TempDir()+`"

[transcription]
api_key = "k"

[llm]
api_key = "k"
model = "m"

[processing]
compress_audio = true
compression_quality = "extreme"
`)

	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for unknown compression quality")
	}
}

func TestEnsureDirectoriesCreatesLayout(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default()
	cfg.Storage.RootDir = filepath.Join(root, "store")
	cfg.Storage.WorkDir = filepath.Join(root, "work")
	cfg.Storage.LogDir = filepath.Join(root, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, sub := range []string{"inbox", "processing", "failed", "processed"} {
		if _, err := os.Stat(filepath.Join(cfg.Storage.RootDir, sub)); err != nil {
			t.Fatalf("expected %s directory: %v", sub, err)
		}
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[transcription]") {
		t.Fatal("sample config missing transcription section")
	}
}
