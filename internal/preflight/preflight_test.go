package preflight

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"ramble/internal/config"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("Audio root", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got %+v", result)
	}

	result = CheckDirectoryAccess("Audio root", filepath.Join(dir, "missing"))
	if result.Passed {
		t.Fatal("expected failure for missing directory")
	}

	file := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	result = CheckDirectoryAccess("Audio root", file)
	if result.Passed {
		t.Fatal("expected failure for non-directory")
	}
}

func TestCheckLLMFailsWithoutKey(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.APIKey = ""
	result := CheckLLM(context.Background(), &cfg)
	if result.Passed {
		t.Fatal("expected failure with missing key")
	}
	if result.Detail != "API key missing" {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckTranscriptionAgainstStub(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"transcripts": []any{}})
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Transcription.APIKey = "key"
	cfg.Transcription.BaseURL = server.URL
	result := CheckTranscription(context.Background(), &cfg)
	if !result.Passed {
		t.Fatalf("expected pass, got %+v", result)
	}

	cfg.Transcription.APIKey = "wrong"
	result = CheckTranscription(context.Background(), &cfg)
	if result.Passed {
		t.Fatal("expected failure for rejected credentials")
	}
}

func TestPassedIgnoresOptionalFailures(t *testing.T) {
	results := []Result{
		{Name: "a", Passed: true},
		{Name: "b", Passed: false, Optional: true},
	}
	if !Passed(results) {
		t.Fatal("optional failure should not block startup")
	}
	results = append(results, Result{Name: "c", Passed: false})
	if Passed(results) {
		t.Fatal("required failure must block startup")
	}
}
