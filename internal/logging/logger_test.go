package logging_test

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"

	"ramble/internal/logging"
	"ramble/internal/services"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewWritesToFile(t *testing.T) {
	path := t.TempDir() + "/ramble.log"
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	logger.Info("hello", logging.String("k", "v"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Fatalf("expected message in log output, got %q", data)
	}
}

func TestWithContextAddsSessionFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := services.WithSessionID(context.Background(), "20250609-101500-ab12cd34")
	ctx = services.WithStage(ctx, "transcribing")

	logging.WithContext(ctx, logger).Info("stage started")

	out := buf.String()
	if !strings.Contains(out, "20250609-101500-ab12cd34") {
		t.Fatalf("expected session id in output, got %q", out)
	}
	if !strings.Contains(out, "transcribing") {
		t.Fatalf("expected stage in output, got %q", out)
	}
}

func TestWithContextNilLogger(t *testing.T) {
	logger := logging.WithContext(context.Background(), nil)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
	logger.Info("does not panic")
}
