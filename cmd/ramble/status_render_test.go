package main

import (
	"strings"
	"testing"

	"ramble/internal/persistence"
)

func TestRenderStatusLine(t *testing.T) {
	line := renderStatusLine("Transcription API", statusOK, "API reachable", false)
	if !strings.Contains(line, "[OK] API reachable") {
		t.Fatalf("line = %q", line)
	}
	if strings.Contains(line, ansiGreen) {
		t.Fatalf("uncolorized line should carry no escape codes: %q", line)
	}

	colored := renderStatusLine("LLM API", statusError, "API key missing", true)
	if !strings.HasPrefix(colored, ansiRed) || !strings.HasSuffix(colored, ansiReset) {
		t.Fatalf("colored line = %q", colored)
	}
}

func TestTitleFromRecord(t *testing.T) {
	record := persistence.Record{Summary: "# Weekly Planning\n\n## Budget\n\ncontent"}
	if got := titleFromRecord(record); got != "Weekly Planning" {
		t.Fatalf("title = %q, want %q", got, "Weekly Planning")
	}
	if got := titleFromRecord(persistence.Record{}); got != "" {
		t.Fatalf("empty summary title = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 40); got != "short" {
		t.Fatalf("truncate short = %q", got)
	}
	long := strings.Repeat("a", 50)
	got := truncate(long, 10)
	if got != strings.Repeat("a", 7)+"..." {
		t.Fatalf("truncate long = %q", got)
	}
}

func TestRenderTableAlignsColumns(t *testing.T) {
	out := renderTable(
		[]string{"ID", "Title"},
		[][]string{{"1", "First"}, {"2", "Second"}},
		0)
	if !strings.Contains(out, "ID") || !strings.Contains(out, "Second") {
		t.Fatalf("table output missing content:\n%s", out)
	}
}
