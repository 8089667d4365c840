package tasks

import (
	"testing"
	"time"
)

func TestExtractFindsMarkedLines(t *testing.T) {
	now := time.Date(2025, 6, 9, 12, 0, 0, 0, time.UTC)
	blocks := map[string]string{
		"bank-call": "# Bank Call\n\nRemember to call the bank tomorrow.\nThe branch closes at five.",
		"project-x": "- [ ] TODO: draft the project X proposal\nGeneral notes about the project.\nThe deadline is Friday.",
	}

	got := Extract(blocks, now)
	if len(got) != 3 {
		t.Fatalf("expected 3 tasks, got %d: %+v", len(got), got)
	}

	// Blocks are scanned in name order.
	if got[0].Source != "bank-call" || got[0].Marker != "remember to" {
		t.Errorf("unexpected first task %+v", got[0])
	}
	if got[1].Text != "TODO: draft the project X proposal" {
		t.Errorf("list prefix not stripped: %q", got[1].Text)
	}
	if got[2].Marker != "deadline" {
		t.Errorf("unexpected marker %q", got[2].Marker)
	}
	for _, task := range got {
		if !task.ExtractedAt.Equal(now) {
			t.Errorf("unexpected extraction time %v", task.ExtractedAt)
		}
	}
}

func TestExtractSkipsHeadingsAndPlainProse(t *testing.T) {
	blocks := map[string]string{
		"notes": "# Should Have Been Skipped\n\nJust some reflections on the week.\nNothing actionable here.",
	}
	if got := Extract(blocks, time.Now()); len(got) != 0 {
		t.Fatalf("expected no tasks, got %+v", got)
	}
}

func TestExtractIsCaseInsensitive(t *testing.T) {
	blocks := map[string]string{"x": "DON'T FORGET the keys."}
	got := Extract(blocks, time.Now())
	if len(got) != 1 || got[0].Marker != "don't forget" {
		t.Fatalf("expected case-insensitive match, got %+v", got)
	}
}
