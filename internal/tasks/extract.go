// Package tasks scans processed content for candidate action items. This is
// a lexical heuristic with a fixed marker table; it makes no recall or
// precision guarantees and feeds only the persistence sink, never the
// file-based output.
package tasks

import (
	"sort"
	"strings"
	"time"
)

// Task is one candidate action item found in processed content.
type Task struct {
	// Text is the source line, trimmed of markdown list prefixes.
	Text string `json:"text"`
	// Marker is the lexical rule that matched.
	Marker string `json:"marker"`
	// Source names the topic (or "summary") the line came from.
	Source string `json:"source"`
	// ExtractedAt is when the scan ran.
	ExtractedAt time.Time `json:"extracted_at"`
}

// markers is the rule table: a line containing any of these (case
// insensitive) is treated as a candidate task.
var markers = []string{
	"todo",
	"to-do",
	"action item",
	"need to",
	"needs to",
	"should",
	"must",
	"remember to",
	"don't forget",
	"do not forget",
	"deadline",
	"due by",
	"follow up",
	"follow-up",
}

// Markers returns the active rule table, for documentation surfaces.
func Markers() []string {
	out := make([]string, len(markers))
	copy(out, markers)
	return out
}

// Extract scans named content blocks line by line and returns candidate
// tasks in source order. Headings and empty lines are skipped.
func Extract(blocks map[string]string, now time.Time) []Task {
	names := make([]string, 0, len(blocks))
	for name := range blocks {
		names = append(names, name)
	}
	// Map order is random; keep output deterministic.
	sort.Strings(names)

	var out []Task
	for _, name := range names {
		for _, line := range strings.Split(blocks[name], "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "#") {
				continue
			}
			marker := matchMarker(trimmed)
			if marker == "" {
				continue
			}
			out = append(out, Task{
				Text:        stripListPrefix(trimmed),
				Marker:      marker,
				Source:      name,
				ExtractedAt: now,
			})
		}
	}
	return out
}

func matchMarker(line string) string {
	lowered := strings.ToLower(line)
	for _, marker := range markers {
		if strings.Contains(lowered, marker) {
			return marker
		}
	}
	return ""
}

func stripListPrefix(line string) string {
	for _, prefix := range []string{"- [ ] ", "- [x] ", "- ", "* ", "+ "} {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix))
		}
	}
	return line
}
