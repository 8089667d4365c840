// Package session holds the unit of work moving through the pipeline and the
// tracker that claims files and recovers in-flight work after a restart.
package session

import (
	"regexp"
	"time"

	"ramble/internal/storage"
)

// Word is one timestamp-aligned token of a transcript.
type Word struct {
	Text    string `json:"text"`
	StartMS int64  `json:"start_ms"`
	EndMS   int64  `json:"end_ms"`
}

// Transcript is the raw vendor output. Immutable once fetched; the organizer
// writes it verbatim next to the processed topics.
type Transcript struct {
	Text            string  `json:"text"`
	Words           []Word  `json:"words,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
	Language        string  `json:"language,omitempty"`
	Confidence      float64 `json:"confidence,omitempty"`
}

// Topic is one densified theme extracted from a transcript. Slug is bounded,
// hyphenated, and filesystem safe; Content is finished markdown.
type Topic struct {
	Slug    string `json:"slug"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Session tracks one file's journey from inbox to processed output.
type Session struct {
	ID         string
	SourceName string
	Stage      Stage
	CreatedAt  time.Time

	// NominalDate is the file's own date, taken from the filename when it
	// carries one, otherwise from the inbox modification time.
	NominalDate time.Time
	// OverrideDate is set only when the structuring step reports a spoken
	// date far enough from NominalDate to be a genuine correction.
	OverrideDate *time.Time

	// Attempts counts retries within the current stage and resets to zero
	// whenever the stage advances.
	Attempts int

	OriginalSizeMB float64

	Transcript *Transcript
	Title      string
	Summary    string
	Topics     []Topic

	// OutputPath is the store path of the processed directory, set once the
	// organizer has committed it.
	OutputPath string

	// CompressedSizeMB is recorded by the organizer when compression ran.
	CompressedSizeMB float64

	// LastError holds the message recorded alongside a quarantined file.
	LastError string
}

// ProcessingDir returns the session's in-flight directory in the store.
func (s *Session) ProcessingDir() string {
	return storage.ProcessingPath(s.ID)
}

// AudioPath returns the store path of the claimed audio file.
func (s *Session) AudioPath() string {
	return s.ProcessingDir() + "/" + s.SourceName
}

// EffectiveDate is the date used for output naming: the override when one was
// accepted, the nominal date otherwise.
func (s *Session) EffectiveDate() time.Time {
	if s.OverrideDate != nil {
		return *s.OverrideDate
	}
	return s.NominalDate
}

// Advance moves the session to the next stage and resets the retry counter.
func (s *Session) Advance() {
	s.Stage = s.Stage.Next()
	s.Attempts = 0
}

var filenameDatePatterns = []*regexp.Regexp{
	// DJI recorders and similar devices embed the capture date.
	regexp.MustCompile(`(20\d{2})-(\d{2})-(\d{2})`),
	regexp.MustCompile(`(20\d{2})(\d{2})(\d{2})`),
}

// NominalDateFor extracts a capture date from a filename, falling back to the
// provided modification time when the name carries none. Parsed dates in the
// future or more than ten years old are treated as noise, not capture dates.
func NominalDateFor(name string, fallback time.Time) time.Time {
	now := time.Now()
	for _, pattern := range filenameDatePatterns {
		match := pattern.FindStringSubmatch(name)
		if match == nil {
			continue
		}
		parsed, err := time.Parse("2006-01-02", match[1]+"-"+match[2]+"-"+match[3])
		if err != nil {
			continue
		}
		if parsed.After(now.Add(24*time.Hour)) || parsed.Before(now.AddDate(-10, 0, 0)) {
			continue
		}
		return parsed
	}
	return fallback
}
