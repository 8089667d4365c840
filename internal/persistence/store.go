// Package persistence is the optional best-effort sink: one SQLite row per
// completed session. The filesystem output is the source of truth; this
// store is a queryable mirror that may lag or miss entries, so every failure
// here is logged and swallowed.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"ramble/internal/session"
	"ramble/internal/tasks"
)

// Store writes session records to SQLite. Append-only: the pipeline never
// updates or deletes rows, and never reads them back outside the CLI.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the session database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("persistence: db path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("persistence: ensure db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("persistence: open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("persistence: apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at TEXT NOT NULL,
    session_id TEXT NOT NULL,
    original_filename TEXT NOT NULL,
    raw_transcript TEXT NOT NULL,
    summary TEXT NOT NULL,
    topics TEXT NOT NULL,
    tasks TEXT NOT NULL,
    metadata TEXT NOT NULL,
    status TEXT NOT NULL,
    storage_path TEXT NOT NULL
)`

func (s *Store) initSchema(ctx context.Context) error {
	if err := s.execWithRetry(ctx, schema); err != nil {
		return fmt.Errorf("persistence: init schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Save inserts one row for a completed session and returns its record id.
func (s *Store) Save(ctx context.Context, sess *session.Session, taskList []tasks.Task, metadata map[string]any) (int64, error) {
	rawTranscript := ""
	if sess.Transcript != nil {
		rawTranscript = sess.Transcript.Text
	}
	topicsJSON, err := json.Marshal(sess.Topics)
	if err != nil {
		return 0, fmt.Errorf("persistence: encode topics: %w", err)
	}
	if taskList == nil {
		taskList = []tasks.Task{}
	}
	tasksJSON, err := json.Marshal(taskList)
	if err != nil {
		return 0, fmt.Errorf("persistence: encode tasks: %w", err)
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return 0, fmt.Errorf("persistence: encode metadata: %w", err)
	}

	var id int64
	err = retryOnBusy(ctx, func() error {
		res, execErr := s.db.ExecContext(ctx, `
            INSERT INTO sessions (created_at, session_id, original_filename, raw_transcript,
                summary, topics, tasks, metadata, status, storage_path)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.CreatedAt.UTC().Format(time.RFC3339),
			sess.ID,
			sess.SourceName,
			rawTranscript,
			sess.Summary,
			string(topicsJSON),
			string(tasksJSON),
			string(metadataJSON),
			string(sess.Stage),
			sess.OutputPath,
		)
		if execErr != nil {
			return execErr
		}
		id, execErr = res.LastInsertId()
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("persistence: insert session: %w", err)
	}
	return id, nil
}

// Record is one persisted session row as read back by the CLI.
type Record struct {
	ID               int64
	CreatedAt        time.Time
	SessionID        string
	OriginalFilename string
	Summary          string
	TopicCount       int
	TaskCount        int
	Status           string
	StoragePath      string
}

// Recent returns up to limit rows, newest first. Used by the CLI only; the
// pipeline itself never reads this table.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, created_at, session_id, original_filename, summary, topics, tasks, status, storage_path
        FROM sessions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("persistence: query sessions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			record             Record
			createdAt          string
			topicsRaw, tasksRaw string
		)
		if err := rows.Scan(&record.ID, &createdAt, &record.SessionID, &record.OriginalFilename,
			&record.Summary, &topicsRaw, &tasksRaw, &record.Status, &record.StoragePath); err != nil {
			return nil, fmt.Errorf("persistence: scan row: %w", err)
		}
		if parsed, err := time.Parse(time.RFC3339, createdAt); err == nil {
			record.CreatedAt = parsed
		}
		record.TopicCount = countJSONArray(topicsRaw)
		record.TaskCount = countJSONArray(tasksRaw)
		out = append(out, record)
	}
	return out, rows.Err()
}

func countJSONArray(raw string) int {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return 0
	}
	return len(items)
}

// HealthCheck verifies the database file is writable.
func (s *Store) HealthCheck(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("persistence: store not open")
	}
	return s.db.PingContext(ctx)
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}
