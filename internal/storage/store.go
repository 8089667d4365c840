package storage

import (
	"context"
	"path"
	"strings"
	"time"
)

// Entry describes one file or directory in the store.
type Entry struct {
	// Name is the base name of the entry.
	Name string
	// Path is the store-relative path of the entry.
	Path string
	Size int64
	// ModTime is the store's server-modified time.
	ModTime time.Time
	IsDir   bool
}

// Store is the remote-filesystem surface the pipeline depends on. It is
// deliberately narrow: list, stat, move, upload, download, plus directory and
// note helpers. Implementations may be a local tree or a remote file host;
// the pipeline treats both identically.
type Store interface {
	// List returns the entries directly under dir, sorted by name.
	List(ctx context.Context, dir string) ([]Entry, error)
	// Stat returns the entry at the given store path.
	Stat(ctx context.Context, storePath string) (Entry, error)
	// Move renames a file or directory within the store, creating parent
	// directories of the destination as needed.
	Move(ctx context.Context, src, dst string) error
	// Upload copies a local file into the store.
	Upload(ctx context.Context, localPath, storePath string) error
	// Download copies a store file to a local path.
	Download(ctx context.Context, storePath, localPath string) error
	// EnsureDir creates a directory (and parents) in the store.
	EnsureDir(ctx context.Context, dir string) error
	// Write places raw bytes at a store path. Used for sidecar notes.
	Write(ctx context.Context, storePath string, content []byte) error
	// Remove deletes a file or directory tree from the store.
	Remove(ctx context.Context, storePath string) error
}

// Fixed layout conventions for the monitored tree.
const (
	InboxDir      = "inbox"
	ProcessingDir = "processing"
	FailedDir     = "failed"
	ProcessedDir  = "processed"
)

// ProcessingPath returns the processing directory for a session.
func ProcessingPath(sessionID string) string {
	return path.Join(ProcessingDir, sessionID)
}

// FailedPath returns the quarantine directory for a session.
func FailedPath(sessionID string) string {
	return path.Join(FailedDir, sessionID)
}

// ProcessedPath returns the final output directory for a named session folder.
func ProcessedPath(folderName string) string {
	return path.Join(ProcessedDir, folderName)
}

var audioExtensions = map[string]struct{}{
	".wav":  {},
	".mp3":  {},
	".m4a":  {},
	".aac":  {},
	".flac": {},
	".opus": {},
	".ogg":  {},
}

// IsAudioFile reports whether the filename carries a supported audio extension.
func IsAudioFile(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	_, ok := audioExtensions[ext]
	return ok
}
