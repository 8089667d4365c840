package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"ramble/internal/logging"
	"ramble/internal/services"
	"ramble/internal/storage"
)

const idMintAttempts = 5

// Tracker claims inbox files by moving them into per-session processing
// directories and re-discovers in-flight sessions after a restart. It assumes
// a single active worker; concurrent instances over one store root are not
// supported.
type Tracker struct {
	store  storage.Store
	logger *slog.Logger

	// now and randomSuffix are swapped out by tests.
	now          func() time.Time
	randomSuffix func() string
}

func NewTracker(store storage.Store, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Tracker{
		store:  store,
		logger: logger,
		now:    time.Now,
		randomSuffix: func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		},
	}
}

// Begin atomically claims an inbox file: it mints a session id, verifies the
// id is unused, and moves the file into processing/<id>/. The returned
// session is already at the moved stage.
func (t *Tracker) Begin(ctx context.Context, entry storage.Entry) (*Session, error) {
	id, err := t.mintID(ctx)
	if err != nil {
		return nil, err
	}

	now := t.now()
	sess := &Session{
		ID:             id,
		SourceName:     entry.Name,
		Stage:          StageDetected,
		CreatedAt:      now,
		NominalDate:    NominalDateFor(entry.Name, entry.ModTime),
		OriginalSizeMB: float64(entry.Size) / (1024 * 1024),
	}

	if err := t.store.Move(ctx, entry.Path, sess.AudioPath()); err != nil {
		return nil, services.Wrap(services.ErrTransient, "tracker", "claim", entry.Name, err)
	}
	sess.Stage = StageMoved

	t.logger.Info("claimed file",
		logging.String(logging.FieldSessionID, sess.ID),
		logging.String("source", sess.SourceName),
		logging.Float64("size_mb", sess.OriginalSizeMB))
	return sess, nil
}

// mintID generates timestamp-plus-random identifiers and verifies each
// against the processing and quarantine trees before handing one out.
func (t *Tracker) mintID(ctx context.Context) (string, error) {
	for attempt := 0; attempt < idMintAttempts; attempt++ {
		id := t.now().Format("20060102-150405") + "-" + t.randomSuffix()
		if t.idInUse(ctx, id) {
			continue
		}
		return id, nil
	}
	return "", services.Wrap(services.ErrTransient, "tracker", "mint-id",
		fmt.Sprintf("no unused session id after %d attempts", idMintAttempts), nil)
}

func (t *Tracker) idInUse(ctx context.Context, id string) bool {
	for _, dir := range []string{storage.ProcessingPath(id), storage.FailedPath(id)} {
		if _, err := t.store.Stat(ctx, dir); err == nil {
			return true
		}
	}
	return false
}

// Recover scans the processing tree for sessions interrupted by a restart and
// rebuilds them with fresh attempt counters, oldest first. Directories with
// no audio file left are stale remnants and are cleaned up.
func (t *Tracker) Recover(ctx context.Context) ([]*Session, error) {
	dirs, err := t.store.List(ctx, storage.ProcessingDir)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var recovered []*Session
	for _, dir := range dirs {
		if !dir.IsDir {
			continue
		}
		sess, err := t.recoverOne(ctx, dir)
		if err != nil {
			return nil, err
		}
		if sess == nil {
			continue
		}
		recovered = append(recovered, sess)
	}

	if len(recovered) > 0 {
		t.logger.Info("recovered in-flight sessions", logging.Int("count", len(recovered)))
	}
	return recovered, nil
}

func (t *Tracker) recoverOne(ctx context.Context, dir storage.Entry) (*Session, error) {
	entries, err := t.store.List(ctx, dir.Path)
	if err != nil {
		return nil, err
	}

	var audio *storage.Entry
	for i := range entries {
		if storage.IsAudioFile(entries[i].Name) {
			audio = &entries[i]
			break
		}
	}
	if audio == nil {
		t.logger.Warn("removing stale processing directory",
			logging.String(logging.FieldSessionID, dir.Name))
		if err := t.store.Remove(ctx, dir.Path); err != nil {
			return nil, err
		}
		return nil, nil
	}

	createdAt := dir.ModTime
	if ts, err := time.ParseInLocation("20060102-150405", idTimestamp(dir.Name), time.Local); err == nil {
		createdAt = ts
	}

	return &Session{
		ID:             dir.Name,
		SourceName:     audio.Name,
		Stage:          StageMoved,
		CreatedAt:      createdAt,
		NominalDate:    NominalDateFor(audio.Name, audio.ModTime),
		OriginalSizeMB: float64(audio.Size) / (1024 * 1024),
	}, nil
}

func idTimestamp(id string) string {
	if len(id) < len("20060102-150405") {
		return ""
	}
	return id[:len("20060102-150405")]
}
