package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ramble/internal/services"
	"ramble/internal/session"
	"ramble/internal/stage"
	"ramble/internal/storage"
)

type scriptedHandler struct {
	name       string
	target     session.Stage
	prepareErr error
	errs       []error
	calls      int
	execute    func(sess *session.Session)
}

func (h *scriptedHandler) Name() string { return h.name }

func (h *scriptedHandler) Target() session.Stage { return h.target }

func (h *scriptedHandler) Prepare(ctx context.Context, sess *session.Session) error {
	return h.prepareErr
}

func (h *scriptedHandler) Execute(ctx context.Context, sess *session.Session) error {
	i := h.calls
	h.calls++
	if i < len(h.errs) && h.errs[i] != nil {
		return h.errs[i]
	}
	if h.execute != nil {
		h.execute(sess)
	}
	return nil
}

func (h *scriptedHandler) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy(h.name)
}

type fakePersister struct {
	err   error
	calls int
}

func (p *fakePersister) Persist(ctx context.Context, sess *session.Session) error {
	p.calls++
	return p.err
}

type recordingNotifier struct {
	completed int
	failed    int
}

func (n *recordingNotifier) NotifyFileDetected(context.Context, string) error { return nil }
func (n *recordingNotifier) NotifySessionCompleted(context.Context, string, int, string) error {
	n.completed++
	return nil
}
func (n *recordingNotifier) NotifySessionFailed(context.Context, string, string) error {
	n.failed++
	return nil
}
func (n *recordingNotifier) NotifyError(context.Context, error, string) error { return nil }
func (n *recordingNotifier) TestNotification(context.Context) error           { return nil }

func movedSession(t *testing.T, store storage.Store) *session.Session {
	t.Helper()
	sess := &session.Session{
		ID:         "20250609-143000-abcd1234",
		SourceName: "memo.m4a",
		Stage:      session.StageMoved,
		CreatedAt:  time.Now(),
	}
	if err := store.Write(context.Background(), sess.AudioPath(), []byte("audio")); err != nil {
		t.Fatalf("seed audio: %v", err)
	}
	return sess
}

func pipelineHandlers() []stage.Handler {
	return []stage.Handler{
		&scriptedHandler{name: "transcriber", target: session.StageTranscribed},
		&scriptedHandler{name: "enhancer", target: session.StageEnhanced},
		&scriptedHandler{name: "organizer", target: session.StageOrganized},
	}
}

func newRunner(store storage.Store, handlers []stage.Handler, persister Persister, notifier *recordingNotifier) *Runner {
	opts := Options{
		Store:       store,
		Handlers:    handlers,
		Persister:   persister,
		MaxAttempts: 3,
		BackoffBase: time.Millisecond,
	}
	if notifier != nil {
		opts.Notifier = notifier
	}
	runner := NewRunner(opts)
	runner.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return runner
}

func TestProcessReachesDone(t *testing.T) {
	store := storage.NewLocal(t.TempDir())
	notifier := &recordingNotifier{}
	persister := &fakePersister{}
	sess := movedSession(t, store)

	runner := newRunner(store, pipelineHandlers(), persister, notifier)
	if err := runner.Process(context.Background(), sess); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if sess.Stage != session.StageDone {
		t.Fatalf("expected done, got %s", sess.Stage)
	}
	if persister.calls != 1 {
		t.Fatalf("expected one persist call, got %d", persister.calls)
	}
	if notifier.completed != 1 || notifier.failed != 0 {
		t.Fatalf("unexpected notifications %+v", notifier)
	}
}

func TestRetryExhaustionQuarantinesFile(t *testing.T) {
	store := storage.NewLocal(t.TempDir())
	notifier := &recordingNotifier{}
	sess := movedSession(t, store)

	transient := services.Wrap(services.ErrTransient, "transcriber", "upload", "vendor 503", nil)
	failing := &scriptedHandler{
		name:   "transcriber",
		target: session.StageTranscribed,
		errs:   []error{transient, transient, transient, transient},
	}
	runner := newRunner(store, []stage.Handler{failing}, nil, notifier)

	if err := runner.Process(context.Background(), sess); err != nil {
		t.Fatalf("Process must not surface per-file failures: %v", err)
	}
	if sess.Stage != session.StageFailed {
		t.Fatalf("expected failed, got %s", sess.Stage)
	}
	if failing.calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", failing.calls)
	}

	ctx := context.Background()
	if _, err := store.Stat(ctx, "failed/"+sess.ID+"/memo.m4a"); err != nil {
		t.Fatalf("audio should be quarantined: %v", err)
	}
	if _, err := store.Stat(ctx, "processing/"+sess.ID); err == nil {
		t.Fatal("processing directory should be gone after quarantine")
	}

	note, err := store.Stat(ctx, "failed/"+sess.ID+"/error.txt")
	if err != nil {
		t.Fatalf("expected error sidecar: %v", err)
	}
	if note.Size == 0 {
		t.Fatal("error sidecar is empty")
	}
	if notifier.failed != 1 {
		t.Fatalf("expected failure notification, got %+v", notifier)
	}
}

func TestPermanentErrorSkipsRetries(t *testing.T) {
	store := storage.NewLocal(t.TempDir())
	sess := movedSession(t, store)

	permanent := services.Wrap(services.ErrPermanent, "transcriber", "prepare", "file too large", nil)
	failing := &scriptedHandler{name: "transcriber", target: session.StageTranscribed, errs: []error{permanent}}
	runner := newRunner(store, []stage.Handler{failing}, nil, nil)

	if err := runner.Process(context.Background(), sess); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if sess.Stage != session.StageFailed {
		t.Fatalf("expected failed, got %s", sess.Stage)
	}
	if failing.calls != 1 {
		t.Fatalf("permanent error must not be retried, got %d attempts", failing.calls)
	}
}

func TestValidationFailureIsRetriedWithinStage(t *testing.T) {
	store := storage.NewLocal(t.TempDir())
	sess := movedSession(t, store)

	invalid := services.Wrap(services.ErrValidation, "enhancer", "validate", "no topics", nil)
	flaky := &scriptedHandler{name: "transcriber", target: session.StageTranscribed, errs: []error{invalid, nil}}
	runner := newRunner(store, []stage.Handler{flaky}, nil, nil)

	if err := runner.Process(context.Background(), sess); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if sess.Stage != session.StageTranscribed {
		t.Fatalf("expected transcribed after retry, got %s", sess.Stage)
	}
	if flaky.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", flaky.calls)
	}
}

func TestPersistenceFailureStillReachesDone(t *testing.T) {
	store := storage.NewLocal(t.TempDir())
	sess := movedSession(t, store)
	persister := &fakePersister{err: errors.New("database is locked")}

	runner := newRunner(store, pipelineHandlers(), persister, nil)
	if err := runner.Process(context.Background(), sess); err != nil {
		t.Fatalf("persistence failure must not surface: %v", err)
	}
	if sess.Stage != session.StageDone {
		t.Fatalf("expected done despite sink failure, got %s", sess.Stage)
	}
	if persister.calls != 1 {
		t.Fatalf("expected persist attempt, got %d", persister.calls)
	}
}

func TestAttemptsResetBetweenStages(t *testing.T) {
	store := storage.NewLocal(t.TempDir())
	sess := movedSession(t, store)

	transient := services.Wrap(services.ErrTransient, "x", "y", "flaky", nil)
	first := &scriptedHandler{name: "transcriber", target: session.StageTranscribed, errs: []error{transient, nil}}
	var secondAttempts int
	second := &scriptedHandler{name: "enhancer", target: session.StageEnhanced,
		execute: func(s *session.Session) { secondAttempts = s.Attempts }}

	runner := newRunner(store, []stage.Handler{first, second}, nil, nil)
	if err := runner.Process(context.Background(), sess); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if secondAttempts != 1 {
		t.Fatalf("attempts should reset on stage advance, got %d", secondAttempts)
	}
	if sess.Attempts != 0 {
		t.Fatalf("attempts should be zero after final advance, got %d", sess.Attempts)
	}
}

func TestQuarantineNoteNamesStageAndError(t *testing.T) {
	store := storage.NewLocal(t.TempDir())
	sess := movedSession(t, store)

	permanent := services.Wrap(services.ErrPermanent, "enhancer", "validate", "never validates", nil)
	handlers := []stage.Handler{
		&scriptedHandler{name: "transcriber", target: session.StageTranscribed},
		&scriptedHandler{name: "enhancer", target: session.StageEnhanced, errs: []error{permanent}},
	}
	runner := newRunner(store, handlers, nil, nil)
	if err := runner.Process(context.Background(), sess); err != nil {
		t.Fatalf("Process: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(store.Root(), "failed", sess.ID, "error.txt"))
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "never validates") || !strings.Contains(text, sess.SourceName) {
		t.Fatalf("sidecar missing context: %q", text)
	}
}
