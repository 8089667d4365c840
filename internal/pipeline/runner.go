// Package pipeline drives one session through the stage state machine with
// bounded retries, quarantine on exhaustion, and a best-effort persistence
// step that can never fail the session.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ramble/internal/logging"
	"ramble/internal/notifications"
	"ramble/internal/services"
	"ramble/internal/session"
	"ramble/internal/stage"
	"ramble/internal/storage"
)

// Persister mirrors a completed session into the optional queryable store.
type Persister interface {
	Persist(ctx context.Context, sess *session.Session) error
}

// Runner executes the ordered stage handlers for one session at a time.
type Runner struct {
	store    storage.Store
	handlers []stage.Handler
	persist  Persister
	notifier notifications.Service

	maxAttempts int
	backoffBase time.Duration
	logger      *slog.Logger

	// sleep is swapped out by tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// Options configures a Runner.
type Options struct {
	Store       storage.Store
	Handlers    []stage.Handler
	Persister   Persister
	Notifier    notifications.Service
	MaxAttempts int
	BackoffBase time.Duration
	Logger      *slog.Logger
}

func NewRunner(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	backoff := opts.BackoffBase
	if backoff <= 0 {
		backoff = time.Second
	}
	return &Runner{
		store:       opts.Store,
		handlers:    opts.Handlers,
		persist:     opts.Persister,
		notifier:    opts.Notifier,
		maxAttempts: maxAttempts,
		backoffBase: backoff,
		logger:      logger,
		sleep:       sleepContext,
	}
}

// Process runs the session to a terminal stage. It never returns an error for
// a per-file failure; those end in quarantine with the session marked failed.
// The returned error covers only infrastructure faults (for example the
// quarantine move itself failing) and context cancellation.
func (r *Runner) Process(ctx context.Context, sess *session.Session) error {
	ctx = services.WithSessionID(ctx, sess.ID)
	logger := logging.WithContext(ctx, r.logger)

	for _, handler := range r.handlers {
		if sess.Stage.IsTerminal() {
			break
		}
		if err := r.runStage(ctx, handler, sess, logger); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return r.quarantine(ctx, sess, err, logger)
		}
	}

	if sess.Stage == session.StageOrganized {
		sess.Advance() // persisted
		sess.Advance() // done
		// The sink runs after the terminal transition so a mirror failure
		// can never hold the session short of done.
		r.persistSession(ctx, sess, logger)
	}

	if sess.Stage == session.StageDone {
		logger.Info("session complete",
			logging.String("stage", sess.Stage.String()),
			logging.String("output", sess.OutputPath))
		if r.notifier != nil {
			if err := r.notifier.NotifySessionCompleted(ctx, sess.Title, len(sess.Topics), sess.OutputPath); err != nil {
				logger.Warn("completion notification failed", logging.Error(err))
			}
		}
	}
	return nil
}

// runStage wraps one handler with the retry policy: up to maxAttempts tries
// for retryable failures, exponential backoff between tries, immediate
// escalation for permanent ones.
func (r *Runner) runStage(ctx context.Context, handler stage.Handler, sess *session.Session, logger *slog.Logger) error {
	stageCtx := services.WithStage(ctx, handler.Name())
	stageLogger := logging.WithContext(stageCtx, r.logger)

	sess.Attempts = 0
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		sess.Attempts = attempt
		stageLogger.Info("stage attempt",
			logging.String("target", handler.Target().String()),
			logging.Int(logging.FieldAttempt, attempt))

		err := handler.Prepare(stageCtx, sess)
		if err == nil {
			err = handler.Execute(stageCtx, sess)
		}
		if err == nil {
			sess.Advance()
			stageLogger.Info("stage advanced", logging.String("stage", sess.Stage.String()))
			return nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !services.IsRetryable(err) {
			stageLogger.Error("stage failed permanently", logging.Error(err))
			return err
		}
		stageLogger.Warn("stage attempt failed",
			logging.Error(err),
			logging.Int(logging.FieldAttempt, attempt),
			logging.Int("max_attempts", r.maxAttempts))

		if attempt < r.maxAttempts {
			if err := r.sleep(ctx, r.backoff(attempt)); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("%s: retries exhausted after %d attempts: %w", handler.Name(), r.maxAttempts, lastErr)
}

func (r *Runner) backoff(attempt int) time.Duration {
	delay := r.backoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// persistSession is the soft sub-stage: any failure is logged and swallowed.
// The filesystem output already written is the durable source of truth.
func (r *Runner) persistSession(ctx context.Context, sess *session.Session, logger *slog.Logger) {
	if r.persist == nil {
		return
	}
	if err := r.persist.Persist(ctx, sess); err != nil {
		logger.Warn("persistence write failed, continuing",
			logging.String("stage", session.StagePersisted.String()),
			logging.Error(err))
	}
}

// quarantine moves the session's files to failed/<id> with the last error
// recorded alongside for manual triage, then marks the session failed.
func (r *Runner) quarantine(ctx context.Context, sess *session.Session, cause error, logger *slog.Logger) error {
	sess.LastError = cause.Error()
	failedDir := storage.FailedPath(sess.ID)

	if _, statErr := r.store.Stat(ctx, sess.ProcessingDir()); statErr == nil {
		if err := r.store.Move(ctx, sess.ProcessingDir(), failedDir); err != nil {
			sess.Stage = session.StageFailed
			return fmt.Errorf("quarantine %s: %w", sess.ID, err)
		}
	} else if err := r.store.EnsureDir(ctx, failedDir); err != nil {
		sess.Stage = session.StageFailed
		return fmt.Errorf("quarantine %s: %w", sess.ID, err)
	}

	note := fmt.Sprintf("session: %s\nsource: %s\nstage: %s\nattempts: %d\nerror: %s\n",
		sess.ID, sess.SourceName, sess.Stage, sess.Attempts, sess.LastError)
	if err := r.store.Write(ctx, failedDir+"/error.txt", []byte(note)); err != nil {
		logger.Warn("could not write quarantine note", logging.Error(err))
	}

	sess.Stage = session.StageFailed
	logger.Error("session quarantined",
		logging.String("quarantine", failedDir),
		logging.Error(cause))
	if r.notifier != nil {
		if err := r.notifier.NotifySessionFailed(ctx, sess.SourceName, sess.LastError); err != nil {
			logger.Warn("failure notification failed", logging.Error(err))
		}
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
