// Package daemon ties the poll loop, session tracker, and pipeline runner
// into a single lifecycle with flock-based locking so only one instance ever
// works a given tree.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"

	"ramble/internal/config"
	"ramble/internal/logging"
	"ramble/internal/notifications"
	"ramble/internal/pipeline"
	"ramble/internal/preflight"
	"ramble/internal/session"
	"ramble/internal/stability"
	"ramble/internal/storage"
)

// Daemon owns the processing loop: scan the inbox on a fixed interval, claim
// stable files oldest first, and run each through the pipeline one at a time.
type Daemon struct {
	cfg      *config.Config
	store    *storage.Local
	tracker  *session.Tracker
	checker  *stability.Checker
	runner   *pipeline.Runner
	notifier notifications.Service
	logger   *slog.Logger

	lockPath string
	lock     *flock.Flock
}

func New(cfg *config.Config, store *storage.Local, tracker *session.Tracker, checker *stability.Checker, runner *pipeline.Runner, notifier notifications.Service, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || tracker == nil || checker == nil || runner == nil {
		return nil, errors.New("daemon requires config, store, tracker, checker, and runner")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := filepath.Join(cfg.Storage.WorkDir, "rambled.lock")
	return &Daemon{
		cfg:      cfg,
		store:    store,
		tracker:  tracker,
		checker:  checker,
		runner:   runner,
		notifier: notifier,
		logger:   logger,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Run acquires the instance lock, verifies collaborators, recovers in-flight
// sessions, and then polls until the context is canceled. A shutdown signal
// is honored only between files; an in-progress session always runs to a
// terminal stage first.
func (d *Daemon) Run(ctx context.Context) error {
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another ramble daemon instance is already running")
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release daemon lock", logging.Error(err))
		}
	}()

	results := preflight.RunAll(ctx, d.cfg)
	for _, result := range results {
		if result.Passed {
			d.logger.Info("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail))
			continue
		}
		level := d.logger.Error
		if result.Optional {
			level = d.logger.Warn
		}
		level("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail))
	}
	if !preflight.Passed(results) {
		return errors.New("preflight checks failed, not entering poll loop")
	}

	if err := d.recover(ctx); err != nil {
		return err
	}

	d.logger.Info("daemon started",
		logging.String("root", d.store.Root()),
		logging.String("lock", d.lockPath),
		logging.Duration("poll_interval", d.pollInterval()))

	nudge := d.watchInbox(ctx)
	ticker := time.NewTicker(d.pollInterval())
	defer ticker.Stop()

	// Immediate first scan instead of waiting a full interval.
	d.scanOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("daemon stopped")
			return nil
		case <-ticker.C:
			d.scanOnce(ctx)
		case <-nudge:
			d.scanOnce(ctx)
		}
	}
}

func (d *Daemon) pollInterval() time.Duration {
	seconds := d.cfg.Processing.PollIntervalSeconds
	if seconds <= 0 {
		seconds = 60
	}
	return time.Duration(seconds) * time.Second
}

// recover re-enqueues sessions interrupted by a previous shutdown and runs
// them before any new inbox work.
func (d *Daemon) recover(ctx context.Context) error {
	recovered, err := d.tracker.Recover(ctx)
	if err != nil {
		return fmt.Errorf("recover in-flight sessions: %w", err)
	}
	for _, sess := range recovered {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d.processSession(ctx, sess)
	}
	return nil
}

// scanOnce claims and fully processes every stable inbox file, oldest first.
func (d *Daemon) scanOnce(ctx context.Context) {
	entries, err := d.store.List(ctx, storage.InboxDir)
	if err != nil {
		d.logger.Error("inbox scan failed", logging.Error(err))
		return
	}

	candidates := entries[:0]
	for _, entry := range entries {
		if !entry.IsDir && storage.IsAudioFile(entry.Name) {
			candidates = append(candidates, entry)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].ModTime.Before(candidates[j].ModTime)
	})

	for _, entry := range candidates {
		if ctx.Err() != nil {
			return
		}
		stable, err := d.checker.IsStable(ctx, entry.Path)
		if err != nil {
			d.logger.Warn("stability check failed, skipping until next cycle",
				logging.String("file", entry.Name),
				logging.Error(err))
			continue
		}
		if !stable {
			d.logger.Debug("file still uploading", logging.String("file", entry.Name))
			continue
		}

		if d.notifier != nil {
			if err := d.notifier.NotifyFileDetected(ctx, entry.Name); err != nil {
				d.logger.Warn("detection notification failed", logging.Error(err))
			}
		}

		sess, err := d.tracker.Begin(ctx, entry)
		if err != nil {
			d.logger.Error("could not claim file",
				logging.String("file", entry.Name),
				logging.Error(err))
			continue
		}
		d.processSession(ctx, sess)
	}
}

// processSession runs one session end to end. The pipeline gets a context
// detached from shutdown so cancellation never aborts a stage mid-flight and
// strands remote resources.
func (d *Daemon) processSession(ctx context.Context, sess *session.Session) {
	runCtx := context.WithoutCancel(ctx)
	if err := d.runner.Process(runCtx, sess); err != nil {
		d.logger.Error("pipeline infrastructure failure",
			logging.String(logging.FieldSessionID, sess.ID),
			logging.Error(err))
		if d.notifier != nil {
			if notifyErr := d.notifier.NotifyError(runCtx, err, "pipeline"); notifyErr != nil {
				d.logger.Warn("error notification failed", logging.Error(notifyErr))
			}
		}
	}
}

// watchInbox nudges the poll loop when the local inbox changes, so short
// poll intervals are unnecessary. The ticker remains the source of truth;
// watch failures just fall back to pure polling.
func (d *Daemon) watchInbox(ctx context.Context) <-chan struct{} {
	nudge := make(chan struct{}, 1)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		d.logger.Warn("inbox watcher unavailable, relying on polling", logging.Error(err))
		return nudge
	}
	inboxPath := filepath.Join(d.store.Root(), storage.InboxDir)
	if err := watcher.Add(inboxPath); err != nil {
		d.logger.Warn("could not watch inbox, relying on polling", logging.Error(err))
		_ = watcher.Close()
		return nudge
	}

	go func() {
		defer watcher.Close()
		// Debounce so one upload's burst of write events produces one scan,
		// after the stability window has a chance to pass.
		var timer *time.Timer
		delay := d.cfg.StabilityWindow() + time.Second
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(delay, func() {
					select {
					case nudge <- struct{}{}:
					default:
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				d.logger.Warn("inbox watcher error", logging.Error(err))
			}
		}
	}()
	return nudge
}
