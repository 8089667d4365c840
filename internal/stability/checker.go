// Package stability decides when a file in the inbox has finished uploading.
// A file is considered stable once two observations separated by the
// configured window report the same size and modification time.
package stability

import (
	"context"
	"log/slog"
	"time"

	"ramble/internal/logging"
	"ramble/internal/storage"
)

// Checker samples a store path twice and compares the observations.
type Checker struct {
	store  storage.Store
	window time.Duration
	logger *slog.Logger

	// sleep is swapped out by tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewChecker constructs a checker with the given observation window. Windows
// below one second are rounded up so a slow upload cannot pass between two
// back-to-back stats.
func NewChecker(store storage.Store, window time.Duration, logger *slog.Logger) *Checker {
	if window < time.Second {
		window = time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Checker{
		store:  store,
		window: window,
		logger: logger,
		sleep:  sleepContext,
	}
}

// IsStable reports whether the file at storePath kept the same size and
// modification time across the checker's window. A file that disappears
// between observations is not stable.
func (c *Checker) IsStable(ctx context.Context, storePath string) (bool, error) {
	first, err := c.store.Stat(ctx, storePath)
	if err != nil {
		return false, err
	}
	if err := c.sleep(ctx, c.window); err != nil {
		return false, err
	}
	second, err := c.store.Stat(ctx, storePath)
	if err != nil {
		return false, err
	}

	stable := first.Size == second.Size && first.ModTime.Equal(second.ModTime)
	if !stable {
		c.logger.Debug("file still changing",
			logging.String("path", storePath),
			logging.Int64("first_size", first.Size),
			logging.Int64("second_size", second.Size))
	}
	return stable, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
