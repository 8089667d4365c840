// Command rambled is the voice memo processing daemon. It watches the inbox
// for new recordings and runs each through transcription, structuring, and
// organization.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"ramble/internal/config"
	"ramble/internal/daemon"
	"ramble/internal/logging"
	"ramble/internal/notifications"
	"ramble/internal/persistence"
	"ramble/internal/session"
	"ramble/internal/stability"
	"ramble/internal/storage"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	var db *persistence.Store
	if cfg.Persistence.Enabled {
		db, err = persistence.Open(cfg.Persistence.DBPath)
		if err != nil {
			logger.Error("open persistence store", logging.Error(err))
			return
		}
		defer db.Close()
	}

	store := storage.NewLocal(cfg.Storage.RootDir)
	notifier := notifications.NewService(cfg)
	runner := buildRunner(cfg, store, db, notifier, logger)

	d, err := daemon.New(cfg, store,
		session.NewTracker(store, logger),
		stability.NewChecker(store, cfg.StabilityWindow(), logger),
		runner, notifier, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}

	if err := d.Run(ctx); err != nil {
		logger.Error("daemon exited", logging.Error(err))
	}
}
