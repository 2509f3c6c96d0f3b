package sync

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Updater runs full syncs on a fixed interval in serve mode. A cycle that
// finds a run already in flight is skipped, not queued.
type Updater struct {
	syncer   *Syncer
	interval time.Duration
	logger   *logrus.Entry

	running bool
	done    chan struct{}
	wg      gosync.WaitGroup
}

// NewUpdater creates a periodic sync updater.
func NewUpdater(syncer *Syncer, interval time.Duration, logger *logrus.Logger) *Updater {
	return &Updater{
		syncer:   syncer,
		interval: interval,
		logger:   logger.WithField("component", "sync-updater"),
		done:     make(chan struct{}),
	}
}

// Start starts the background update loop.
func (u *Updater) Start(ctx context.Context) error {
	if u.running {
		return nil
	}

	u.running = true
	u.logger.WithField("interval", u.interval.String()).Info("Starting sync updater")

	u.wg.Add(1)
	go u.updateLoop(ctx)

	return nil
}

// Stop stops the background update loop and waits for it to exit.
func (u *Updater) Stop() error {
	if !u.running {
		return nil
	}

	u.logger.Info("Stopping sync updater")
	close(u.done)
	u.wg.Wait()
	u.running = false

	return nil
}

func (u *Updater) updateLoop(ctx context.Context) {
	defer u.wg.Done()

	// Initial sync on startup
	u.performSync(ctx)

	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-u.done:
			return
		case <-ticker.C:
			u.performSync(ctx)
		}
	}
}

func (u *Updater) performSync(ctx context.Context) {
	err := u.syncer.RunFullSync(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrSyncInProgress):
		u.logger.Warn("Previous sync still running, skipping cycle")
	case errors.Is(err, context.Canceled):
	default:
		u.logger.WithError(err).Error("Scheduled sync failed")
	}
}
