package sync

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ZIMkaRU/bfx-report/pkg/models"
)

// ProgressObserver receives every progress event of a run. Observers run
// concurrently per event and are all awaited before the run advances, so a
// slow observer slows the run and a failing one aborts it.
type ProgressObserver interface {
	Notify(ctx context.Context, p models.SyncProgress) error
}

// ObserverFunc adapts a plain function to ProgressObserver.
type ObserverFunc func(ctx context.Context, p models.SyncProgress) error

// Notify implements ProgressObserver.
func (f ObserverFunc) Notify(ctx context.Context, p models.SyncProgress) error {
	return f(ctx, p)
}

// Publisher fans progress events out to registered observers first, then to
// the wired emitters (cache, message bus).
type Publisher struct {
	observers []ProgressObserver
	emitters  []ProgressObserver
	logger    *logrus.Entry
}

// NewPublisher creates a progress publisher with the given always-on
// emitters.
func NewPublisher(logger *logrus.Logger, emitters ...ProgressObserver) *Publisher {
	return &Publisher{
		emitters: emitters,
		logger:   logger.WithField("component", "progress"),
	}
}

// Register appends an observer. Nil observers are a configuration error.
func (p *Publisher) Register(o ProgressObserver) error {
	if o == nil {
		return &ConfigError{Field: "progress observer", Reason: "must not be nil"}
	}
	p.observers = append(p.observers, o)
	return nil
}

// Publish delivers one event: registered observers before the generic
// emitters, each group fanned out concurrently and awaited.
func (p *Publisher) Publish(ctx context.Context, ev models.SyncProgress) error {
	ev.Timestamp = time.Now().UTC()

	p.logger.WithFields(logrus.Fields{
		"run_id":   ev.RunID,
		"progress": ev.Value,
		"state":    ev.State,
	}).Info("Sync progress")

	if err := fanOut(ctx, p.observers, ev); err != nil {
		return err
	}
	return fanOut(ctx, p.emitters, ev)
}

func fanOut(ctx context.Context, targets []ProgressObserver, ev models.SyncProgress) error {
	if len(targets) == 0 {
		return nil
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, t := range targets {
		t := t
		g.Go(func() error {
			return t.Notify(ctx, ev)
		})
	}
	return g.Wait()
}
