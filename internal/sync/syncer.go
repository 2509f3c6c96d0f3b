package sync

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ZIMkaRU/bfx-report/internal/venue"
	"github.com/ZIMkaRU/bfx-report/pkg/models"
)

// PostSyncHook runs once after a successful full pass, before the terminal
// 100% is published. Hooks run concurrently; any failure fails the run.
type PostSyncHook interface {
	AfterSync(ctx context.Context, s *Syncer) error
}

// HookFunc adapts a plain function to PostSyncHook.
type HookFunc func(ctx context.Context, s *Syncer) error

// AfterSync implements PostSyncHook.
func (f HookFunc) AfterSync(ctx context.Context, s *Syncer) error {
	return f(ctx, s)
}

// Syncer sequences a full synchronization run: load accounts, per-account
// sync, public sync, post-sync hooks, terminal progress. Everything inside a
// run is strictly sequential because the venue enforces one shared rate
// budget; only observer and hook fan-out is concurrent.
type Syncer struct {
	store     Store
	gateway   Gateway
	registry  *Registry
	fetcher   *Fetcher
	detector  *Detector
	publisher *Publisher
	hooks     []PostSyncHook
	logger    *logrus.Entry

	running atomic.Bool
	runID   atomic.Value // string
}

// NewSyncer wires the sync engine together.
func NewSyncer(
	store Store,
	gateway Gateway,
	registry *Registry,
	fetcher *Fetcher,
	detector *Detector,
	publisher *Publisher,
	logger *logrus.Logger,
) *Syncer {
	return &Syncer{
		store:     store,
		gateway:   gateway,
		registry:  registry,
		fetcher:   fetcher,
		detector:  detector,
		publisher: publisher,
		logger:    logger.WithField("component", "syncer"),
	}
}

// RegisterProgressObserver registers an observer invoked with each progress
// value before the generic progress event fires. Nil is a configuration
// error.
func (s *Syncer) RegisterProgressObserver(o ProgressObserver) error {
	return s.publisher.Register(o)
}

// RegisterPostSyncHook appends a hook to the ordered post-sync list. Nil is a
// configuration error.
func (s *Syncer) RegisterPostSyncHook(h PostSyncHook) error {
	if h == nil {
		return &ConfigError{Field: "post-sync hook", Reason: "must not be nil"}
	}
	s.hooks = append(s.hooks, h)
	return nil
}

// Running reports whether a run currently holds the execution lane.
func (s *Syncer) Running() bool {
	return s.running.Load()
}

// RunID returns the identifier of the current or most recent run.
func (s *Syncer) RunID() string {
	id, _ := s.runID.Load().(string)
	return id
}

// RunFullSync executes one complete pass over all accounts and public
// collections. Fail-fast: the first unretried error aborts the run;
// already-persisted pages stay durable and the next invocation resumes from
// the stored cursors.
func (s *Syncer) RunFullSync(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrSyncInProgress
	}
	defer s.running.Store(false)

	runID := uuid.NewString()
	s.runID.Store(runID)
	log := s.logger.WithField("run_id", runID)
	log.Info("Starting full sync")

	if err := s.publish(ctx, runID, 0, models.ProgressStateRunning); err != nil {
		return err
	}

	accounts, err := s.store.GetAccountCredentials(ctx)
	if err != nil {
		return fmt.Errorf("failed to load account credentials: %w", err)
	}
	valid := accounts[:0:0]
	for _, a := range accounts {
		if a.Valid() {
			valid = append(valid, a)
		}
	}

	if len(valid) == 0 {
		// Defined empty-result outcome, not an error: the progress
		// channel carries the distinguished unauthorized marker.
		log.Warn("No usable account credentials, nothing to sync")
		return s.publish(ctx, runID, 0, models.ProgressStateUnauthorized)
	}

	progress := 0
	for i := range valid {
		p, err := s.runAccountSync(ctx, runID, &valid[i], i+1, len(valid))
		if err != nil {
			return fmt.Errorf("account %d/%d: %w", i+1, len(valid), err)
		}
		progress = p
	}

	if err := s.runPublicSync(ctx, runID, progress); err != nil {
		return err
	}

	if err := s.runHooks(ctx); err != nil {
		return fmt.Errorf("post-sync hook failed: %w", err)
	}

	if err := s.publish(ctx, runID, 100, models.ProgressStateDone); err != nil {
		return err
	}

	log.Info("Full sync complete")
	return nil
}

// RunAccountSync synchronizes all account-scoped collections for one
// credential as an independent pass and returns the final progress percent.
func (s *Syncer) RunAccountSync(ctx context.Context, auth *models.AccountCredential) (int, error) {
	return s.runAccountSync(ctx, s.RunID(), auth, 1, 1)
}

// RunPublicSync synchronizes all public collections as an independent pass,
// consuming the progress headroom above startingPercent.
func (s *Syncer) RunPublicSync(ctx context.Context, startingPercent int) error {
	return s.runPublicSync(ctx, s.RunID(), startingPercent)
}

func (s *Syncer) runAccountSync(ctx context.Context, runID string, auth *models.AccountCredential, idx, total int) (int, error) {
	schemas := s.registry.AccountSchemas()
	progress := 0

	for j, schema := range schemas {
		if err := s.syncAccountSchema(ctx, schema, auth); err != nil {
			return progress, err
		}

		// Weighted by account position so intermediate accounts fill
		// proportionally smaller slices of the bar.
		progress = int(math.Round(
			float64(j+1) / float64(len(schemas)) * 100 *
				float64(idx) / float64(total)))
		if err := s.publish(ctx, runID, progress, models.ProgressStateRunning); err != nil {
			return progress, err
		}
	}

	return progress, nil
}

func (s *Syncer) syncAccountSchema(ctx context.Context, schema *Schema, auth *models.AccountCredential) error {
	if !s.gateway.HasMethod(schema.Name) {
		return fmt.Errorf("%s: %w", schema.Name, venue.ErrUnknownMethod)
	}

	cs, err := s.detector.DetectAccount(ctx, schema, auth)
	if err != nil {
		return err
	}
	if !cs.hasNewData {
		return nil
	}

	window := venue.Args{
		Auth:  auth,
		Start: cs.start,
		End:   nowMills(),
	}
	return s.fetcher.Fill(ctx, schema, accountFilter(auth), window)
}

func (s *Syncer) runPublicSync(ctx context.Context, runID string, prev int) error {
	schemas := s.registry.PublicSchemas()

	for j, schema := range schemas {
		if err := s.syncPublicSchema(ctx, schema); err != nil {
			return err
		}

		// The public pass consumes the headroom the account passes
		// left on the bar.
		progress := int(math.Round(
			float64(prev) +
				float64(j+1)/float64(len(schemas))*100*
					float64(100-prev)/100))
		if err := s.publish(ctx, runID, progress, models.ProgressStateRunning); err != nil {
			return err
		}
	}

	return nil
}

func (s *Syncer) syncPublicSchema(ctx context.Context, schema *Schema) error {
	if !s.gateway.HasMethod(schema.Name) {
		return fmt.Errorf("%s: %w", schema.Name, venue.ErrUnknownMethod)
	}

	if schema.Kind != KindInsertableArrayObjects {
		return s.fetcher.Reconcile(ctx, schema)
	}

	cs, err := s.detector.DetectPublic(ctx, schema)
	if err != nil {
		return err
	}
	if !cs.hasNewData {
		return nil
	}

	symbols := make([]string, 0, len(cs.symbols))
	for symbol := range cs.symbols {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	for _, symbol := range symbols {
		scur := cs.symbols[symbol]
		filter := map[string]interface{}{schema.SymbolField: symbol}

		if scur.hasBase {
			window := venue.Args{
				Symbol: symbol,
				Start:  scur.baseStartFrom,
				End:    scur.baseStartTo,
			}
			if err := s.fetcher.Fill(ctx, schema, filter, window); err != nil {
				return err
			}
		}
		if scur.hasCurr {
			window := venue.Args{
				Symbol: symbol,
				Start:  scur.currStart,
				End:    nowMills(),
			}
			if err := s.fetcher.Fill(ctx, schema, filter, window); err != nil {
				return err
			}
		}
	}

	return nil
}

// runHooks launches every registered hook concurrently and waits for all of
// them; the first error is returned after the group settles.
func (s *Syncer) runHooks(ctx context.Context) error {
	if len(s.hooks) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, h := range s.hooks {
		h := h
		g.Go(func() error {
			return h.AfterSync(ctx, s)
		})
	}
	return g.Wait()
}

func (s *Syncer) publish(ctx context.Context, runID string, value int, state string) error {
	return s.publisher.Publish(ctx, models.SyncProgress{
		RunID: runID,
		Value: value,
		State: state,
	})
}

func nowMills() int64 {
	return time.Now().UnixMilli()
}
