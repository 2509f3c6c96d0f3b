package app

import (
	"context"
	"fmt"
	"net/http"
	gosync "sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ZIMkaRU/bfx-report/internal/api"
	"github.com/ZIMkaRU/bfx-report/internal/cache"
	"github.com/ZIMkaRU/bfx-report/internal/database"
	"github.com/ZIMkaRU/bfx-report/internal/messaging"
	"github.com/ZIMkaRU/bfx-report/internal/sync"
	"github.com/ZIMkaRU/bfx-report/internal/venue"
	"github.com/ZIMkaRU/bfx-report/pkg/config"
	"github.com/ZIMkaRU/bfx-report/pkg/models"
)

// App represents the main application
type App struct {
	cfg    *config.Config
	logger *logrus.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     gosync.WaitGroup

	// Core components
	mysqlDB    *database.MySQLClient
	redisCache *cache.RedisClient
	natsClient *messaging.NATSClient
	venue      *venue.Client

	// Services
	syncer    *sync.Syncer
	updater   *sync.Updater
	apiServer *api.Server
}

// New creates a new application instance
func New(cfg *config.Config, logger *logrus.Logger) *App {
	ctx, cancel := context.WithCancel(context.Background())

	return &App{
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Initialize initializes all application components
func (a *App) Initialize() error {
	if err := a.initializeDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := a.initializeCache(); err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}

	if err := a.initializeMessaging(); err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}

	if err := a.initializeSync(); err != nil {
		return fmt.Errorf("failed to initialize sync engine: %w", err)
	}

	a.apiServer = api.NewServer(a.cfg, a.logger, a.mysqlDB, a.redisCache, a.natsClient, a.syncer)

	return nil
}

func (a *App) initializeDatabase() error {
	db, err := database.NewMySQLClient(&a.cfg.MySQL, a.cfg.GetMySQLDSN(), a.logger)
	if err != nil {
		return err
	}
	a.mysqlDB = db
	return nil
}

func (a *App) initializeCache() error {
	rc, err := cache.NewRedisClient(&a.cfg.Redis, a.logger)
	if err != nil {
		return err
	}
	a.redisCache = rc
	return nil
}

func (a *App) initializeMessaging() error {
	nc, err := messaging.NewNATSClient(&a.cfg.NATS, a.logger)
	if err != nil {
		return err
	}
	a.natsClient = nc
	return nil
}

// initializeSync wires the sync engine: venue client, schema registry,
// retry/fetch/cursor layers, progress emitters and the periodic updater.
func (a *App) initializeSync() error {
	a.venue = venue.NewClient(&a.cfg.Venue, a.logger)

	registry := sync.NewRegistry(a.cfg.Sync.PublicRecordCap)
	registry, err := registry.Filter(a.cfg.Sync.Collections)
	if err != nil {
		return err
	}

	retry := sync.NewRetryPolicy(a.venue, a.cfg.Sync.RateLimitDelay, a.cfg.Sync.NonceDelay, a.logger)
	fetcher := sync.NewFetcher(a.mysqlDB, retry, a.logger)
	detector := sync.NewDetector(a.mysqlDB, retry, a.logger)

	publisher := sync.NewPublisher(a.logger,
		sync.ObserverFunc(func(ctx context.Context, p models.SyncProgress) error {
			return a.redisCache.SetSyncProgress(ctx, p)
		}),
		sync.ObserverFunc(func(ctx context.Context, p models.SyncProgress) error {
			return a.natsClient.PublishSyncProgress(p)
		}),
	)

	a.syncer = sync.NewSyncer(a.mysqlDB, a.venue, registry, fetcher, detector, publisher, a.logger)

	if err := a.syncer.RegisterPostSyncHook(sync.HookFunc(func(ctx context.Context, s *sync.Syncer) error {
		return a.natsClient.PublishSyncDone(s.RunID())
	})); err != nil {
		return err
	}

	a.updater = sync.NewUpdater(a.syncer, a.cfg.Sync.Interval, a.logger)
	return nil
}

// Start starts the application
func (a *App) Start() error {
	if err := a.updater.Start(a.ctx); err != nil {
		return fmt.Errorf("failed to start updater: %w", err)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.apiServer.Start(); err != nil {
			if err != http.ErrServerClosed {
				a.logger.WithError(err).Error("API server error")
			}
		}
	}()

	return nil
}

// Stop gracefully stops the application
func (a *App) Stop() error {
	a.logger.Info("Stopping application...")

	a.cancel()

	if err := a.updater.Stop(); err != nil {
		a.logger.WithError(err).Error("Error stopping updater")
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.logger.Info("All goroutines stopped")
	case <-time.After(3 * time.Second):
		a.logger.Warn("Timeout waiting for goroutines to finish")
	}

	if a.apiServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := a.apiServer.Stop(ctx); err != nil {
			a.logger.WithError(err).Error("Error stopping API server")
		}
		cancel()
	}

	if err := a.closeConnections(); err != nil {
		a.logger.WithError(err).Error("Error closing connections")
	}

	a.logger.Info("Application stopped successfully")
	return nil
}

func (a *App) closeConnections() error {
	var firstErr error

	if a.natsClient != nil {
		if err := a.natsClient.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.redisCache != nil {
		if err := a.redisCache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.mysqlDB != nil {
		if err := a.mysqlDB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// GetContext returns the application context
func (a *App) GetContext() context.Context {
	return a.ctx
}

// GetSyncer returns the sync engine
func (a *App) GetSyncer() *sync.Syncer {
	return a.syncer
}

// GetDatabase returns the MySQL client
func (a *App) GetDatabase() *database.MySQLClient {
	return a.mysqlDB
}
