package messaging

import (
	"encoding/json"
	"fmt"
	gosync "sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/ZIMkaRU/bfx-report/pkg/config"
	"github.com/ZIMkaRU/bfx-report/pkg/models"
)

const (
	subjectProgress = "sync.progress"
	subjectDone     = "sync.done"
)

// NATSClient handles NATS messaging operations
type NATSClient struct {
	conn   *nats.Conn
	logger *logrus.Entry
	cfg    *config.NATSConfig

	// Subscriptions
	subs   map[string]*nats.Subscription
	subsMu gosync.RWMutex
}

// NewNATSClient creates a new NATS client
func NewNATSClient(cfg *config.NATSConfig, logger *logrus.Logger) (*NATSClient, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnect),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSClient{
		conn:   conn,
		logger: logger.WithField("component", "nats"),
		cfg:    cfg,
		subs:   make(map[string]*nats.Subscription),
	}, nil
}

// Close closes the NATS connection
func (nc *NATSClient) Close() error {
	nc.subsMu.Lock()
	for _, sub := range nc.subs {
		sub.Unsubscribe()
	}
	nc.subs = make(map[string]*nats.Subscription)
	nc.subsMu.Unlock()

	nc.conn.Close()
	return nil
}

// IsConnected checks if NATS is connected
func (nc *NATSClient) IsConnected() bool {
	return nc.conn.IsConnected()
}

// PublishSyncProgress publishes a sync progress update
func (nc *NATSClient) PublishSyncProgress(progress models.SyncProgress) error {
	data, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("failed to marshal sync progress: %w", err)
	}

	if err := nc.conn.Publish(subjectProgress, data); err != nil {
		return fmt.Errorf("failed to publish sync progress: %w", err)
	}
	return nil
}

// PublishSyncDone publishes a run completion notification
func (nc *NATSClient) PublishSyncDone(runID string) error {
	data, err := json.Marshal(map[string]interface{}{
		"runId":     runID,
		"timestamp": time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal sync done: %w", err)
	}

	if err := nc.conn.Publish(subjectDone, data); err != nil {
		return fmt.Errorf("failed to publish sync done: %w", err)
	}
	return nil
}

// SubscribeSyncProgress subscribes to sync progress updates
func (nc *NATSClient) SubscribeSyncProgress(handler func(models.SyncProgress)) error {
	sub, err := nc.conn.Subscribe(subjectProgress, func(msg *nats.Msg) {
		var progress models.SyncProgress
		if err := json.Unmarshal(msg.Data, &progress); err != nil {
			nc.logger.WithError(err).Error("Failed to unmarshal sync progress")
			return
		}
		handler(progress)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to sync progress: %w", err)
	}

	nc.subsMu.Lock()
	nc.subs[subjectProgress] = sub
	nc.subsMu.Unlock()
	return nil
}
