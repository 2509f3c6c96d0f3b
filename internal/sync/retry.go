package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ZIMkaRU/bfx-report/internal/venue"
)

// Retry bounds. Rate-limit rejections are expensive to wait out, so the
// budget is tight; stale-nonce rejections resolve themselves quickly and get
// a long leash.
const (
	maxRateLimitRetries = 2
	maxNonceRetries     = 20
)

// RetryPolicy wraps a single logical venue request with bounded, delayed
// retries for the two transient error classes. Anything unclassified
// propagates immediately.
type RetryPolicy struct {
	gateway        Gateway
	rateLimitDelay time.Duration
	nonceDelay     time.Duration
	logger         *logrus.Entry
}

// NewRetryPolicy creates a retry policy over the given gateway.
func NewRetryPolicy(gateway Gateway, rateLimitDelay, nonceDelay time.Duration, logger *logrus.Logger) *RetryPolicy {
	return &RetryPolicy{
		gateway:        gateway,
		rateLimitDelay: rateLimitDelay,
		nonceDelay:     nonceDelay,
		logger:         logger.WithField("component", "retry-policy"),
	}
}

// FetchOne executes one request, retrying rate-limited and nonce-too-old
// failures with their class-specific delay until the class's consecutive
// bound is exhausted. Counters reset when the failure class changes.
func (p *RetryPolicy) FetchOne(ctx context.Context, method string, args venue.Args, probe bool) (*venue.PageResult, error) {
	var rateLimitFails, nonceFails int

	for {
		res, err := p.gateway.Request(ctx, method, args, probe)
		if err == nil {
			return res, nil
		}

		var delay time.Duration
		switch {
		case errors.Is(err, venue.ErrRateLimited):
			rateLimitFails++
			nonceFails = 0
			if rateLimitFails > maxRateLimitRetries {
				return nil, fmt.Errorf("%s: rate limit retries exhausted: %w", method, err)
			}
			delay = p.rateLimitDelay

		case errors.Is(err, venue.ErrNonceSmall):
			nonceFails++
			rateLimitFails = 0
			if nonceFails > maxNonceRetries {
				return nil, fmt.Errorf("%s: nonce retries exhausted: %w", method, err)
			}
			delay = p.nonceDelay

		default:
			return nil, err
		}

		p.logger.WithFields(logrus.Fields{
			"method": method,
			"delay":  delay.String(),
		}).WithError(err).Warn("Transient venue error, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}
