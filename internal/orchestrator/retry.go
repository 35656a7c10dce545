package orchestrator

import (
	"context"
	"errors"
	"time"

	gatewaydomain "github.com/responsiv/pay/internal/gateway/domain"
	"go.uber.org/zap"
)

const (
	maxGatewayAttempts = 3
	retryBaseDelay     = 250 * time.Millisecond
)

// withRetry runs op, retrying only transport-level gateway failures.
// Rejections and verification failures surface immediately.
func (o *Orchestrator) withRetry(ctx context.Context, provider, operation string, op func() error) error {
	started := time.Now()
	defer func() {
		o.metrics.GatewayCallDuration.WithLabelValues(provider, operation).Observe(time.Since(started).Seconds())
	}()

	delay := retryBaseDelay
	var err error
	for attempt := 1; attempt <= maxGatewayAttempts; attempt++ {
		err = op()
		if err == nil || !errors.Is(err, gatewaydomain.ErrGatewayUnavailable) {
			return err
		}
		if attempt == maxGatewayAttempts {
			break
		}

		o.log.Warn("gateway unavailable, retrying",
			zap.String("provider", provider),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
