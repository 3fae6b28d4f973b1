// Package resilience provides the fault-tolerance primitives the daemon
// leans on: exponential-backoff retry around the startup boundary load, a
// circuit breaker in front of the tally store, and a timeout wrapper for
// persistent-tier reads.
package resilience

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/Pracylop/uganda-electoral-map-sub003/pkg/logger"
)

// RetryConfig controls attempt count and backoff shape. Zero fields take the
// defaults below.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

const (
	defaultMaxAttempts  = 3
	defaultInitialDelay = 500 * time.Millisecond
	defaultMaxDelay     = 30 * time.Second
)

// Retry runs fn up to MaxAttempts times, doubling the delay between attempts
// with a little jitter so restarting replicas do not hammer a recovering
// dependency in lockstep. It returns nil on the first success, the last
// error once attempts are exhausted, and aborts early when ctx ends.
func Retry(ctx context.Context, name string, cfg RetryConfig, fn func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = defaultInitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaultMaxDelay
	}
	log := logger.WithComponent("retry").With("operation", name)

	delay := cfg.InitialDelay
	var lastErr error
	for attempt := 1; ; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			if attempt > 1 {
				log.Info("recovered", "attempt", attempt)
			}
			return nil
		}
		if attempt >= cfg.MaxAttempts {
			return fmt.Errorf("%s failed after %d attempts: %w", name, cfg.MaxAttempts, lastErr)
		}

		wait := delay + time.Duration(rand.Int63n(int64(delay)/4+1))
		log.Warn("attempt failed, backing off",
			"attempt", attempt,
			"max_attempts", cfg.MaxAttempts,
			"wait", wait,
			"error", lastErr,
		)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return fmt.Errorf("%s aborted: %w", name, ctx.Err())
		}
		if delay *= 2; delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
}
