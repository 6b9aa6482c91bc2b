// Package retry re-runs aggregate-mutating operations that lost an optimistic-concurrency race.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"savings_circle_bot/internal/domain/errs"
)

// Config holds retry configuration.
type Config struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// Clock drives the backoff waits; the real clock is used when nil.
	Clock clockwork.Clock
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseBackoff: 100 * time.Millisecond,
		MaxBackoff:  time.Second,
	}
}

// Do runs fn until it succeeds, returns a non-retryable error, or the attempts run out.
// The wait before attempt n+1 is BaseBackoff*n, capped at MaxBackoff.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-clock.After(backoff(cfg, attempt-1)):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

// IsRetryable reports whether err is a version conflict. Every other failure is a bad
// request or a real state violation and must surface immediately.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errs.IsVersionConflict(err)
}

func backoff(cfg Config, attempt int) time.Duration {
	wait := cfg.BaseBackoff * time.Duration(attempt)
	if cfg.MaxBackoff > 0 && wait > cfg.MaxBackoff {
		wait = cfg.MaxBackoff
	}
	return wait
}
