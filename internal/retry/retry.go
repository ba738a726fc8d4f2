// Package retry wraps flaky external calls, here sheet reads and writes
// and notification sends, in bounded exponential backoff.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// Config bounds one retried operation: attempts beyond the first, the
// backoff window, and a per-attempt timeout.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Timeout    time.Duration
}

// WithRetry runs operation until it succeeds or the attempts run out.
// Every attempt gets its own timeout context derived from ctx; the last
// error comes back wrapped with the attempt count.
func WithRetry[T any](ctx context.Context, cfg Config, operation func(context.Context) (T, error)) (T, error) {
	var zero T
	var err error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return zero, cerr
		}

		opCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		var result T
		result, err = operation(opCtx)
		cancel()
		if err == nil {
			return result, nil
		}
		log.Debug().Err(err).Int("attempt", attempt+1).Msg("Attempt failed")

		if attempt == cfg.MaxRetries {
			break
		}
		delay := backoffDelay(attempt, cfg.BaseDelay, cfg.MaxDelay)
		log.Debug().Dur("delay", delay).Int("next_attempt", attempt+2).Msg("Backing off")
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}
	return zero, fmt.Errorf("operation failed after %d attempts: %w", cfg.MaxRetries+1, err)
}

// backoffDelay doubles per attempt up to maxDelay, jittered between 0.5x
// and 1.5x so concurrent callers spread out.
func backoffDelay(attempt int, baseDelay, maxDelay time.Duration) time.Duration {
	// shift capped so the multiplier cannot overflow
	delay := baseDelay << min(attempt, 30)
	if delay > maxDelay {
		delay = maxDelay
	}
	delay = time.Duration(float64(delay) * (0.5 + rand.Float64()))
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}
