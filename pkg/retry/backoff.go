package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Config holds the configuration for exponential backoff retry logic.
type Config struct {
	// MaxRetries is the maximum number of retry attempts.
	// Set to -1 for unlimited retries.
	MaxRetries int

	// InitialBackoff is the duration to wait before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between retries.
	MaxBackoff time.Duration

	// Multiplier grows the backoff after each retry; 2.0 doubles it.
	Multiplier float64

	// Jitter adds ±25% randomness to avoid synchronized retries.
	Jitter bool

	// OnRetry, when set, is invoked before each wait with the attempt
	// number and the error that triggered the retry.
	OnRetry func(attempt int, err error)
}

// Operation is retried until it returns nil, retries are exhausted, or the
// context is cancelled.
type Operation func(ctx context.Context) error

// Do executes op with exponential backoff.
func Do(ctx context.Context, cfg Config, op Operation) error {
	var attempt int

	for {
		attempt++

		err := op(ctx)
		if err == nil {
			return nil
		}

		if cfg.MaxRetries >= 0 && attempt > cfg.MaxRetries {
			return fmt.Errorf("operation failed after %d attempts: %w", attempt, err)
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}

		backoff := backoffFor(attempt, cfg)

		select {
		case <-ctx.Done():
			return fmt.Errorf("operation canceled after %d attempts: %w", attempt, ctx.Err())
		case <-time.After(backoff):
		}
	}
}

// backoffFor computes the wait before the given retry attempt.
func backoffFor(retryNumber int, cfg Config) time.Duration {
	if retryNumber == 0 {
		return 0
	}

	// initialBackoff * multiplier^(retryNumber-1), capped at MaxBackoff.
	backoff := float64(cfg.InitialBackoff) * math.Pow(cfg.Multiplier, float64(retryNumber-1))
	if backoff > float64(cfg.MaxBackoff) {
		backoff = float64(cfg.MaxBackoff)
	}

	duration := time.Duration(backoff)

	if cfg.Jitter {
		jitterRange := float64(duration) * 0.25
		jitterAmount := (rand.Float64() * 2 * jitterRange) - jitterRange
		duration = time.Duration(float64(duration) + jitterAmount)

		if duration > cfg.MaxBackoff {
			duration = cfg.MaxBackoff
		}
		if duration < 0 {
			duration = 0
		}
	}

	return duration
}
