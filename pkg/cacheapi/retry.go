package cacheapi

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// RetryConfig holds the configuration for retry logic. Only transport
// failures are retried.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts including the first one.
	// Values below 2 disable retries.
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// NoRetry returns the default configuration: one attempt, no retries.
func NoRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 1}
}

// DefaultRetryConfig returns a retry configuration suitable for flaky networks.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    200 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

func (rc RetryConfig) normalized() RetryConfig {
	if rc.MaxAttempts < 1 {
		rc.MaxAttempts = 1
	}
	if rc.BackoffMultiplier < 1 {
		rc.BackoffMultiplier = 1
	}
	return rc
}

// retryWithBackoff runs fn until it succeeds, fails with a non-retryable
// class, or runs out of attempts. With a single attempt the error of fn
// is returned as is.
func retryWithBackoff(ctx context.Context, rc RetryConfig, logger zerolog.Logger, fn func() (ErrorClass, error)) error {
	rc = rc.normalized()

	var lastErr error
	var lastClass ErrorClass
	backoff := rc.InitialBackoff

	for attempt := 1; attempt <= rc.MaxAttempts; attempt++ {
		class, err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr, lastClass = err, class

		if !shouldRetry(class) || rc.MaxAttempts == 1 {
			return err
		}
		if attempt >= rc.MaxAttempts {
			break
		}

		retriesTotal.WithLabelValues(string(class)).Inc()

		// ±20% jitter
		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		retryBackoffSeconds.WithLabelValues(string(class)).Observe(jitter.Seconds())

		logger.Warn().
			Err(err).
			Str("error_class", string(class)).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying request after backoff")

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		case <-time.After(jitter):
		}

		backoff = time.Duration(float64(backoff) * rc.BackoffMultiplier)
		if rc.MaxBackoff > 0 && backoff > rc.MaxBackoff {
			backoff = rc.MaxBackoff
		}
	}

	retryExhaustedTotal.WithLabelValues(string(lastClass)).Inc()
	logger.Warn().
		Str("error_class", string(lastClass)).
		Int("max_attempts", rc.MaxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, rc.MaxAttempts, lastErr)
}
