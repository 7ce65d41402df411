// Package retry provides exponential backoff retry logic with jitter.
//
// This package implements configurable retry strategies for transient
// failures:
//   - Exponential backoff with optional jitter
//   - Maximum retry attempts
//   - Context-aware cancellation
//   - Immediate stop for non-retryable errors via Stop
//
// # Usage
//
//	cfg := retry.BackoffConfig{
//		InitialInterval: 100 * time.Millisecond,
//		MaxInterval:     5 * time.Second,
//		Multiplier:      2.0,
//		Jitter:          true,
//		MaxRetries:      5,
//	}
//
//	err := retry.WithRetry(ctx, func() error {
//		return callBackend()
//	}, cfg)
//
// Wrap errors that must not be retried, such as lookups of keys that do not
// exist, with retry.Stop; WithRetry returns the wrapped error immediately.
//
// # Jitter
//
// Jitter adds randomness to prevent thundering herd problems when multiple
// clients retry simultaneously. With jitter enabled the actual delay is:
// baseDelay/2 + random(0, baseDelay/2).
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/blobcab/blobcab/logger"
	"github.com/blobcab/blobcab/pkg/metrics"
)

type BackoffConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	Jitter          bool
	MaxRetries      int

	// OperationName labels retry metrics and log lines. Optional.
	OperationName string
}

func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		Jitter:          true,
		MaxRetries:      5,
	}
}

// ExponentialBackoff returns the delay function for the given config. The
// delay for attempt n is InitialInterval * Multiplier^(n-1), capped at
// MaxInterval, with optional jitter applied.
func ExponentialBackoff(config BackoffConfig) func(int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt <= 0 {
			return config.InitialInterval
		}

		interval := float64(config.InitialInterval) * math.Pow(config.Multiplier, float64(attempt-1))
		if interval > float64(config.MaxInterval) {
			interval = float64(config.MaxInterval)
		}

		duration := time.Duration(interval)

		if config.Jitter && duration > 1 {
			jitter := time.Duration(rand.Int63n(int64(duration / 2)))
			duration = duration/2 + jitter
		}

		return duration
	}
}

type RetryableFunc func() error

// WithRetry runs fn until it succeeds, returns a StopError, the retry budget
// is exhausted, or ctx is canceled during a backoff wait.
func WithRetry(ctx context.Context, fn RetryableFunc, config BackoffConfig) error {
	backoff := ExponentialBackoff(config)
	operation := config.OperationName
	if operation == "" {
		operation = "unnamed"
	}

	var lastErr error
	var attempts int
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		attempts = attempt + 1
		if attempt > 0 {
			metrics.StorageRetries.WithLabelValues(operation).Inc()
			delay := backoff(attempt)
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry cancelled by context: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		var stopErr StopError
		if errors.As(err, &stopErr) {
			return stopErr.Err
		}

		lastErr = err
		if attempt < config.MaxRetries {
			logger.Debug("RETRY: Attempt failed, will retry", "operation", operation, "attempt", attempts, "max_attempts", config.MaxRetries+1, "error", err)
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", attempts, lastErr)
}

// StopError wraps an error to indicate that retries should stop immediately.
type StopError struct {
	Err error
}

func (s StopError) Error() string {
	return s.Err.Error()
}

func (s StopError) Unwrap() error {
	return s.Err
}

// Stop wraps an error so WithRetry returns it without further attempts.
func Stop(err error) error {
	return StopError{Err: err}
}

// IsStopError checks if an error is a StopError.
func IsStopError(err error) bool {
	var stopErr StopError
	return errors.As(err, &stopErr)
}
