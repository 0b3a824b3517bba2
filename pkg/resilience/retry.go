// Package resilience provides retry with exponential backoff and per-service
// circuit breakers for calls to external services.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryConfig controls the retry helper. Total attempts = MaxRetries + 1.
type RetryConfig struct {
	MaxRetries      int
	BaseDelay       time.Duration
	ExponentialBase float64
}

// DefaultRetryConfig matches the service-call defaults used across the pipeline.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		BaseDelay:       1 * time.Second,
		ExponentialBase: 2.0,
	}
}

// TransientError marks an error as retryable. External clients wrap timeouts,
// connection failures and 5xx responses in this type so the retry helper and
// the circuit breakers can distinguish them from permanent failures.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientError. Returns nil for nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err (or anything it wraps) is retryable.
// Network timeouts are treated as transient even when unwrapped.
func IsTransient(err error) bool {
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return false
}

// Do runs op with retries. Delay before retry n (0-based) is
// BaseDelay * ExponentialBase^n. Only errors for which isRetryable returns
// true are retried; everything else propagates immediately. When isRetryable
// is nil, IsTransient is used. On exhaustion the last error is returned
// unchanged.
func Do(ctx context.Context, cfg RetryConfig, name string, isRetryable func(error) bool, op func(ctx context.Context) error) error {
	if isRetryable == nil {
		isRetryable = IsTransient
	}

	attempt := 0
	backoff := retry.WithMaxRetries(uint64(cfg.MaxRetries), retry.BackoffFunc(func() (time.Duration, bool) {
		delay := time.Duration(float64(cfg.BaseDelay) * math.Pow(cfg.ExponentialBase, float64(attempt)))
		attempt++
		return delay, false
	}))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		if attempt < cfg.MaxRetries {
			slog.Warn("Retryable operation failed, will retry",
				"operation", name,
				"attempt", attempt+1,
				"max_attempts", cfg.MaxRetries+1,
				"error", err)
		} else {
			slog.Error("All retry attempts exhausted",
				"operation", name,
				"attempts", cfg.MaxRetries+1,
				"error", err)
		}
		return retry.RetryableError(err)
	})
}
