package sms

import (
	"context"
	"errors"
	"time"
)

type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
	// Multiplier grows Delay after each failed attempt; values below 1 keep it constant.
	Multiplier float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, Delay: 500 * time.Millisecond, Multiplier: 2}
}

// RetryWithBackoff calls fn until it succeeds, returns a non-retryable *Error, or runs
// out of attempts. The last error is returned.
func RetryWithBackoff(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	delay := cfg.Delay
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		var se *Error
		if errors.As(err, &se) && !se.Retryable() {
			return err
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if cfg.Multiplier > 1 {
			delay = time.Duration(float64(delay) * cfg.Multiplier)
		}
	}
	return lastErr
}
