package utils

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

type BackoffType int

const (
	Linear BackoffType = iota
	Exponential
	ExponentialJitter
	Fixed
)

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	Jitter      bool
	BackoffType BackoffType
	// ShouldRetry decides whether a failed attempt is retried. Nil retries
	// every error.
	ShouldRetry func(error) bool
}

func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Multiplier:  2.0,
		Jitter:      true,
		BackoffType: ExponentialJitter,
	}
}

func Retry(ctx context.Context, config *RetryConfig, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(calculateDelay(config, attempt)):
			}
		}

		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if config.ShouldRetry != nil && !config.ShouldRetry(err) {
			return err
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", config.MaxAttempts, lastErr)
}

// Delay is the wait before retry number attempt (1-based) for loops that
// manage their own attempts.
func (c *RetryConfig) Delay(attempt int) time.Duration {
	return calculateDelay(c, attempt)
}

func calculateDelay(config *RetryConfig, attempt int) time.Duration {
	var delay time.Duration

	switch config.BackoffType {
	case Linear:
		delay = config.BaseDelay * time.Duration(attempt)
	case Exponential:
		delay = exponentialDelay(config, attempt)
	case ExponentialJitter:
		delay = exponentialDelay(config, attempt)
		if config.Jitter {
			delay += time.Duration(rand.Float64() * float64(delay) * 0.1)
		}
	default:
		delay = config.BaseDelay
	}

	if config.MaxDelay > 0 && delay > config.MaxDelay {
		delay = config.MaxDelay
	}

	return delay
}

// exponentialDelay clamps in float space; converting an out of range float to
// a Duration is undefined.
func exponentialDelay(config *RetryConfig, attempt int) time.Duration {
	delay := float64(config.BaseDelay) * math.Pow(config.Multiplier, float64(attempt-1))
	if config.MaxDelay > 0 && delay > float64(config.MaxDelay) {
		return config.MaxDelay
	}
	if delay > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}
