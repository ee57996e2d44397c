// Package retry provides the bounded exponential-backoff helper used around
// idempotent upstream reads.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/turtacn/gts/pkg/constants"
)

// Config bounds a retry loop.
type Config struct {
	// MaxAttempts is the total number of tries including the first.
	MaxAttempts int

	// BaseDelay is the first backoff interval, MaxDelay caps the growth.
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultConfig returns the retry configuration for consumer lookups.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: constants.LookupRetryAttempts,
		BaseDelay:   constants.RetryBaseDelay,
		MaxDelay:    constants.RetryMaxDelay,
	}
}

// Do runs op until it succeeds, returns a permanent error, or the attempt
// budget is exhausted. Waits grow exponentially from BaseDelay up to
// MaxDelay and abort early when ctx is done. Callers wrap definitive
// business outcomes in Permanent so only infrastructure errors burn
// attempts.
func Do(ctx context.Context, cfg Config, op func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = constants.RetryBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = constants.RetryMaxDelay
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.BaseDelay
	b.MaxInterval = cfg.MaxDelay
	b.Multiplier = 2
	// The attempt budget bounds the loop, not wall time.
	b.MaxElapsedTime = 0

	bounded := backoff.WithMaxRetries(b, uint64(cfg.MaxAttempts-1))
	return backoff.Retry(op, backoff.WithContext(bounded, ctx))
}

// Permanent marks an error as a definitive outcome that must not be
// retried. Do unwraps it before returning.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
