// Package resilience implements the circuit breaker guarding calls to the
// upstream gateway admin API.
package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/turtacn/gts/internal/domain/models"
	"github.com/turtacn/gts/internal/domain/service"
	"github.com/turtacn/gts/pkg/constants"
	"github.com/turtacn/gts/pkg/errors"
	"github.com/turtacn/gts/pkg/logger"
)

// casAttempts bounds the optimistic write loop when recording an outcome
// under contention.
const casAttempts = 4

// BreakerConfig configures the circuit breaker.
type BreakerConfig struct {
	// ErrorThreshold is the consecutive infrastructure failure count that
	// opens a circuit.
	ErrorThreshold int

	// ResetTimeout is how long an open circuit waits before allowing a
	// half-open probe.
	ResetTimeout time.Duration
}

// DefaultBreakerConfig returns the default breaker configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		ErrorThreshold: constants.BreakerErrorThreshold,
		ResetTimeout:   constants.BreakerResetTimeout,
	}
}

// TransitionHook observes circuit state changes, for metrics and audit.
type TransitionHook func(ctx context.Context, operation string, from, to models.BreakerState)

// Breaker implements service.CircuitBreaker on top of a BreakerStateStore.
// All state lives in the store; the breaker itself is stateless, so any
// number of instances sharing a store converge on one circuit view. Updates
// go through version-guarded compare-and-swap, which also elects the single
// owner of a half-open probe.
type Breaker struct {
	store        service.BreakerStateStore
	cfg          BreakerConfig
	log          logger.Logger
	onTransition TransitionHook
	now          func() time.Time
}

// NewBreaker creates a circuit breaker over the given state store. The hook
// may be nil.
func NewBreaker(store service.BreakerStateStore, cfg BreakerConfig, log logger.Logger, hook TransitionHook) *Breaker {
	if cfg.ErrorThreshold <= 0 {
		cfg.ErrorThreshold = constants.BreakerErrorThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = constants.BreakerResetTimeout
	}
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &Breaker{
		store:        store,
		cfg:          cfg,
		log:          log.WithComponent("breaker"),
		onTransition: hook,
		now:          time.Now,
	}
}

var _ service.CircuitBreaker = (*Breaker)(nil)

// Do runs fn under the named operation's circuit.
func (b *Breaker) Do(ctx context.Context, operation string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	rec, err := b.store.Load(ctx, operation)
	if err != nil {
		// A broken state store must not take the service down with it.
		// Run the call and skip the bookkeeping.
		b.log.Error(ctx, "breaker state store unavailable, passing call through", err,
			logger.String("operation", operation))
		return fn(ctx)
	}

	switch rec.State {
	case models.BreakerOpen:
		if !rec.ReadyForProbe(b.cfg.ResetTimeout, b.now()) {
			return nil, b.reject(operation)
		}

		// Cooled down. Whoever wins this swap owns the single probe.
		halfOpen := rec.ToHalfOpen()
		won, casErr := b.store.CompareAndSwap(ctx, operation, rec, halfOpen)
		if casErr != nil {
			b.log.Error(ctx, "breaker state store unavailable, passing call through", casErr,
				logger.String("operation", operation))
			return fn(ctx)
		}
		if !won {
			return nil, b.reject(operation)
		}
		b.transition(ctx, operation, rec.State, halfOpen.State)

	case models.BreakerHalfOpen:
		// Another caller owns the probe.
		return nil, b.reject(operation)
	}

	result, err := fn(ctx)
	b.record(ctx, operation, err)
	return result, err
}

// Stats returns every known operation's record.
func (b *Breaker) Stats(ctx context.Context) (map[string]models.BreakerRecord, error) {
	return b.store.Snapshot(ctx)
}

// reject builds the circuit-open rejection for an operation.
func (b *Breaker) reject(operation string) error {
	return fmt.Errorf("%s: %w", operation, errors.ErrCircuitOpen)
}

// record applies one observed outcome to the operation's record. Only
// infrastructure failures extend the streak and open the circuit at the
// threshold; successes and business outcomes (not-found, conflicts,
// validation rejections) close it, since a definitive answer proves the
// upstream is alive. Unclassified errors count as failures. Lost swaps are
// retried against a fresh read a few times, then dropped: one missed sample
// cannot change which side of the threshold the streak lands on for long.
func (b *Breaker) record(ctx context.Context, operation string, callErr error) {
	success := callErr == nil
	if callErr != nil {
		if appErr, ok := errors.AsAppError(callErr); ok {
			success = appErr.Kind != errors.KindInfrastructure
		}
	}

	for attempt := 0; attempt < casAttempts; attempt++ {
		rec, err := b.store.Load(ctx, operation)
		if err != nil {
			b.log.Error(ctx, "breaker outcome dropped, state store unavailable", err,
				logger.String("operation", operation))
			return
		}

		var next models.BreakerRecord
		if success {
			next = rec.Succeed(b.now())
		} else {
			next = rec.Fail(b.now(), b.cfg.ErrorThreshold)
		}

		won, err := b.store.CompareAndSwap(ctx, operation, rec, next)
		if err != nil {
			b.log.Error(ctx, "breaker outcome dropped, state store unavailable", err,
				logger.String("operation", operation))
			return
		}
		if won {
			if rec.State != next.State {
				b.transition(ctx, operation, rec.State, next.State)
			}
			return
		}
	}

	b.log.Warn(ctx, "breaker outcome dropped after contention",
		logger.String("operation", operation))
}

// transition logs a state change and notifies the hook.
func (b *Breaker) transition(ctx context.Context, operation string, from, to models.BreakerState) {
	b.log.Warn(ctx, "circuit breaker state change",
		logger.String("operation", operation),
		logger.String("from", string(from)),
		logger.String("to", string(to)))

	if b.onTransition != nil {
		b.onTransition(ctx, operation, from, to)
	}
}
