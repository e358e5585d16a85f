package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/PitchConnect/google-drive-service/internal/metrics"
)

// State identifies the circuit breaker's operating mode.
type State int

const (
	// StateClosed allows all calls.
	StateClosed State = iota
	// StateOpen fails fast without invoking the operation.
	StateOpen
	// StateHalfOpen lets a trial call through to probe recovery.
	StateHalfOpen
)

// String returns a stable lowercase name for logs and metric labels.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when the breaker short-circuits a call. It
// carries the retryable marker so a retry layer placed above the breaker
// backs off instead of hammering an open circuit.
var ErrCircuitOpen = &RetryableError{Err: errors.New("circuit breaker is open")}

// BreakerConfig bounds how many consecutive failures a Breaker tolerates and
// how long it fails fast before probing.
type BreakerConfig struct {
	FailureThreshold int
	ResetTimeout     time.Duration
}

// DefaultBreakerConfig returns the service-wide circuit breaker defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     60 * time.Second,
	}
}

// BreakerStats is a snapshot of a breaker's internal counters.
type BreakerStats struct {
	State               State
	ConsecutiveFailures int
	LastFailureTime     time.Time
	LastSuccessTime     time.Time
}

// Breaker is a three-state circuit breaker guarding one class of operation.
// It opens after FailureThreshold consecutive failures, fails fast while
// open, and transitions to half-open lazily at call time once ResetTimeout
// has elapsed since the last failure.
type Breaker struct {
	name   string
	config BreakerConfig
	logger *logging.Logger

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	lastFailureTime     time.Time
	lastSuccessTime     time.Time
	clock               func() time.Time
}

// NewBreaker builds a closed Breaker named for the operation class it guards.
// logger may be nil.
func NewBreaker(name string, config BreakerConfig, logger *logging.Logger) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 1
	}
	return &Breaker{
		name:   name,
		config: config,
		logger: logger,
		state:  StateClosed,
		clock:  time.Now,
	}
}

// Do invokes op unless the circuit is open, in which case it returns
// ErrCircuitOpen without running op. Failures and successes feed the breaker's
// state machine; op's error is otherwise passed through unchanged.
func (b *Breaker) Do(ctx context.Context, op Operation) error {
	if err := b.allow(); err != nil {
		return err
	}
	if err := op(ctx); err != nil {
		b.onFailure()
		return err
	}
	b.onSuccess()
	return nil
}

// allow checks whether a call may proceed, performing the lazy open to
// half-open transition when the reset timeout has elapsed.
func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return nil
	}
	if b.clock().Sub(b.lastFailureTime) > b.config.ResetTimeout {
		b.setState(StateHalfOpen)
		return nil
	}
	if b.logger != nil {
		b.logger.Warn("Circuit open, failing fast", zap.String("breaker", b.name))
	}
	metrics.RecordCircuitBreakerShort(b.name)
	return ErrCircuitOpen
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	b.lastSuccessTime = b.clock()
	if b.state != StateClosed {
		b.setState(StateClosed)
	}
}

func (b *Breaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures++
	b.lastFailureTime = b.clock()

	switch {
	case b.state == StateHalfOpen:
		b.setState(StateOpen)
	case b.state == StateClosed && b.consecutiveFailures >= b.config.FailureThreshold:
		b.setState(StateOpen)
	}
}

// setState records a transition. Callers must hold b.mu.
func (b *Breaker) setState(next State) {
	if b.state == next {
		return
	}
	prev := b.state
	b.state = next
	if b.logger != nil {
		b.logger.Info("Circuit breaker state changed",
			zap.String("breaker", b.name),
			zap.String("from", prev.String()),
			zap.String("to", next.String()),
			zap.Int("consecutive_failures", b.consecutiveFailures),
		)
	}
	metrics.SetCircuitBreakerState(b.name, int64(next))
	if next == StateOpen {
		metrics.RecordCircuitBreakerTrip(b.name)
	}
}

// State reports the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats returns a snapshot of the breaker's counters.
func (b *Breaker) Stats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerStats{
		State:               b.state,
		ConsecutiveFailures: b.consecutiveFailures,
		LastFailureTime:     b.lastFailureTime,
		LastSuccessTime:     b.lastSuccessTime,
	}
}

// Reset restores a fresh closed state. Test support.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.consecutiveFailures = 0
	b.lastFailureTime = time.Time{}
	b.lastSuccessTime = time.Time{}
}
