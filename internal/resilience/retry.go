package resilience

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/PitchConnect/google-drive-service/internal/metrics"
)

// Policy configures a Retrier. It is immutable after construction.
type Policy struct {
	// MaxRetries is the number of re-invocations after the first attempt.
	MaxRetries int
	// InitialDelay seeds the backoff sequence.
	InitialDelay time.Duration
	// MaxDelay clamps each computed delay.
	MaxDelay time.Duration
	// BackoffFactor multiplies the delay after every failed attempt.
	BackoffFactor float64
	// Jitter randomizes each delay by a factor in [0.5, 1.0).
	Jitter bool
	// RetryableErrors, when non-empty, replaces classification as the retry
	// test: a failure retries only if it matches one of these via errors.Is.
	RetryableErrors []error
}

// DefaultPolicy returns the service-wide retry defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:    3,
		InitialDelay:  time.Second,
		MaxDelay:      15 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	}
}

// Retrier re-invokes failing operations with exponential backoff until the
// failure is non-retryable or the budget is exhausted. Total attempts are
// bounded by MaxRetries+1 and total added wait by MaxRetries×MaxDelay.
type Retrier struct {
	policy Policy
	logger *logging.Logger

	sleep     func(context.Context, time.Duration) error
	randFloat func() float64
}

// NewRetrier builds a Retrier for the given policy. logger may be nil.
func NewRetrier(policy Policy, logger *logging.Logger) *Retrier {
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.InitialDelay < 0 {
		policy.InitialDelay = 0
	}
	if policy.BackoffFactor <= 0 {
		policy.BackoffFactor = 1.0
	}
	return &Retrier{
		policy:    policy,
		logger:    logger,
		sleep:     sleepContext,
		randFloat: rand.Float64,
	}
}

// Do runs op, retrying transient failures per the policy. The last failure
// propagates unchanged once the budget is exhausted or the failure is not
// retryable. Cancellation of ctx during a backoff wait aborts with ctx's error.
func (r *Retrier) Do(ctx context.Context, op Operation) error {
	delay := r.policy.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !r.shouldRetry(err) || attempt >= r.policy.MaxRetries {
			return err
		}

		delay = r.nextDelay(delay)
		metrics.RecordRetryAttempt(Classify(err).String())
		if r.logger != nil {
			r.logger.Warn("Retryable failure, backing off",
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", r.policy.MaxRetries),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
		}
		if serr := r.sleep(ctx, delay); serr != nil {
			return serr
		}
	}
	return lastErr
}

// shouldRetry applies the explicit allowlist when present, otherwise the
// classifier.
func (r *Retrier) shouldRetry(err error) bool {
	if len(r.policy.RetryableErrors) > 0 {
		for _, target := range r.policy.RetryableErrors {
			if errors.Is(err, target) {
				return true
			}
		}
		return false
	}
	return IsRetryable(err)
}

// nextDelay advances the backoff sequence: min(MaxDelay, current × factor ×
// jitter) with jitter in [0.5, 1.0) when enabled.
func (r *Retrier) nextDelay(current time.Duration) time.Duration {
	factor := r.policy.BackoffFactor
	if r.policy.Jitter {
		factor *= 0.5 + r.randFloat()*0.5
	}
	next := time.Duration(float64(current) * factor)
	if r.policy.MaxDelay > 0 && next > r.policy.MaxDelay {
		next = r.policy.MaxDelay
	}
	return next
}
