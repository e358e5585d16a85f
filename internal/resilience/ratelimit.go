package resilience

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/PitchConnect/google-drive-service/internal/metrics"
)

// Limiter is a token-bucket rate limiter that delays callers instead of
// rejecting them. Tokens accrue lazily at Rate per second up to Burst; each
// call consumes exactly one. State is shared by all callers of one instance
// and is mutex-protected.
type Limiter struct {
	rate  float64
	burst float64

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time

	logger *logging.Logger
	clock  func() time.Time
	sleep  func(context.Context, time.Duration) error
}

// NewLimiter builds a Limiter allowing rate calls/second with bursts up to
// burst. The bucket starts full. logger may be nil.
func NewLimiter(rate, burst float64, logger *logging.Logger) *Limiter {
	if rate <= 0 {
		rate = 1
	}
	if burst < 1 {
		burst = 1
	}
	l := &Limiter{
		rate:   rate,
		burst:  burst,
		tokens: burst,
		logger: logger,
		clock:  time.Now,
		sleep:  sleepContext,
	}
	l.lastRefill = l.clock()
	return l
}

// Wait blocks until the caller may proceed, consuming one token. When the
// bucket is short it sleeps exactly (1.0 - tokens) / rate and then treats the
// bucket as holding one token, without re-measuring elapsed time after the
// wait. Cancellation of ctx during the wait aborts with ctx's error.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	now := l.clock()
	elapsed := now.Sub(l.lastRefill).Seconds()
	l.tokens = math.Min(l.burst, l.tokens+elapsed*l.rate)

	if l.tokens >= 1.0 {
		l.tokens -= 1.0
		l.lastRefill = l.clock()
		l.mu.Unlock()
		return nil
	}

	wait := time.Duration((1.0 - l.tokens) / l.rate * float64(time.Second))
	l.mu.Unlock()

	if l.logger != nil {
		l.logger.Debug("Rate limit reached, delaying call", zap.Duration("wait", wait))
	}
	metrics.RecordRateLimitWait()
	if err := l.sleep(ctx, wait); err != nil {
		return err
	}

	l.mu.Lock()
	l.tokens = 0.0 // one token granted by the wait, consumed by this call
	l.lastRefill = l.clock()
	l.mu.Unlock()
	return nil
}

// Do waits for a token and then invokes op, passing its result through
// unchanged. The limiter does not interpret failures.
func (l *Limiter) Do(ctx context.Context, op Operation) error {
	if err := l.Wait(ctx); err != nil {
		return err
	}
	return op(ctx)
}

// Tokens reports the current budget without refilling. Test support.
func (l *Limiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tokens
}
