package metrics

import (
	"time"

	"github.com/PitchConnect/google-drive-service/internal/observability"
)

// Google Drive operation metrics following Prometheus conventions
var (
	// Drive operation metrics
	DriveOperationsTotal   = "drive_operations_total"
	DriveOperationDuration = "drive_operation_duration_ms"

	// Resilience layer metrics
	RetryAttemptsTotal        = "drive_retry_attempts_total"
	RateLimitWaitsTotal       = "drive_rate_limit_waits_total"
	CircuitBreakerState       = "drive_circuit_breaker_state"
	CircuitBreakerTripsTotal  = "drive_circuit_breaker_trips_total"
	CircuitBreakerShortsTotal = "drive_circuit_breaker_shorts_total"
)

// RecordDriveOperation records one facade-level Drive operation with its
// outcome and duration
func RecordDriveOperation(operation string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			DriveOperationsTotal,
			1,
			map[string]string{
				"operation": operation,
				"status":    status,
			},
		)

		_ = observability.TelemetrySystem.Histogram(
			DriveOperationDuration,
			duration,
			map[string]string{
				"operation": operation,
			},
		)
	}
}

// RecordRetryAttempt records a retry of a guarded Drive call, labeled with
// the failure class that triggered it
func RecordRetryAttempt(class string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			RetryAttemptsTotal,
			1,
			map[string]string{
				"class": class,
			},
		)
	}
}

// RecordRateLimitWait records that a call was delayed by the rate limiter
func RecordRateLimitWait() {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			RateLimitWaitsTotal,
			1,
			nil,
		)
	}
}

// SetCircuitBreakerState exports a breaker's state as a gauge
// (0=closed, 1=open, 2=half-open)
func SetCircuitBreakerState(breaker string, state int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			CircuitBreakerState,
			float64(state),
			map[string]string{
				"breaker": breaker,
			},
		)
	}
}

// RecordCircuitBreakerTrip records a closed-to-open transition
func RecordCircuitBreakerTrip(breaker string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			CircuitBreakerTripsTotal,
			1,
			map[string]string{
				"breaker": breaker,
			},
		)
	}
}

// RecordCircuitBreakerShort records a call rejected by an open breaker
func RecordCircuitBreakerShort(breaker string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			CircuitBreakerShortsTotal,
			1,
			map[string]string{
				"breaker": breaker,
			},
		)
	}
}
