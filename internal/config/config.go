package config

import "time"

// Config represents the complete application configuration
// following the Fulmen Forge Workhorse Standard three-layer pattern:
// Layer 1: Crucible defaults (config/google-drive-service/v0/google-drive-service-defaults.yaml)
// Layer 2: User overrides (~/.config/google-drive-service/config.yaml)
// Layer 3: Environment variables and runtime overrides
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Drive      DriveConfig      `mapstructure:"drive"`
	Resilience ResilienceConfig `mapstructure:"resilience"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Health     HealthConfig     `mapstructure:"health"`
	Debug      DebugConfig      `mapstructure:"debug"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string         `mapstructure:"host"`
	Port            int            `mapstructure:"port"`
	ReadTimeout     time.Duration  `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration  `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration  `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration  `mapstructure:"shutdown_timeout"`
	Throttle        ThrottleConfig `mapstructure:"throttle"`
}

// ThrottleConfig caps inbound HTTP request throughput.
type ThrottleConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// DriveConfig locates the OAuth material and tunes uploads.
type DriveConfig struct {
	// CredentialsPath is the OAuth client secrets JSON file
	CredentialsPath string `mapstructure:"credentials_path"`

	// TokenPath is where the persisted OAuth token lives
	TokenPath string `mapstructure:"token_path"`

	// RedirectURI overrides the redirect registered with the OAuth client
	RedirectURI string `mapstructure:"redirect_uri"`

	// UploadChunkSize is the resumable-upload chunk size in bytes
	UploadChunkSize int `mapstructure:"upload_chunk_size"`
}

// ResilienceConfig tunes the guard chain around Drive calls.
type ResilienceConfig struct {
	Retry     RetryConfig     `mapstructure:"retry"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Circuit   CircuitConfig   `mapstructure:"circuit"`
}

// RetryConfig bounds the exponential backoff retry loop.
type RetryConfig struct {
	MaxRetries    int           `mapstructure:"max_retries"`
	InitialDelay  time.Duration `mapstructure:"initial_delay"`
	MaxDelay      time.Duration `mapstructure:"max_delay"`
	BackoffFactor float64       `mapstructure:"backoff_factor"`
	Jitter        bool          `mapstructure:"jitter"`
}

// RateLimitConfig tunes the outbound token-bucket rate limiter.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             float64 `mapstructure:"burst"`
}

// CircuitConfig tunes the per-operation-class circuit breakers.
type CircuitConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	ResetTimeout     time.Duration `mapstructure:"reset_timeout"`
}

// LoggingConfig contains logging configuration
// Supports progressive logging profiles per Fulmen Forge Workhorse Standard:
// - SIMPLE: Console output only, minimal configuration (CLI tools)
// - STRUCTURED: Structured sinks, correlation IDs (API services)
// - ENTERPRISE: Multiple sinks, middleware, throttling, policy enforcement (production)
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: SIMPLE, STRUCTURED, ENTERPRISE
	// See: gofulmen/docs/crucible-go/standards/observability/logging.md
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	// Enabled controls whether metrics are exposed
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	// Metrics are also available at the main HTTP port in JSON format
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	// Enabled controls whether health endpoints are exposed
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug and profiling configuration
type DebugConfig struct {
	// Enabled controls whether debug mode is active
	Enabled bool `mapstructure:"enabled"`

	// PprofEnabled controls whether pprof endpoints are exposed
	// WARNING: Only enable in development/staging environments
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}
