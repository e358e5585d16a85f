package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findRepoRootForTest(t *testing.T) string {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	dir := cwd
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	t.Fatalf("could not locate repo root containing go.mod from %s", cwd)
	return ""
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	// Regression test: in CI containers the repo checkout may be outside $HOME.
	// When $HOME is not an ancestor of the repo, pathfinder's default home boundary
	// can prevent repo root discovery unless a CI boundary hint is applied.
	t.Run("CIBoundaryHint", func(t *testing.T) {
		repoRoot := findRepoRootForTest(t)
		t.Setenv("HOME", t.TempDir())
		t.Setenv("CI", "true")
		t.Setenv("FULMEN_WORKSPACE_ROOT", repoRoot)

		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)
	})

	// Test basic config loading with defaults
	t.Run("LoadDefaults", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", t.TempDir())

		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		// Verify server defaults
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 9085, cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
		assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

		// Verify throttle defaults
		assert.False(t, cfg.Server.Throttle.Enabled)
		assert.Equal(t, 20.0, cfg.Server.Throttle.RequestsPerSecond)
		assert.Equal(t, 40, cfg.Server.Throttle.Burst)

		// Verify drive defaults
		assert.Equal(t, "/app/credentials/google-credentials.json", cfg.Drive.CredentialsPath)
		assert.Equal(t, "/app/data/google-drive-token.json", cfg.Drive.TokenPath)
		assert.Equal(t, "http://localhost:9085/oauth/callback", cfg.Drive.RedirectURI)
		assert.Equal(t, 1048576, cfg.Drive.UploadChunkSize)

		// Verify resilience defaults
		assert.Equal(t, 3, cfg.Resilience.Retry.MaxRetries)
		assert.Equal(t, time.Second, cfg.Resilience.Retry.InitialDelay)
		assert.Equal(t, 15*time.Second, cfg.Resilience.Retry.MaxDelay)
		assert.Equal(t, 2.0, cfg.Resilience.Retry.BackoffFactor)
		assert.True(t, cfg.Resilience.Retry.Jitter)
		assert.Equal(t, 5.0, cfg.Resilience.RateLimit.RequestsPerSecond)
		assert.Equal(t, 10.0, cfg.Resilience.RateLimit.Burst)
		assert.Equal(t, 5, cfg.Resilience.Circuit.FailureThreshold)
		assert.Equal(t, 60*time.Second, cfg.Resilience.Circuit.ResetTimeout)

		// Verify logging defaults
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "STRUCTURED", cfg.Logging.Profile)

		// Verify metrics defaults
		assert.True(t, cfg.Metrics.Enabled)
		assert.Equal(t, 9090, cfg.Metrics.Port)

		// Verify health defaults
		assert.True(t, cfg.Health.Enabled)

		// Verify debug defaults
		assert.False(t, cfg.Debug.Enabled)
		assert.False(t, cfg.Debug.PprofEnabled)
	})

	// Test runtime overrides
	t.Run("RuntimeOverrides", func(t *testing.T) {
		overrides := map[string]any{
			"server": map[string]any{
				"port": 9000,
				"host": "127.0.0.1",
			},
			"logging": map[string]any{
				"level": "debug",
			},
		}

		cfg, err := Load(ctx, overrides)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		// Verify overrides were applied
		assert.Equal(t, "127.0.0.1", cfg.Server.Host)
		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Logging.Level)

		// Verify non-overridden values remain default
		assert.Equal(t, "STRUCTURED", cfg.Logging.Profile)
		assert.Equal(t, 9090, cfg.Metrics.Port)
	})

	// Test environment variable overrides
	t.Run("EnvOverrides", func(t *testing.T) {
		// Set environment variables
		require.NoError(t, os.Setenv("GDRIVE_PORT", "3000"))
		require.NoError(t, os.Setenv("GDRIVE_LOG_LEVEL", "warn"))
		require.NoError(t, os.Setenv("GDRIVE_METRICS_ENABLED", "false"))
		require.NoError(t, os.Setenv("GDRIVE_MAX_RETRIES", "7"))
		require.NoError(t, os.Setenv("GDRIVE_RATE_LIMIT", "2.5"))
		defer func() {
			_ = os.Unsetenv("GDRIVE_PORT")
			_ = os.Unsetenv("GDRIVE_LOG_LEVEL")
			_ = os.Unsetenv("GDRIVE_METRICS_ENABLED")
			_ = os.Unsetenv("GDRIVE_MAX_RETRIES")
			_ = os.Unsetenv("GDRIVE_RATE_LIMIT")
		}()

		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		// Verify env overrides were applied
		assert.Equal(t, 3000, cfg.Server.Port)
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.False(t, cfg.Metrics.Enabled)
		assert.Equal(t, 7, cfg.Resilience.Retry.MaxRetries)
		assert.Equal(t, 2.5, cfg.Resilience.RateLimit.RequestsPerSecond)
	})

	// Test config precedence: runtime > env > defaults
	t.Run("ConfigPrecedence", func(t *testing.T) {
		// Set environment variable
		require.NoError(t, os.Setenv("GDRIVE_PORT", "4000"))
		defer func() {
			_ = os.Unsetenv("GDRIVE_PORT")
		}()

		// Runtime override should win
		overrides := map[string]any{
			"server": map[string]any{
				"port": 5000,
			},
		}

		cfg, err := Load(ctx, overrides)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		// Runtime override should take precedence over env var
		assert.Equal(t, 5000, cfg.Server.Port)
	})
}

func TestGetConfig(t *testing.T) {
	ctx := context.Background()

	// Load config first
	cfg, err := Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Test GetConfig returns the same instance
	t.Run("GetConfigReturnsLoadedConfig", func(t *testing.T) {
		retrieved := GetConfig()
		assert.NotNil(t, retrieved)
		assert.Equal(t, cfg.Server.Port, retrieved.Server.Port)
		assert.Equal(t, cfg.Logging.Level, retrieved.Logging.Level)
	})
}

func TestEnvSpecs(t *testing.T) {
	// Need to set app identity for env specs
	ctx := context.Background()
	_, err := Load(ctx)
	require.NoError(t, err)

	specs := getEnvSpecs()
	assert.NotEmpty(t, specs)

	// Verify critical env var mappings exist
	envVarNames := make(map[string]bool)
	for _, spec := range specs {
		envVarNames[spec.Name] = true
	}

	// Check required Workhorse Standard env vars
	assert.True(t, envVarNames["GDRIVE_LOG_LEVEL"], "LOG_LEVEL env var must be mapped")
	assert.True(t, envVarNames["GDRIVE_PORT"], "PORT env var must be mapped")
	assert.True(t, envVarNames["GDRIVE_HOST"], "HOST env var must be mapped")
	assert.True(t, envVarNames["GDRIVE_METRICS_PORT"], "METRICS_PORT env var must be mapped")

	// Check drive and resilience env vars
	assert.True(t, envVarNames["GDRIVE_CREDENTIALS_PATH"], "CREDENTIALS_PATH env var must be mapped")
	assert.True(t, envVarNames["GDRIVE_TOKEN_PATH"], "TOKEN_PATH env var must be mapped")
	assert.True(t, envVarNames["GDRIVE_MAX_RETRIES"], "MAX_RETRIES env var must be mapped")
	assert.True(t, envVarNames["GDRIVE_CIRCUIT_FAILURE_THRESHOLD"], "CIRCUIT_FAILURE_THRESHOLD env var must be mapped")
}

func TestDurationParsing(t *testing.T) {
	ctx := context.Background()

	// Test duration parsing from string env var
	t.Run("DurationFromEnv", func(t *testing.T) {
		require.NoError(t, os.Setenv("GDRIVE_READ_TIMEOUT", "45s"))
		require.NoError(t, os.Setenv("GDRIVE_INITIAL_RETRY_DELAY", "2s"))
		require.NoError(t, os.Setenv("GDRIVE_CIRCUIT_RESET_TIMEOUT", "90s"))
		defer func() {
			_ = os.Unsetenv("GDRIVE_READ_TIMEOUT")
			_ = os.Unsetenv("GDRIVE_INITIAL_RETRY_DELAY")
			_ = os.Unsetenv("GDRIVE_CIRCUIT_RESET_TIMEOUT")
		}()

		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, 45*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 2*time.Second, cfg.Resilience.Retry.InitialDelay)
		assert.Equal(t, 90*time.Second, cfg.Resilience.Circuit.ResetTimeout)
	})
}

func TestConfigReload(t *testing.T) {
	ctx := context.Background()

	// Load initial config
	cfg1, err := Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, cfg1)
	initialPort := cfg1.Server.Port

	// Reload with different runtime overrides
	overrides := map[string]any{
		"server": map[string]any{
			"port": initialPort + 1000,
		},
	}

	cfg2, err := Load(ctx, overrides)
	require.NoError(t, err)
	require.NotNil(t, cfg2)

	// Verify reload updated the config
	assert.Equal(t, initialPort+1000, cfg2.Server.Port)

	// Verify GetConfig returns the updated config
	current := GetConfig()
	assert.Equal(t, cfg2.Server.Port, current.Server.Port)
}
