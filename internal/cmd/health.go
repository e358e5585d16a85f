package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/PitchConnect/google-drive-service/internal/errors"
	"github.com/PitchConnect/google-drive-service/internal/observability"
)

var healthURL string

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long: `Run a self-health check to verify the application can start successfully.

With --url, probe a running instance's /health endpoint instead.`,
	Run: func(cmd *cobra.Command, args []string) {
		if healthURL != "" {
			probeRunningInstance(healthURL)
			return
		}

		observability.CLILogger.Info("Running health check...")

		// Check 1: Version info available
		if versionInfo.Version == "" {
			observability.CLILogger.Error("❌ FAIL: Version information missing")
			ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Version information missing", errwrap.NewConfigInvalidError("Version information missing"))
			return
		}
		observability.CLILogger.Debug("Version check passed", zap.String("version", versionInfo.Version))
		observability.CLILogger.Info("✅ Version information available")

		// Check 2: Logger initialized
		if observability.CLILogger == nil {
			// Can't log if logger is nil, so use stderr
			ExitWithCodeStderr(foundry.ExitConfigInvalid, "Logger not initialized", errwrap.NewConfigInvalidError("Logger not initialized"))
			return
		}
		observability.CLILogger.Info("✅ Logger initialized")

		// Check 3: Configuration loaded
		observability.CLILogger.Info("✅ Configuration system ready")

		// Overall status
		observability.CLILogger.Info("")
		observability.CLILogger.Info("✅ All health checks passed")
	},
}

// probeRunningInstance hits a running server's /health endpoint and reports
// the result, exiting non-zero when the service is unreachable or unhealthy.
func probeRunningInstance(baseURL string) {
	url := strings.TrimRight(baseURL, "/") + "/health"
	observability.CLILogger.Info("Probing running instance", zap.String("url", url))

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		ExitWithCode(observability.CLILogger, foundry.ExitExternalServiceUnavailable, "Health probe failed", err)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		ExitWithCode(observability.CLILogger, foundry.ExitExternalServiceUnavailable,
			fmt.Sprintf("Health probe returned status %d", resp.StatusCode),
			errwrap.NewExternalServiceError("unexpected health status"))
		return
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		ExitWithCode(observability.CLILogger, foundry.ExitExternalServiceUnavailable, "Health probe returned malformed JSON", err)
		return
	}

	observability.CLILogger.Info("✅ Instance healthy",
		zap.String("status", body["status"]),
		zap.String("service", body["service"]),
		zap.String("version", body["version"]))
}

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().StringVar(&healthURL, "url", "", "probe a running instance at this base URL (e.g. http://localhost:9085)")
}
