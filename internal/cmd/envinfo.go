package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/fulmenhq/gofulmen/crucible"

	"github.com/PitchConnect/google-drive-service/internal/config"
	"github.com/PitchConnect/google-drive-service/internal/observability"
)

var envInfoFormat string

// envInfo is the YAML-serializable view of the environment report.
type envInfo struct {
	Application struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
		Commit  string `yaml:"commit"`
		Built   string `yaml:"built"`
	} `yaml:"application"`
	SSOT struct {
		Gofulmen string `yaml:"gofulmen"`
		Crucible string `yaml:"crucible"`
	} `yaml:"ssot"`
	Runtime struct {
		GoVersion string `yaml:"go_version"`
		GOOS      string `yaml:"goos"`
		GOARCH    string `yaml:"goarch"`
		NumCPU    int    `yaml:"num_cpu"`
	} `yaml:"runtime"`
	Config *config.Config `yaml:"config,omitempty"`
}

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display comprehensive environment, configuration, and version information.",
	Run: func(cmd *cobra.Command, args []string) {
		version := crucible.GetVersion()
		identity := GetAppIdentity()

		info := envInfo{}
		info.Application.Name = identity.BinaryName
		info.Application.Version = versionInfo.Version
		info.Application.Commit = versionInfo.Commit
		info.Application.Built = versionInfo.BuildDate
		info.SSOT.Gofulmen = version.Gofulmen
		info.SSOT.Crucible = version.Crucible
		info.Runtime.GoVersion = runtime.Version()
		info.Runtime.GOOS = runtime.GOOS
		info.Runtime.GOARCH = runtime.GOARCH
		info.Runtime.NumCPU = runtime.NumCPU()

		cfg, err := config.Load(cmd.Context())
		if err != nil {
			observability.CLILogger.Warn("Config load failed", zap.Error(err))
		} else {
			info.Config = cfg
		}

		if envInfoFormat == "yaml" {
			out, err := yaml.Marshal(info)
			if err != nil {
				observability.CLILogger.Error("Failed to render YAML", zap.Error(err))
				return
			}
			fmt.Print(string(out))
			return
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Section", "Key", "Value"})

		t.AppendRows([]table.Row{
			{"Application", "Name", info.Application.Name},
			{"", "Version", info.Application.Version},
			{"", "Commit", info.Application.Commit},
			{"", "Built", info.Application.Built},
		})
		t.AppendSeparator()
		t.AppendRows([]table.Row{
			{"SSOT", "Gofulmen", info.SSOT.Gofulmen},
			{"", "Crucible", info.SSOT.Crucible},
		})
		t.AppendSeparator()
		t.AppendRows([]table.Row{
			{"Runtime", "Go Version", info.Runtime.GoVersion},
			{"", "GOOS", info.Runtime.GOOS},
			{"", "GOARCH", info.Runtime.GOARCH},
			{"", "NumCPU", info.Runtime.NumCPU},
		})

		if cfg != nil {
			t.AppendSeparator()
			t.AppendRows([]table.Row{
				{"Server", "Host", cfg.Server.Host},
				{"", "Port", cfg.Server.Port},
				{"", "Throttle Enabled", cfg.Server.Throttle.Enabled},
			})
			t.AppendSeparator()
			t.AppendRows([]table.Row{
				{"Drive", "Credentials Path", cfg.Drive.CredentialsPath},
				{"", "Token Path", cfg.Drive.TokenPath},
				{"", "Redirect URI", cfg.Drive.RedirectURI},
				{"", "Upload Chunk Size", cfg.Drive.UploadChunkSize},
			})
			t.AppendSeparator()
			t.AppendRows([]table.Row{
				{"Resilience", "Max Retries", cfg.Resilience.Retry.MaxRetries},
				{"", "Initial Delay", cfg.Resilience.Retry.InitialDelay.String()},
				{"", "Max Delay", cfg.Resilience.Retry.MaxDelay.String()},
				{"", "Backoff Factor", cfg.Resilience.Retry.BackoffFactor},
				{"", "Rate Limit (rps)", cfg.Resilience.RateLimit.RequestsPerSecond},
				{"", "Burst", cfg.Resilience.RateLimit.Burst},
				{"", "Failure Threshold", cfg.Resilience.Circuit.FailureThreshold},
				{"", "Reset Timeout", cfg.Resilience.Circuit.ResetTimeout.String()},
			})
			t.AppendSeparator()
			t.AppendRows([]table.Row{
				{"Observability", "Log Level", cfg.Logging.Level},
				{"", "Log Profile", cfg.Logging.Profile},
				{"", "Metrics Enabled", cfg.Metrics.Enabled},
				{"", "Metrics Port", cfg.Metrics.Port},
			})
		}

		t.Render()
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
	envInfoCmd.Flags().StringVar(&envInfoFormat, "format", "table", "output format (table or yaml)")
}
