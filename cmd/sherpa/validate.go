package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"wander-hq/sherpa/pkg/cli"
	"wander-hq/sherpa/pkg/config"
)

var validateFlags struct {
	format string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load the configuration file, apply defaults and environment overrides,
and report the effective settings.

Examples:
  # Validate the default config file
  sherpa validate

  # Validate a specific file
  sherpa validate --config /etc/sherpa/config.yaml

  # Print the effective configuration as JSON
  sherpa validate --format json`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFlags.format, "format", "text", "output format: text, json")
}

// configSummary is the validate command's view of the effective settings.
// Secrets are reported as a count, never echoed.
type configSummary struct {
	ListenAddress     string  `json:"listen_address"`
	Credentials       int     `json:"credentials"`
	RequestsPerMinute int64   `json:"requests_per_minute"`
	RequestsPerHour   int64   `json:"requests_per_hour"`
	DailyQuota        int64   `json:"daily_quota"`
	MonthlyQuota      int64   `json:"monthly_quota"`
	DailyBudget       float64 `json:"daily_budget"`
	MonthlyBudget     float64 `json:"monthly_budget"`
	StorageBackend    string  `json:"storage_backend"`
	RetentionEnabled  bool    `json:"retention_enabled"`
	MetricsEnabled    bool    `json:"metrics_enabled"`
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", err.Error())
	}

	summary := configSummary{
		ListenAddress:     cfg.Server.ListenAddress,
		Credentials:       len(cfg.Credentials.Secrets),
		RequestsPerMinute: cfg.Limits.RequestsPerMinute,
		RequestsPerHour:   cfg.Limits.RequestsPerHour,
		DailyQuota:        cfg.Limits.DailyQuota,
		MonthlyQuota:      cfg.Limits.MonthlyQuota,
		DailyBudget:       cfg.Budget.Daily,
		MonthlyBudget:     cfg.Budget.Monthly,
		StorageBackend:    cfg.Storage.Backend,
		RetentionEnabled:  cfg.Retention.Enabled,
		MetricsEnabled:    cfg.Telemetry.Metrics.Enabled,
	}

	if cli.OutputFormat(validateFlags.format) == cli.FormatJSON {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, summary)
	}

	fmt.Println("✓ Configuration valid")
	fmt.Println()
	fmt.Printf("Listen address:      %s\n", summary.ListenAddress)
	fmt.Printf("Credentials:         %d\n", summary.Credentials)
	fmt.Printf("Requests per minute: %d\n", summary.RequestsPerMinute)
	fmt.Printf("Requests per hour:   %d\n", summary.RequestsPerHour)
	fmt.Printf("Daily quota:         %d\n", summary.DailyQuota)
	fmt.Printf("Monthly quota:       %d\n", summary.MonthlyQuota)
	fmt.Printf("Daily budget:        %.2f\n", summary.DailyBudget)
	fmt.Printf("Monthly budget:      %.2f\n", summary.MonthlyBudget)
	fmt.Printf("Storage backend:     %s\n", summary.StorageBackend)
	fmt.Printf("Retention enabled:   %t\n", summary.RetentionEnabled)
	fmt.Printf("Metrics enabled:     %t\n", summary.MetricsEnabled)
	return nil
}
