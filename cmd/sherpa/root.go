package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "sherpa",
	Short: "Sherpa - resilient generative AI request orchestrator",
	Long: `Sherpa is an orchestration service that fronts a pool of generative AI
API credentials and keeps requests flowing when individual credentials
fail, rate-limit, or run out of quota.

It provides:
  - Automatic credential rotation and failure recovery
  - Per-credential rate limiting and daily/monthly quotas
  - Character-based cost tracking with budget enforcement
  - Error classification with type-aware retry backoff
  - A priority request queue with bounded concurrency`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.CompletionOptions.DisableDefaultCmd = false
}
