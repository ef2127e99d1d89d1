package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	rulesFile string
	verbose   bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quality",
	Short: "Energy data quality monitoring engine",
	Long: `Energy Data Quality CLI

Scores the ingested energy_consumption and weather_data tables on
completeness, accuracy, consistency and freshness, records issues,
and alerts when a score drops below the threshold.

Usage:
  go run ./cmd/quality [command]

Examples:
  go run ./cmd/quality api
  go run ./cmd/quality check --dry-run
  go run ./cmd/quality issues list --status OPEN
  go run ./cmd/quality migrate`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&rulesFile, "rules", "", "rules YAML file (default is RULES_FILE or built-in rules)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
