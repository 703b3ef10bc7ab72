// Package commands implements the appraisal CLI.
package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical-ai/appraisal/cmd/appraisal/ui"
)

// Persistent flag values.
var (
	cfgFile     string
	verbose     bool
	noColor     bool
	timeoutFlag time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "appraisal",
	Short: "Price real-estate listings from free-form documents",
	Long: `appraisal reads listing documents, has a language model pull out one row of
features per property and prices each row with an incrementally trained model.

  appraisal train sold-q1.txt sold-q2.txt   documents with prices update the model
  appraisal predict listing.txt             documents without prices are priced`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		ui.InitUI(noColor, verbose)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "YAML config file (default: built-in settings plus environment)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log pipeline progress and print parse diagnostics")
	flags.BoolVar(&noColor, "no-color", false, "plain output without colors or progress animation")
	flags.DurationVar(&timeoutFlag, "timeout", 10*time.Minute, "give up after this long")
}

// Execute runs the CLI, reporting version as `appraisal --version`.
func Execute(version string) error {
	rootCmd.Version = version
	return rootCmd.Execute()
}
