package cli

import (
	"github.com/spf13/cobra"

	"github.com/leadflow-labs/refproc-cli/internal/core/domain"
	"github.com/leadflow-labs/refproc-cli/internal/logger"
)

// version is stamped at build time via -ldflags.
var version = "dev"

// Persistent flags shared by every command.
var (
	configPath  string
	verboseFlag bool
)

// runExit carries the exit code of a completed run. Partial per-record
// failure exits 2 without being a command error, so it cannot travel
// through RunE's return value.
var runExit = domain.ExitOK

var rootCmd = &cobra.Command{
	Use:   "refproc",
	Short: "Batch referral processing pipeline",
	Long: `refproc loads referral CSV exports, validates and deduplicates the
records, classifies them against the configured rule set and writes the
survivors to the configured destination.

Built to run as a one-shot container job. Exit code 0 means every record
reached the destination, 1 means the run aborted, 2 means some records
failed and are listed in the run report.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verboseFlag)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"settings file (default ./refproc.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false,
		"per-record debug logging")
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("%v", err)
		return domain.ExitFatal
	}
	return runExit
}
