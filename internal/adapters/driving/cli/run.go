package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leadflow-labs/refproc-cli/internal/adapters/driven/config/file"
	"github.com/leadflow-labs/refproc-cli/internal/core/domain"
	"github.com/leadflow-labs/refproc-cli/internal/core/ports/driven"
	"github.com/leadflow-labs/refproc-cli/internal/core/ports/driving"
	"github.com/leadflow-labs/refproc-cli/internal/core/services"
	"github.com/leadflow-labs/refproc-cli/internal/logger"
	"github.com/leadflow-labs/refproc-cli/internal/report"
	"github.com/leadflow-labs/refproc-cli/internal/sinks/csvfile"
	"github.com/leadflow-labs/refproc-cli/internal/sinks/sqlite"
	"github.com/leadflow-labs/refproc-cli/internal/sinks/webhook"
	"github.com/leadflow-labs/refproc-cli/internal/sources/csvdir"
)

// run command flags. They override the settings file for one invocation.
var (
	runSourceDir string
	runOutputDir string
	runDest      string
	runDryRun    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process one referral batch end to end",
	Long: `Loads the referral CSV exports, validates and deduplicates the records,
classifies them against the rule set and writes the survivors to the
configured destination. The run report and the column profiling report
land in the output directory.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runSourceDir, "source", "", "referral CSV directory (overrides settings)")
	runCmd.Flags().StringVar(&runOutputDir, "output", "", "report output directory (overrides settings)")
	runCmd.Flags().StringVar(&runDest, "dest", "", "destination: csv, sqlite or webhook (overrides settings)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "load, validate and classify without writing")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	source := csvdir.New(settings.Source.Dir, csvdir.Options{
		DefaultTimezone: settings.Source.DefaultTimezone,
	})
	sink, err := buildSink(settings)
	if err != nil {
		return err
	}

	pipeline, err := services.NewPipeline(source, sink, settings.Pipeline)
	if err != nil {
		return err
	}

	runReport, runErr := pipeline.Run(cmd.Context(), driving.RunOptions{DryRun: runDryRun})

	// Reports are written even when the run aborted; whatever counts
	// accumulated before the abort still matter to the operator.
	writer := report.New(settings.Output.Dir, settings.Output.ReportFormat)
	if path, err := writer.WriteRun(runReport); err != nil {
		logger.Error("Run report not written: %v", err)
	} else {
		logger.Info("Run report: %s", path)
	}
	if profiles := source.Profiles(); len(profiles) > 0 {
		if path, err := writer.WriteProfiles(profiles); err != nil {
			logger.Error("Profiling report not written: %v", err)
		} else {
			logger.Info("Profiling report: %s", path)
		}
	}
	report.LogSummary(runReport)

	if runErr != nil {
		return fmt.Errorf("run %s aborted: %w", runReport.RunID, runErr)
	}

	runExit = runReport.ExitCode()
	return nil
}

// loadSettings resolves the effective settings for this invocation: file,
// environment, then command-line flags.
func loadSettings() (domain.Settings, error) {
	settings, err := file.NewSettingsStore(configPath).Load()
	if err != nil {
		return settings, err
	}

	if runSourceDir != "" {
		settings.Source.Dir = runSourceDir
	}
	if runOutputDir != "" {
		settings.Output.Dir = runOutputDir
	}
	if runDest != "" {
		settings.Sink.Destination = domain.Destination(runDest)
	}
	return settings, nil
}

// buildSink constructs the destination adapter for the run.
func buildSink(settings domain.Settings) (driven.Sink, error) {
	idempotent := settings.Pipeline.IdempotentWrites
	switch settings.Sink.Destination {
	case domain.DestinationCSV:
		return csvfile.New(settings.Output.Dir, csvfile.Options{Idempotent: idempotent}), nil
	case domain.DestinationSQLite:
		return sqlite.New(settings.Sink.SQLitePath, sqlite.Options{Idempotent: idempotent}), nil
	case domain.DestinationWebhook:
		return webhook.New(settings.Sink.WebhookURL, webhook.Options{
			Idempotent: idempotent,
			RatePerSec: settings.Sink.WebhookRatePerSec,
		}), nil
	default:
		return nil, fmt.Errorf("%w: unknown destination %q",
			domain.ErrConfigInvalid, settings.Sink.Destination)
	}
}
