package cli

import (
	"github.com/spf13/cobra"

	"github.com/leadflow-labs/refproc-cli/internal/adapters/driven/config/file"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage run settings",
	Long: `View the effective settings or write a starter settings file.

Settings resolve in layers: shipped defaults, then the TOML file, then
REFPROC_* environment variables, then command-line flags.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective settings",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter settings file",
	Long: `Writes a commented refproc.toml to the --config path (or the working
directory) for the operator to edit. Refuses to overwrite an existing
file.`,
	RunE: runConfigInit,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	store := file.NewSettingsStore(configPath)
	settings, err := store.Load()
	if err != nil {
		return err
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()
	cmd.Printf("Settings file: %s\n", store.Path())
	cmd.Println()

	cmd.Println("[Source]")
	cmd.Printf("  Directory: %s\n", settings.Source.Dir)
	if settings.Source.DefaultTimezone != "" {
		cmd.Printf("  Default timezone: %s\n", settings.Source.DefaultTimezone)
	}
	cmd.Println()

	cmd.Println("[Output]")
	cmd.Printf("  Directory: %s\n", settings.Output.Dir)
	cmd.Printf("  Report format: %s\n", settings.Output.ReportFormat)
	cmd.Println()

	cmd.Println("[Sink]")
	cmd.Printf("  Destination: %s\n", settings.Sink.Destination.Description())
	switch {
	case settings.Sink.SQLitePath != "":
		cmd.Printf("  SQLite path: %s\n", settings.Sink.SQLitePath)
	case settings.Sink.WebhookURL != "":
		cmd.Printf("  Webhook URL: %s\n", settings.Sink.WebhookURL)
	}
	cmd.Println()

	cmd.Println("[Pipeline]")
	if settings.Pipeline.DedupPolicy.Valid() {
		cmd.Printf("  Dedup policy: %s\n", settings.Pipeline.DedupPolicy)
	} else {
		cmd.Printf("  Dedup policy: (not set, required before running)\n")
	}
	cmd.Printf("  Failure threshold: %d\n", settings.Pipeline.FailureThreshold)
	cmd.Printf("  I/O timeout: %s\n", settings.Pipeline.IOTimeout)
	cmd.Printf("  Batch size: %d\n", settings.Pipeline.BatchSize)
	cmd.Printf("  Idempotent writes: %t\n", settings.Pipeline.IdempotentWrites)
	cmd.Printf("  Validation rules: %d\n", len(settings.Pipeline.Validation))
	cmd.Printf("  Classification rules: %d\n", len(settings.Pipeline.Rules))

	return nil
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	store := file.NewSettingsStore(configPath)
	if err := store.WriteDefault(); err != nil {
		return err
	}
	cmd.Printf("Wrote %s\n", store.Path())
	return nil
}
