package domain

import "fmt"

const unknownDescription = "Unknown"

// Destination selects where processed referrals are written.
type Destination string

// Available destinations.
const (
	// DestinationCSV writes the final report CSV into the output directory.
	DestinationCSV Destination = "csv"

	// DestinationSQLite upserts referrals into a SQLite database.
	DestinationSQLite Destination = "sqlite"

	// DestinationWebhook posts referral batches to an HTTP endpoint.
	DestinationWebhook Destination = "webhook"
)

// IsValid returns true if the destination is recognised.
func (d Destination) IsValid() bool {
	switch d {
	case DestinationCSV, DestinationSQLite, DestinationWebhook:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (d Destination) String() string {
	return string(d)
}

// Description returns a human-readable description of the destination.
func (d Destination) Description() string {
	switch d {
	case DestinationCSV:
		return "CSV file (final report in the output directory)"
	case DestinationSQLite:
		return "SQLite database (idempotent upsert)"
	case DestinationWebhook:
		return "HTTP webhook (rate-limited batches)"
	default:
		return unknownDescription
	}
}

// AllDestinations returns all available destinations.
func AllDestinations() []Destination {
	return []Destination{
		DestinationCSV,
		DestinationSQLite,
		DestinationWebhook,
	}
}

// ReportFormat selects the encoding of the persisted run report.
type ReportFormat string

// Available report formats.
const (
	ReportFormatJSON ReportFormat = "json"
	ReportFormatYAML ReportFormat = "yaml"
)

// IsValid returns true if the format is recognised.
func (f ReportFormat) IsValid() bool {
	return f == ReportFormatJSON || f == ReportFormatYAML
}

// String returns the string representation.
func (f ReportFormat) String() string {
	return string(f)
}

// Ext returns the file extension for the format, without the dot.
func (f ReportFormat) Ext() string {
	return string(f)
}

// SourceSettings holds input location configuration.
type SourceSettings struct {
	// Dir is the directory holding the referral CSV exports.
	Dir string

	// DefaultTimezone is the IANA zone applied to transactions whose row
	// carries no timezone of its own. Empty keeps the UTC instant.
	DefaultTimezone string
}

// OutputSettings holds report output configuration.
type OutputSettings struct {
	// Dir receives the run report, the profiling report and the CSV
	// destination file.
	Dir string

	// ReportFormat is the encoding of the persisted run report.
	ReportFormat ReportFormat
}

// SinkSettings holds destination configuration.
type SinkSettings struct {
	// Destination selects the sink implementation.
	Destination Destination

	// SQLitePath is the database file for the sqlite destination.
	SQLitePath string

	// WebhookURL is the endpoint for the webhook destination.
	WebhookURL string

	// WebhookRatePerSec caps outgoing webhook requests. Zero uses the
	// adapter default.
	WebhookRatePerSec float64
}

// Settings holds all application settings for one run. Every invocation
// loads a fresh Settings; nothing persists between runs.
type Settings struct {
	// Source holds input location settings.
	Source SourceSettings

	// Output holds report output settings.
	Output OutputSettings

	// Sink holds destination settings.
	Sink SinkSettings

	// Pipeline holds validation, dedup and classification settings.
	Pipeline PipelineConfig
}

// Validate rejects settings the run command cannot act on.
func (s *Settings) Validate() error {
	if s.Source.Dir == "" {
		return fmt.Errorf("%w: source directory not set", ErrConfigInvalid)
	}
	if s.Output.Dir == "" {
		return fmt.Errorf("%w: output directory not set", ErrConfigInvalid)
	}
	if !s.Sink.Destination.IsValid() {
		return fmt.Errorf("%w: destination must be one of %v, got %q",
			ErrConfigInvalid, AllDestinations(), s.Sink.Destination)
	}
	if s.Sink.Destination == DestinationSQLite && s.Sink.SQLitePath == "" {
		return fmt.Errorf("%w: sqlite destination needs a database path", ErrConfigInvalid)
	}
	if s.Sink.Destination == DestinationWebhook && s.Sink.WebhookURL == "" {
		return fmt.Errorf("%w: webhook destination needs a URL", ErrConfigInvalid)
	}
	if !s.Output.ReportFormat.IsValid() {
		return fmt.Errorf("%w: report format must be json or yaml, got %q",
			ErrConfigInvalid, s.Output.ReportFormat)
	}
	return s.Pipeline.Validate()
}
