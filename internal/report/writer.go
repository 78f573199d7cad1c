// Package report persists the run summary and the source profiling report
// into the output directory.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/leadflow-labs/refproc-cli/internal/core/domain"
	"github.com/leadflow-labs/refproc-cli/internal/logger"
)

// File names inside the output directory.
const (
	// RunReportBase is the run report file name without its format
	// extension.
	RunReportBase = "run_report"

	// ProfilingFileName is the column profiling report.
	ProfilingFileName = "profiling_report.csv"
)

// Writer persists run artefacts into one output directory.
type Writer struct {
	dir    string
	format domain.ReportFormat
}

// New creates a report writer for dir.
func New(dir string, format domain.ReportFormat) *Writer {
	return &Writer{dir: dir, format: format}
}

// WriteRun persists the run report as run_report.<ext> and returns the
// written path.
func (w *Writer) WriteRun(report *domain.RunReport) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	switch w.format {
	case domain.ReportFormatYAML:
		data, err = yaml.Marshal(report)
	default:
		data, err = json.MarshalIndent(report, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return "", fmt.Errorf("encoding run report: %w", err)
	}

	path := filepath.Join(w.dir, RunReportBase+"."+w.format.Ext())
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing run report: %w", err)
	}
	return path, nil
}

// WriteProfiles persists the column profiles as profiling_report.csv, one
// row per table column, and returns the written path.
func (w *Writer) WriteProfiles(profiles []domain.ColumnProfile) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	domain.SortProfiles(profiles)

	rows := make([][]string, 0, len(profiles)+1)
	rows = append(rows, []string{"table", "column", "null_count", "distinct_count"})
	for _, p := range profiles {
		rows = append(rows, []string{
			p.Table,
			p.Column,
			strconv.Itoa(p.NullCount),
			strconv.Itoa(p.DistinctCount),
		})
	}

	path := filepath.Join(w.dir, ProfilingFileName)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating profiling report: %w", err)
	}

	err = csv.NewWriter(f).WriteAll(rows)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("writing profiling report: %w", err)
	}
	return path, nil
}

// LogSummary prints the run outcome to the log stream. It runs even when
// persisting the report fails, so the container log always carries the
// counts.
func LogSummary(report *domain.RunReport) {
	logger.Section("Summary")
	logger.Info("Run %s finished in %s", report.RunID, report.Duration().Round(time.Millisecond))
	logger.Info("Loaded %d records: %d valid, %d invalid, %d duplicates, %d load errors",
		report.Loaded, report.Valid, report.Invalid, report.Duplicates, report.LoadErrors)
	logger.Info("Wrote %d to %s, %d failed", report.Processed, report.Destination, report.FailedWrites)

	for _, code := range sortedReasons(report.InvalidReasons) {
		logger.Info("  invalid %s: %d", code, report.InvalidReasons[code])
	}
	for _, wf := range report.WriteFailures {
		logger.Warn("  failed write %s: %s", wf.IdentityKey, wf.Reason)
	}
}

// sortedReasons returns reason codes in stable order.
func sortedReasons(tally map[string]int) []string {
	codes := make([]string, 0, len(tally))
	for code := range tally {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
