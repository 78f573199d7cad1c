package csvdir

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leadflow-labs/refproc-cli/internal/core/domain"
	"github.com/leadflow-labs/refproc-cli/internal/core/ports/driven"
	"github.com/leadflow-labs/refproc-cli/internal/logger"
)

// Tables within the export directory, without the .csv suffix.
const (
	tableUserReferrals    = "user_referrals"
	tableReferralLogs     = "user_referral_logs"
	tableRewards          = "referral_rewards"
	tableTransactions     = "paid_transactions"
	tableUserLogs         = "user_logs"
	tableLeadLog          = "lead_log"
	tableReferralStatuses = "user_referral_statuses"
)

// Ensure Source implements the interface.
var _ driven.Source = (*Source)(nil)

// Source streams referral records from a directory of CSV exports.
type Source struct {
	dir       string
	defaultTZ string
	caser     cases.Caser
	profiles  *profiler

	mu     sync.Mutex
	closed bool
}

// Options adjusts source behaviour.
type Options struct {
	// DefaultTimezone is the IANA zone applied to transactions whose row
	// carries no timezone_transaction value. Empty keeps the UTC instant.
	DefaultTimezone string
}

// New creates a CSV directory source.
func New(dir string, opts Options) *Source {
	return &Source{
		dir:       dir,
		defaultTZ: opts.DefaultTimezone,
		caser:     cases.Title(language.Und),
		profiles:  newProfiler(),
	}
}

// Name returns the source identifier.
func (s *Source) Name() string {
	return "csvdir:" + s.dir
}

// Open checks the directory exists and holds the driving table.
func (s *Source) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := os.Stat(s.dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s is not a readable directory", domain.ErrSourceUnavailable, s.dir)
	}
	if _, err := os.Stat(s.tablePath(tableUserReferrals)); err != nil {
		return fmt.Errorf("%w: driving table %s.csv missing from %s",
			domain.ErrSourceUnavailable, tableUserReferrals, s.dir)
	}
	return nil
}

// Records streams the driving table joined with the auxiliary tables.
// Auxiliary tables are read first; driving rows are then emitted in file
// order. Rows the CSV reader rejects are sent as load errors and skipped.
func (s *Source) Records(ctx context.Context) (<-chan domain.RawRecord, <-chan error) {
	recs := make(chan domain.RawRecord)
	errs := make(chan error, 1)

	go func() {
		defer close(recs)
		defer close(errs)

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			errs <- fmt.Errorf("%w: source closed", domain.ErrSourceUnavailable)
			return
		}
		s.mu.Unlock()

		aux := s.loadAuxiliary(ctx, errs)
		s.profileExtras(ctx, errs)
		s.streamDriving(ctx, aux, recs, errs)
	}()

	return recs, errs
}

// Profiles returns per-column tallies for every table read so far.
func (s *Source) Profiles() []domain.ColumnProfile {
	return s.profiles.snapshot()
}

// Close releases resources.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Source) tablePath(name string) string {
	return filepath.Join(s.dir, name+".csv")
}

// streamDriving reads user_referrals row by row, joining and cleaning each
// record before sending it. Per-row reader errors go to the error channel;
// failing to open or head the table is fatal for the run.
func (s *Source) streamDriving(
	ctx context.Context,
	aux *auxTables,
	recs chan<- domain.RawRecord,
	errs chan<- error,
) {
	f, err := os.Open(s.tablePath(tableUserReferrals))
	if err != nil {
		s.emitErr(ctx, errs, fmt.Errorf("%w: %s: %v", domain.ErrSourceUnavailable, tableUserReferrals, err))
		return
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		s.emitErr(ctx, errs, fmt.Errorf("%w: %s: reading header: %v",
			domain.ErrSourceUnavailable, tableUserReferrals, err))
		return
	}
	header = trimAll(header)
	logger.Info("Reading %s (%d columns)", tableUserReferrals, len(header))

	row := 0
	for {
		if ctx.Err() != nil {
			return
		}

		values, err := r.Read()
		if errors.Is(err, io.EOF) {
			return
		}
		row++
		if err != nil {
			if !s.emitErr(ctx, errs, fmt.Errorf("%s row %d: %w", tableUserReferrals, row, err)) {
				return
			}
			continue
		}

		s.profiles.observe(tableUserReferrals, header, values)
		rec := s.buildRecord(row, rowMap(header, values), aux)

		select {
		case <-ctx.Done():
			return
		case recs <- rec:
		}
	}
}

// emitErr sends one load error, giving up when the run is cancelled.
func (s *Source) emitErr(ctx context.Context, errs chan<- error, err error) bool {
	select {
	case <-ctx.Done():
		return false
	case errs <- err:
		return true
	}
}

func trimAll(values []string) []string {
	for i, v := range values {
		values[i] = strings.TrimSpace(v)
	}
	return values
}

// rowMap pairs header names with row values. Short rows leave the trailing
// columns empty.
func rowMap(header, values []string) map[string]string {
	fields := make(map[string]string, len(header))
	for i, col := range header {
		if i < len(values) {
			fields[col] = values[i]
		} else {
			fields[col] = ""
		}
	}
	return fields
}
