package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/leadflow-labs/refproc-cli/internal/core/domain"
	"github.com/leadflow-labs/refproc-cli/internal/core/ports/driven"
	"github.com/leadflow-labs/refproc-cli/internal/logger"
)

// FileName is the report file written into the output directory.
const FileName = "final_report.csv"

// columns lists the report columns in order. The identity key leads so the
// destination stays keyed the same way across every sink type.
var columns = []string{
	"identity_key",
	domain.FieldReferralID,
	domain.FieldReferralSource,
	domain.FieldReferralAt,
	domain.FieldReferrerID,
	domain.FieldReferrerName,
	domain.FieldRefereeID,
	domain.FieldDescription,
	domain.FieldTransactionID,
	domain.FieldTransactionStatus,
	domain.FieldTransactionAt,
	domain.FieldRewardValue,
	domain.FieldRewardGrantedAt,
	"classification",
	"score",
}

// Ensure Sink implements the interface.
var _ driven.Sink = (*Sink)(nil)

// Sink writes processed referrals to final_report.csv.
type Sink struct {
	dir        string
	idempotent bool

	mu      sync.Mutex
	f       *os.File
	w       *csv.Writer
	tmpPath string
	closed  bool
}

// Options adjusts sink behaviour.
type Options struct {
	// Idempotent routes rows through a temporary file that atomically
	// replaces the report on Close.
	Idempotent bool
}

// New creates a CSV file sink writing into dir.
func New(dir string, opts Options) *Sink {
	return &Sink{dir: dir, idempotent: opts.Idempotent}
}

// Name returns the destination identifier.
func (s *Sink) Name() string {
	return "csv:" + s.finalPath()
}

// Open creates the output directory and the report file and writes the
// header row. Failure is fatal for the run.
func (s *Sink) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating %s: %v", domain.ErrSinkUnavailable, s.dir, err)
	}

	var (
		f   *os.File
		err error
	)
	if s.idempotent {
		// Temp file in the same directory so the final rename stays on one
		// filesystem.
		f, err = os.CreateTemp(s.dir, ".final_report-*.csv")
		if f != nil {
			s.tmpPath = f.Name()
		}
	} else {
		f, err = os.Create(s.finalPath())
	}
	if err != nil {
		return fmt.Errorf("%w: opening report file: %v", domain.ErrSinkUnavailable, err)
	}

	s.f = f
	s.w = csv.NewWriter(f)
	if err := s.w.Write(columns); err != nil {
		f.Close()
		return fmt.Errorf("%w: writing header: %v", domain.ErrSinkUnavailable, err)
	}
	return nil
}

// Write appends one batch of referrals to the report. A local file has no
// per-record failure mode, so any error is fatal for the run.
func (s *Sink) Write(ctx context.Context, batch []*domain.Referral) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil || s.closed {
		return fmt.Errorf("%w: sink not open", domain.ErrSinkUnavailable)
	}

	for _, r := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.w.Write(reportRow(r)); err != nil {
			return fmt.Errorf("writing referral %s: %w", r.IdentityKey, err)
		}
	}

	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("flushing report: %w", err)
	}
	return nil
}

// Close flushes the report and, in idempotent mode, atomically moves it into
// place. Safe to call more than once.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.f == nil {
		return nil
	}

	s.w.Flush()
	werr := s.w.Error()
	cerr := s.f.Close()
	s.f = nil

	if err := errors.Join(werr, cerr); err != nil {
		s.discardTemp()
		return fmt.Errorf("closing report: %w", err)
	}

	if s.idempotent {
		if err := os.Rename(s.tmpPath, s.finalPath()); err != nil {
			s.discardTemp()
			return fmt.Errorf("publishing report: %w", err)
		}
		logger.Debug("Report published to %s", s.finalPath())
	}
	return nil
}

func (s *Sink) finalPath() string {
	return filepath.Join(s.dir, FileName)
}

// discardTemp removes a leftover temp file after a failed close.
func (s *Sink) discardTemp() {
	if s.tmpPath == "" {
		return
	}
	if err := os.Remove(s.tmpPath); err != nil && !os.IsNotExist(err) {
		logger.Warn("Leaving temp report %s: %v", s.tmpPath, err)
	}
	s.tmpPath = ""
}

// reportRow renders one referral as a CSV record. Cleaned values win over
// the raw ones, matching what the classifier saw.
func reportRow(r *domain.Referral) []string {
	row := make([]string, 0, len(columns))
	for _, col := range columns {
		switch col {
		case "identity_key":
			row = append(row, r.IdentityKey)
		case "classification":
			row = append(row, r.Classification)
		case "score":
			row = append(row, formatScore(r))
		default:
			row = append(row, r.Field(col))
		}
	}
	return row
}

func formatScore(r *domain.Referral) string {
	if !r.Scored {
		return ""
	}
	return strconv.FormatFloat(r.Score, 'f', -1, 64)
}
