package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/leadflow-labs/refproc-cli/internal/core/domain"
	"github.com/leadflow-labs/refproc-cli/internal/core/ports/driven"
	"github.com/leadflow-labs/refproc-cli/internal/core/ports/driving"
	"github.com/leadflow-labs/refproc-cli/internal/logger"
)

// Ensure Pipeline implements the interface.
var _ driving.PipelineRunner = (*Pipeline)(nil)

// Pipeline runs one referral batch end to end: load, validate, deduplicate,
// classify, write, report.
type Pipeline struct {
	source driven.Source
	sink   driven.Sink
	cfg    domain.PipelineConfig

	validator  *Validator
	classifier *Classifier
}

// NewPipeline creates a pipeline runner. The configuration is validated here
// so a malformed rule set aborts before any I/O happens.
func NewPipeline(source driven.Source, sink driven.Sink, cfg domain.PipelineConfig) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{
		source:     source,
		sink:       sink,
		cfg:        cfg,
		validator:  NewValidator(cfg.Validation),
		classifier: NewClassifier(cfg.Rules),
	}, nil
}

// Rules returns the effective classification rule set in evaluation order.
func (p *Pipeline) Rules() []domain.RuleSpec {
	return p.classifier.Rules()
}

// Run executes one batch run and returns its report. A non-nil error is a
// fatal abort; the report carries whatever counts accumulated before it.
func (p *Pipeline) Run(ctx context.Context, opts driving.RunOptions) (*domain.RunReport, error) {
	report := &domain.RunReport{
		RunID:       uuid.NewString(),
		Source:      p.source.Name(),
		Destination: p.sink.Name(),
		StartedAt:   time.Now().UTC(),
	}
	if opts.DryRun {
		report.Destination = "dry-run"
	}
	defer func() { report.FinishedAt = time.Now().UTC() }()

	logger.Info("Starting run %s: %s -> %s", report.RunID, report.Source, report.Destination)

	// 1. Open the source
	if err := p.openWithTimeout(ctx, p.source.Open); err != nil {
		return report, fmt.Errorf("open source: %w", err)
	}
	defer p.source.Close()

	// 2. Load, validate and deduplicate in one pass over the stream.
	// Cancelling the stream context unblocks the producer when collection
	// aborts early.
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	recsCh, errsCh := p.source.Records(streamCtx)
	survivors, err := p.collect(streamCtx, recsCh, errsCh, report)
	if err != nil {
		return report, err
	}
	logger.Info("Loaded %d records: %d valid, %d invalid, %d duplicates, %d load errors",
		report.Loaded, report.Valid, report.Invalid, report.Duplicates, report.LoadErrors)

	// 3. Classify the survivors
	logger.Section("Classify")
	for _, r := range survivors {
		name := p.classifier.Classify(r)
		logger.Debug("Classified %s as %s (rule %s)", r.IdentityKey, r.Classification, name)
	}

	// 4. Write to the destination
	if opts.DryRun {
		logger.Info("Dry run: skipping the %s destination", p.sink.Name())
		return report, nil
	}
	logger.Section("Write")
	if err := p.openWithTimeout(ctx, p.sink.Open); err != nil {
		return report, fmt.Errorf("open sink: %w", err)
	}
	defer p.sink.Close()

	if err := p.write(ctx, survivors, report); err != nil {
		return report, err
	}

	// 5. Commit the destination
	if err := p.sink.Close(); err != nil {
		return report, fmt.Errorf("close sink: %w", err)
	}

	logger.Info("Run complete: %d processed, %d failed writes", report.Processed, report.FailedWrites)
	return report, nil
}

// collect consumes the source stream, validating and deduplicating each
// record as it arrives. It returns the surviving referrals in
// first-occurrence order.
func (p *Pipeline) collect(
	ctx context.Context,
	recsCh <-chan domain.RawRecord,
	errsCh <-chan error,
	report *domain.RunReport,
) ([]*domain.Referral, error) {
	deduper := NewDeduper(p.cfg.DedupPolicy)

	// Drain both channels so trailing load errors are still counted after
	// the last record arrives.
	for recsCh != nil || errsCh != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case err, ok := <-errsCh:
			if !ok {
				errsCh = nil
				continue
			}
			if errors.Is(err, domain.ErrSourceUnavailable) {
				return nil, fmt.Errorf("load: %w", err)
			}
			report.LoadErrors++
			logger.Warn("Load error: %v", err)
			if p.cfg.FailureThreshold >= 0 && report.LoadErrors > p.cfg.FailureThreshold {
				return nil, fmt.Errorf("%w: %d load errors, threshold %d",
					domain.ErrLoadThresholdExceeded, report.LoadErrors, p.cfg.FailureThreshold)
			}

		case rec, ok := <-recsCh:
			if !ok {
				recsCh = nil
				continue
			}
			report.Loaded++
			p.admit(rec, deduper, report)
		}
	}
	return deduper.Survivors(), nil
}

// admit runs validation and deduplication for one loaded record.
func (p *Pipeline) admit(rec domain.RawRecord, deduper *Deduper, report *domain.RunReport) {
	r, err := domain.NewReferral(rec)
	if err != nil {
		report.CountInvalid([]string{"no_identity"})
		logger.Debug("Line %d: %v", rec.Line, err)
		return
	}

	if reasons := p.validator.Check(r); len(reasons) > 0 {
		for _, code := range reasons {
			r.AddInvalidReason(code)
		}
		_ = r.Advance(domain.StatusInvalid)
		report.CountInvalid(reasons)
		logger.Debug("Invalid %s: %v", r.IdentityKey, reasons)
		return
	}

	_ = r.Advance(domain.StatusValid)
	report.Valid++

	if deduper.Observe(r) {
		report.Duplicates++
		logger.Debug("Duplicate %s (line %d)", r.IdentityKey, rec.Line)
	}
}

// write hands the survivors to the sink in batches. A timed-out batch
// degrades to per-record failures and the run continues; any other sink
// error is fatal.
func (p *Pipeline) write(ctx context.Context, survivors []*domain.Referral, report *domain.RunReport) error {
	for start := 0; start < len(survivors); start += p.cfg.BatchSize {
		end := min(start+p.cfg.BatchSize, len(survivors))
		batch := survivors[start:end]

		batchCtx, cancel := context.WithTimeout(ctx, p.cfg.IOTimeout)
		err := p.sink.Write(batchCtx, batch)
		cancel()
		if err != nil {
			if !errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("write batch: %w", err)
			}
			for _, r := range batch {
				if r.WriteError == "" {
					r.WriteError = domain.ErrTimeout.Error()
				}
			}
			logger.Warn("Write batch timed out after %s", p.cfg.IOTimeout)
		}

		for _, r := range batch {
			if r.WriteError != "" {
				report.CountWriteFailure(r.IdentityKey, r.WriteError)
				logger.Debug("Write failed %s: %s", r.IdentityKey, r.WriteError)
				continue
			}
			_ = r.Advance(domain.StatusProcessed)
			report.Processed++
		}
	}
	return nil
}

// openWithTimeout bounds a source or sink open by the configured io_timeout.
func (p *Pipeline) openWithTimeout(ctx context.Context, open func(context.Context) error) error {
	openCtx, cancel := context.WithTimeout(ctx, p.cfg.IOTimeout)
	defer cancel()

	if err := open(openCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
		}
		return err
	}
	return nil
}
