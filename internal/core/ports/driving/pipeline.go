package driving

import (
	"context"

	"github.com/leadflow-labs/refproc-cli/internal/core/domain"
)

// PipelineRunner executes one referral batch run end to end.
type PipelineRunner interface {
	// Run loads, validates, deduplicates, classifies and writes one batch,
	// returning the run report. A non-nil error is a fatal abort; the
	// report still carries whatever counts accumulated before it.
	Run(ctx context.Context, opts RunOptions) (*domain.RunReport, error)

	// Rules returns the effective classification rule set in evaluation
	// order, for audit.
	Rules() []domain.RuleSpec
}

// RunOptions adjusts a single run.
type RunOptions struct {
	// DryRun classifies referrals but skips the sink entirely.
	DryRun bool
}
