package domain

import (
	"fmt"
	"time"
)

// PipelineConfig carries everything the pipeline stages need for one run.
// Each invocation builds a fresh config; nothing is kept between runs.
type PipelineConfig struct {
	// DedupPolicy must be set explicitly per deployment.
	DedupPolicy DedupPolicy

	// Validation lists the field constraints applied by the validator.
	Validation []FieldRule

	// Rules is the ordered classification rule set.
	Rules []RuleSpec

	// FailureThreshold is the maximum number of load errors tolerated
	// before the run aborts fatally. Zero aborts on the first load error;
	// a negative value disables the check.
	FailureThreshold int

	// IOTimeout bounds source open, sink open and each sink write batch.
	IOTimeout time.Duration

	// BatchSize is the number of referrals handed to the sink per write.
	BatchSize int

	// IdempotentWrites selects the sink's upsert mode so re-runs after a
	// partial failure do not duplicate destination records.
	IdempotentWrites bool
}

// Validate rejects configurations the pipeline cannot run with. A silent
// dedup default is deliberately not provided: the policy changes observable
// output, so deployments have to state it.
func (c PipelineConfig) Validate() error {
	if !c.DedupPolicy.Valid() {
		return fmt.Errorf("%w: dedup_policy must be %q or %q, got %q",
			ErrConfigInvalid, DedupFirstWins, DedupLastWins, c.DedupPolicy)
	}
	for _, fr := range c.Validation {
		if err := fr.Validate(); err != nil {
			return err
		}
	}
	for _, rs := range c.Rules {
		if err := rs.Validate(); err != nil {
			return err
		}
	}
	if c.IOTimeout <= 0 {
		return fmt.Errorf("%w: io_timeout must be positive", ErrConfigInvalid)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be positive", ErrConfigInvalid)
	}
	return nil
}
