package driven

import (
	"context"

	"github.com/leadflow-labs/refproc-cli/internal/core/domain"
)

// Source streams raw referral records from a batch input location.
// Each source type (CSV directory today) implements this interface.
type Source interface {
	// Name returns the source identifier used in reports and logs.
	Name() string

	// Open checks the source is reachable and the driving table exists.
	// Called once before Records. Failure is fatal for the run.
	Open(ctx context.Context) error

	// Records streams the source's records in input order.
	// Returns channels for records and load errors; both close when the
	// source is exhausted. Per-record errors are recoverable and counted
	// by the consumer. An error wrapping ErrLoadThresholdExceeded or
	// ErrSourceUnavailable is fatal and terminates the stream.
	Records(ctx context.Context) (<-chan domain.RawRecord, <-chan error)

	// Profiles returns per-column null and distinct tallies for every
	// table the source read. Complete only after the record channel closed.
	Profiles() []domain.ColumnProfile

	// Close releases resources.
	Close() error
}
