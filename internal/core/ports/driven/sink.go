package driven

import (
	"context"

	"github.com/leadflow-labs/refproc-cli/internal/core/domain"
)

// Sink persists processed referrals to the configured destination.
// Each destination type (csv file, sqlite, webhook) implements this interface.
type Sink interface {
	// Name returns the destination identifier used in reports and logs.
	Name() string

	// Open prepares the destination for writing. Called once before the
	// first Write. Failure is fatal for the run.
	Open(ctx context.Context) error

	// Write persists one batch. A referral the destination rejects gets its
	// WriteError field set and the batch continues; a non-nil return means
	// the destination itself is unavailable and the run must stop.
	Write(ctx context.Context, batch []*domain.Referral) error

	// Close flushes buffered output and releases resources. File sinks
	// perform their atomic rename here.
	Close() error
}
