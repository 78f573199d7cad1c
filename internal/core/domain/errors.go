package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// Fatal errors. Any of these aborts the run with exit code 1.

	// ErrConfigInvalid indicates the pipeline configuration is malformed
	// or incomplete, e.g. an unknown dedup policy or rule operator.
	ErrConfigInvalid = errors.New("configuration invalid")

	// ErrSourceUnavailable indicates the referral source could not be
	// opened or its driving table is missing.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrSinkUnavailable indicates the destination could not be reached
	// when the sink was opened.
	ErrSinkUnavailable = errors.New("sink unavailable")

	// ErrLoadThresholdExceeded indicates load errors passed the configured
	// failure threshold and the run was aborted.
	ErrLoadThresholdExceeded = errors.New("load error threshold exceeded")

	// Recoverable per-record errors. These are counted and reported but
	// never abort the run.

	// ErrNoIdentity indicates a record carries too little information to
	// derive an identity key. The record is counted invalid with reason
	// code "no_identity".
	ErrNoIdentity = errors.New("identity key not derivable")

	// ErrInvalidStatus indicates an illegal lifecycle transition.
	ErrInvalidStatus = errors.New("invalid status transition")

	// ErrTimeout indicates an I/O operation exceeded the configured
	// io_timeout. Fatal during source/sink open, per-record on writes.
	ErrTimeout = errors.New("operation timed out")
)
