package domain

import "time"

// Exit codes reported by the process, in the order the run command checks
// them: a fatal stage error beats partial per-record failures.
const (
	ExitOK      = 0
	ExitFatal   = 1
	ExitPartial = 2
)

// WriteFailure records one referral the sink could not persist.
type WriteFailure struct {
	IdentityKey string `json:"identity_key" yaml:"identity_key"`
	Reason      string `json:"reason" yaml:"reason"`
}

// RunReport is the structured summary emitted at the end of a run. Counts
// follow the lifecycle: every loaded record ends up in exactly one of
// Invalid, Duplicates, Processed or FailedWrites.
type RunReport struct {
	RunID       string    `json:"run_id" yaml:"run_id"`
	Source      string    `json:"source" yaml:"source"`
	Destination string    `json:"destination" yaml:"destination"`
	StartedAt   time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time `json:"finished_at" yaml:"finished_at"`

	Loaded       int `json:"loaded" yaml:"loaded"`
	LoadErrors   int `json:"load_errors" yaml:"load_errors"`
	Valid        int `json:"valid" yaml:"valid"`
	Invalid      int `json:"invalid" yaml:"invalid"`
	Duplicates   int `json:"duplicates" yaml:"duplicates"`
	Processed    int `json:"processed" yaml:"processed"`
	FailedWrites int `json:"failed_writes" yaml:"failed_writes"`

	// InvalidReasons tallies validation reason codes across the run.
	InvalidReasons map[string]int `json:"invalid_reasons,omitempty" yaml:"invalid_reasons,omitempty"`

	// WriteFailures lists the referrals the sink rejected, by identity key.
	WriteFailures []WriteFailure `json:"write_failures,omitempty" yaml:"write_failures,omitempty"`
}

// Duration is the wall-clock span of the run.
func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Clean reports whether every loaded referral made it to the destination.
func (r *RunReport) Clean() bool {
	return r.LoadErrors == 0 && r.Invalid == 0 && r.FailedWrites == 0
}

// ExitCode maps the run outcome to the process exit code. Fatal aborts are
// handled by the caller before the report is consulted, so this only
// distinguishes complete success from partial per-record failure.
func (r *RunReport) ExitCode() int {
	if r.Clean() {
		return ExitOK
	}
	return ExitPartial
}

// CountInvalid tallies a referral's reason codes into the report.
func (r *RunReport) CountInvalid(reasons []string) {
	if r.InvalidReasons == nil {
		r.InvalidReasons = make(map[string]int)
	}
	r.Invalid++
	for _, code := range reasons {
		r.InvalidReasons[code]++
	}
}

// CountWriteFailure records a per-record sink failure.
func (r *RunReport) CountWriteFailure(identityKey, reason string) {
	r.FailedWrites++
	r.WriteFailures = append(r.WriteFailures, WriteFailure{
		IdentityKey: identityKey,
		Reason:      reason,
	})
}
