package domain

import "fmt"

// Status is the lifecycle state of a referral inside one pipeline run.
type Status string

const (
	// StatusPending is the state of a freshly loaded referral.
	StatusPending Status = "pending"

	// StatusValid marks a referral that passed validation.
	StatusValid Status = "valid"

	// StatusDuplicate marks a later occurrence of an already-seen identity
	// key. Duplicates never reach the classifier or the sink.
	StatusDuplicate Status = "duplicate"

	// StatusInvalid marks a referral that failed validation. The reasons
	// are kept on the referral for the run report.
	StatusInvalid Status = "invalid"

	// StatusProcessed marks a referral confirmed written by the sink.
	StatusProcessed Status = "processed"
)

// statusRank orders statuses so transitions can only move forward.
var statusRank = map[Status]int{
	StatusPending:   0,
	StatusValid:     1,
	StatusDuplicate: 2,
	StatusInvalid:   3,
	StatusProcessed: 4,
}

// Known reports whether s is one of the defined lifecycle states.
func (s Status) Known() bool {
	_, ok := statusRank[s]
	return ok
}

// Terminal reports whether the pipeline stops advancing this referral.
func (s Status) Terminal() bool {
	return s == StatusDuplicate || s == StatusInvalid || s == StatusProcessed
}

// Advance moves the referral to the target status. Moving backwards is a
// programming error and is rejected so stage ordering bugs surface early.
func (r *Referral) Advance(to Status) error {
	if !to.Known() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidStatus, to)
	}
	if statusRank[to] < statusRank[r.Status] {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, r.Status, to)
	}
	r.Status = to
	return nil
}
