// Package csvfile writes the final referral report as a CSV file in the
// output directory, one row per processed referral.
//
// The file is rewritten whole on every run. In idempotent mode the rows go
// to a temporary file that replaces final_report.csv atomically on Close, so
// an aborted run never leaves a torn report and a re-run converges on the
// same destination state.
//
// # Architectural Position
//
// Implements the driven.Sink port. A local file has no per-record failure
// mode: any write error means the destination itself is gone and is fatal.
package csvfile
