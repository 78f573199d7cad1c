// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The Pipeline service runs one referral batch end to end; the Validator,
// Deduper and Classifier carry the per-stage logic and stay free of I/O.
package services
