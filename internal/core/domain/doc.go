// Package domain defines the core business entities for refproc.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Referral: One referred lead moving through the pipeline
//   - RawRecord: A merged source row before it becomes a Referral
//   - RuleSpec / Condition: The closed classification rule model
//   - FieldRule: A configurable validation constraint
//   - RunReport: The structured per-run summary
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
