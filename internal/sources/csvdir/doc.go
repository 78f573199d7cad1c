// Package csvdir reads referral batches from a directory of CSV exports.
//
// The directory holds up to seven tables. user_referrals is the driving
// table: one referral per row, streamed in file order. user_referral_logs,
// referral_rewards, paid_transactions and user_logs enrich each referral
// through left joins; lead_log and user_referral_statuses are read for
// profiling only. A missing auxiliary table is a warning and the run
// continues with no rows for it; a missing driving table makes the source
// unavailable.
//
// # Architectural Position
//
// Implements the driven.Source port. Imports domain and logger only; knows
// nothing about validation, deduplication or sinks.
package csvdir
