// Package sqlite writes processed referrals into a SQLite database.
//
// This sink uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO, keeping the batch binary cross-compilable. Rows are keyed
// by identity key. In idempotent mode every write is an upsert, so re-running
// a batch after a partial failure converges on the same database state
// instead of duplicating rows; in append mode a key collision is reported as
// a per-record write failure and the rest of the batch proceeds.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql
// files. Pending migrations run when the sink opens.
//
// # Thread Safety
//
// All operations are thread-safe. The sink relies on database-level locking
// provided by SQLite in WAL mode.
package sqlite
