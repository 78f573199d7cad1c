package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/leadflow-labs/refproc-cli/internal/core/domain"
	"github.com/leadflow-labs/refproc-cli/internal/core/ports/driven"
	"github.com/leadflow-labs/refproc-cli/internal/sinks/sqlite/migrations"
)

// Ensure Sink implements the interface.
var _ driven.Sink = (*Sink)(nil)

// Sink upserts processed referrals into a SQLite database file.
type Sink struct {
	path       string
	idempotent bool
	db         *sql.DB
}

// Options adjusts sink behaviour.
type Options struct {
	// Idempotent turns writes into upserts keyed on the identity key.
	// When false, rows are appended and a key collision fails that record.
	Idempotent bool
}

// New creates a SQLite sink writing to the database file at path. The file
// and its parent directory are created on Open when missing.
func New(path string, opts Options) *Sink {
	return &Sink{path: path, idempotent: opts.Idempotent}
}

// Name returns the destination identifier.
func (s *Sink) Name() string {
	return "sqlite:" + s.path
}

// Open opens the database, verifies the connection and applies pending
// migrations. Failure is fatal for the run.
func (s *Sink) Open(ctx context.Context) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: creating database directory: %v", domain.ErrSinkUnavailable, err)
		}
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", s.path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("%w: opening database: %v", domain.ErrSinkUnavailable, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("%w: reaching database: %v", domain.ErrSinkUnavailable, err)
	}

	if err := migrate(ctx, db, migrations.FS); err != nil {
		db.Close()
		return fmt.Errorf("%w: running migrations: %v", domain.ErrSinkUnavailable, err)
	}

	s.db = db
	return nil
}

// Write persists one batch inside a single transaction. A referral the
// database rejects gets its WriteError set and the batch continues; a
// non-nil return means the database itself failed and the run must stop.
func (s *Sink) Write(ctx context.Context, batch []*domain.Referral) error {
	if s.db == nil {
		return fmt.Errorf("%w: sink not opened", domain.ErrSinkUnavailable)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning batch: %w", err)
	}
	defer tx.Rollback()

	stmt := insertReferral
	if s.idempotent {
		stmt = upsertReferral
	}

	for _, r := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}

		rawJSON, err := json.Marshal(r.Raw)
		if err != nil {
			r.WriteError = fmt.Sprintf("encoding raw fields: %v", err)
			continue
		}

		_, err = tx.ExecContext(ctx, stmt,
			r.IdentityKey,
			nullString(r.Field(domain.FieldReferralID)),
			nullString(r.Field(domain.FieldReferralSource)),
			nullString(r.Field(domain.FieldReferralAt)),
			nullString(r.FirstSeenAt),
			nullString(r.Field(domain.FieldReferrerID)),
			nullString(r.Field(domain.FieldReferrerName)),
			nullString(r.Field(domain.FieldRefereeID)),
			nullString(r.Field(domain.FieldDescription)),
			nullString(r.Field(domain.FieldTransactionID)),
			nullString(r.Field(domain.FieldTransactionStatus)),
			nullString(r.Field(domain.FieldTransactionAt)),
			nullString(r.Field(domain.FieldTransactionAtLoc)),
			nullFloat(r.Field(domain.FieldRewardValue)),
			nullString(r.Field(domain.FieldRewardGrantedAt)),
			r.Classification,
			scoreValue(r),
			string(rawJSON),
		)
		if err != nil {
			// A cancelled context poisons the whole transaction; anything
			// else rejects just this row.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.WriteError = err.Error()
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}
	return nil
}

// Close closes the database connection. Safe to call more than once.
func (s *Sink) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

const upsertReferral = `
	INSERT INTO referrals (
		identity_key, referral_id, referral_source, referral_at, first_seen_at,
		referrer_id, referrer_name, referee_id, description,
		transaction_id, transaction_status, transaction_at, transaction_at_local,
		reward_value, reward_granted_at, classification, score, raw_fields
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(identity_key) DO UPDATE SET
		referral_id = excluded.referral_id,
		referral_source = excluded.referral_source,
		referral_at = excluded.referral_at,
		first_seen_at = excluded.first_seen_at,
		referrer_id = excluded.referrer_id,
		referrer_name = excluded.referrer_name,
		referee_id = excluded.referee_id,
		description = excluded.description,
		transaction_id = excluded.transaction_id,
		transaction_status = excluded.transaction_status,
		transaction_at = excluded.transaction_at,
		transaction_at_local = excluded.transaction_at_local,
		reward_value = excluded.reward_value,
		reward_granted_at = excluded.reward_granted_at,
		classification = excluded.classification,
		score = excluded.score,
		raw_fields = excluded.raw_fields
`

const insertReferral = `
	INSERT INTO referrals (
		identity_key, referral_id, referral_source, referral_at, first_seen_at,
		referrer_id, referrer_name, referee_id, description,
		transaction_id, transaction_status, transaction_at, transaction_at_local,
		reward_value, reward_granted_at, classification, score, raw_fields
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// migrate runs all pending migrations.
func migrate(ctx context.Context, db *sql.DB, fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_referrals.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		// Read and execute migration
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		// Each migration records its own version row as its last statement.
		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// nullString returns nil for empty strings, otherwise the string.
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// nullFloat returns nil for values that do not parse as a number.
func nullFloat(s string) interface{} {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return f
}

// scoreValue returns the referral's score, or nil when the classifier never
// ran for it.
func scoreValue(r *domain.Referral) interface{} {
	if !r.Scored {
		return nil
	}
	return r.Score
}
