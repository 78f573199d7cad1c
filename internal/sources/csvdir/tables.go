package csvdir

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/leadflow-labs/refproc-cli/internal/core/domain"
	"github.com/leadflow-labs/refproc-cli/internal/logger"
)

// Join and rename columns used by the auxiliary tables.
const (
	colUserReferralID   = "user_referral_id"
	colCreatedAt        = "created_at"
	colRewardID         = "id"
	colReferralRewardID = "referral_reward_id"
	colUserID           = "user_id"
	colName             = "name"
	colPhoneNumber      = "phone_number"
	colHomeclub         = "homeclub"
	colTimezone         = "timezone_transaction"
	colReferrerPhone    = "referrer_phone_number"
	colReferrerHomeclub = "referrer_homeclub"
)

// auxTables holds the lookup maps the driving rows are joined against.
type auxTables struct {
	// logs is the latest user_referral_logs row per user_referral_id.
	logs map[string]map[string]string

	// rewards is referral_rewards keyed by id.
	rewards map[string]map[string]string

	// txns is paid_transactions keyed by transaction_id.
	txns map[string]map[string]string

	// referrers carries the referrer_* fields from user_logs, keyed by
	// user_id.
	referrers map[string]map[string]string
}

// loadAuxiliary reads the four enrichment tables. A missing table is a
// warning and joins against it produce no values; unreadable rows are load
// errors and are skipped.
func (s *Source) loadAuxiliary(ctx context.Context, errs chan<- error) *auxTables {
	return &auxTables{
		logs:      latestPerKey(s.readTable(ctx, tableReferralLogs, errs), colUserReferralID, colCreatedAt),
		rewards:   indexBy(s.readTable(ctx, tableRewards, errs), colRewardID),
		txns:      indexBy(s.readTable(ctx, tableTransactions, errs), domain.FieldTransactionID),
		referrers: referrerIndex(s.readTable(ctx, tableUserLogs, errs)),
	}
}

// profileExtras reads the tables that feed the profiling report but play no
// part in the joins.
func (s *Source) profileExtras(ctx context.Context, errs chan<- error) {
	s.readTable(ctx, tableLeadLog, errs)
	s.readTable(ctx, tableReferralStatuses, errs)
}

// readTable reads one CSV table into memory, profiling every row. A missing
// file yields an empty table; per-row reader errors go to the error channel.
func (s *Source) readTable(ctx context.Context, name string, errs chan<- error) []map[string]string {
	f, err := os.Open(s.tablePath(name))
	if err != nil {
		logger.Warn("Missing: %s.csv", name)
		return nil
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		s.emitErr(ctx, errs, fmt.Errorf("%s: reading header: %w", name, err))
		return nil
	}
	header = trimAll(header)
	logger.Info("Reading %s (%d columns)", name, len(header))

	var rows []map[string]string
	row := 0
	for {
		if ctx.Err() != nil {
			return rows
		}

		values, err := r.Read()
		if errors.Is(err, io.EOF) {
			return rows
		}
		row++
		if err != nil {
			if !s.emitErr(ctx, errs, fmt.Errorf("%s row %d: %w", name, row, err)) {
				return rows
			}
			continue
		}

		s.profiles.observe(name, header, values)
		rows = append(rows, rowMap(header, values))
	}
}

// buildRecord joins one driving row against the auxiliary tables and derives
// the cleaned values. Joined values land in Fields under their own column
// names; when the driving table already uses a name, the joined value gets a
// table suffix instead so nothing is overwritten.
func (s *Source) buildRecord(line int, fields map[string]string, aux *auxTables) domain.RawRecord {
	rec := domain.RawRecord{Line: line, Fields: fields, Derived: make(map[string]string)}

	// Title-case the driving table's person-name columns before joins so
	// only its own columns are affected. Homeclub names are venue codes and
	// stay as received.
	for col, val := range fields {
		if isNameColumn(col) && val != "" {
			rec.Derived[col] = s.caser.String(val)
		}
	}

	joinInto(fields, aux.logs[strings.TrimSpace(fields[domain.FieldReferralID])], colUserReferralID, "_log")
	joinInto(fields, aux.rewards[strings.TrimSpace(fields[colReferralRewardID])], colRewardID, "_reward")
	joinInto(fields, aux.txns[strings.TrimSpace(fields[domain.FieldTransactionID])], domain.FieldTransactionID, "_trans")
	joinInto(fields, aux.referrers[strings.TrimSpace(fields[domain.FieldReferrerID])], colUserID, "_referrer")

	if v := fields[domain.FieldReferrerName]; v != "" {
		rec.Derived[domain.FieldReferrerName] = s.caser.String(v)
	}

	// Reward values are coerced to numbers; values that do not parse are
	// cleared so downstream absence checks treat them as missing.
	if v := strings.TrimSpace(fields[domain.FieldRewardValue]); v != "" {
		rec.Derived[domain.FieldRewardValue] = coerceNumeric(v)
	}

	if at := strings.TrimSpace(fields[domain.FieldTransactionAt]); at != "" {
		rec.Derived[domain.FieldTransactionAtLoc] = s.localise(at, strings.TrimSpace(fields[colTimezone]))
	}

	return rec
}

// joinInto copies one looked-up row into the record's fields, skipping the
// join key itself. Columns the record already carries keep their value; the
// joined one is stored under the suffixed name.
func joinInto(dst map[string]string, src map[string]string, keyCol, suffix string) {
	for col, val := range src {
		if col == keyCol {
			continue
		}
		target := col
		if _, taken := dst[target]; taken {
			target = col + suffix
		}
		dst[target] = val
	}
}

// latestPerKey keeps the row with the greatest order column value per key.
// Ties keep the row that appears later in the file, matching a stable
// ascending sort that takes the last row per group.
func latestPerKey(rows []map[string]string, keyCol, orderCol string) map[string]map[string]string {
	latest := make(map[string]map[string]string)
	for _, row := range rows {
		key := strings.TrimSpace(row[keyCol])
		if key == "" {
			continue
		}
		current, seen := latest[key]
		if !seen || !sortsBefore(row[orderCol], current[orderCol]) {
			latest[key] = row
		}
	}
	return latest
}

// sortsBefore reports whether order value a sorts strictly before b.
// Parseable timestamps order chronologically and beat unparseable values;
// two unparseable values fall back to a string comparison.
func sortsBefore(a, b string) bool {
	ta, errA := domain.ParseTimestamp(a)
	tb, errB := domain.ParseTimestamp(b)
	switch {
	case errA == nil && errB == nil:
		return ta.Before(tb)
	case errA != nil && errB == nil:
		return true
	case errA == nil:
		return false
	default:
		return a < b
	}
}

// indexBy maps rows by a key column. The first row per key wins so a corrupt
// export with duplicated keys cannot multiply referrals.
func indexBy(rows []map[string]string, keyCol string) map[string]map[string]string {
	idx := make(map[string]map[string]string, len(rows))
	for _, row := range rows {
		key := strings.TrimSpace(row[keyCol])
		if key == "" {
			continue
		}
		if _, seen := idx[key]; seen {
			continue
		}
		idx[key] = row
	}
	return idx
}

// referrerIndex maps user_logs rows to the referrer_* columns of the report,
// keyed by user_id.
func referrerIndex(rows []map[string]string) map[string]map[string]string {
	idx := make(map[string]map[string]string, len(rows))
	for _, row := range rows {
		key := strings.TrimSpace(row[colUserID])
		if key == "" {
			continue
		}
		if _, seen := idx[key]; seen {
			continue
		}
		idx[key] = map[string]string{
			domain.FieldReferrerName: row[colName],
			colReferrerPhone:         row[colPhoneNumber],
			colReferrerHomeclub:      row[colHomeclub],
		}
	}
	return idx
}

// isNameColumn reports whether the column holds a person name the cleaning
// step should title-case.
func isNameColumn(col string) bool {
	return strings.Contains(col, "name") && !strings.Contains(col, "homeclub")
}

// coerceNumeric normalises a numeric string; values that do not parse
// become empty.
func coerceNumeric(v string) string {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// localise renders a transaction timestamp in the row's zone. Rows without a
// zone use the source's default; an unknown or absent zone keeps the UTC
// instant as received, and an unparseable timestamp clears the value.
func (s *Source) localise(raw, tzName string) string {
	t, err := domain.ParseTimestamp(raw)
	if err != nil {
		return ""
	}
	if tzName == "" {
		tzName = s.defaultTZ
	}
	if tzName == "" {
		return raw
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return raw
	}
	return t.In(loc).Format("2006-01-02 15:04:05")
}
