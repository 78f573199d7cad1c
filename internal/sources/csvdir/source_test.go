package csvdir

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflow-labs/refproc-cli/internal/core/domain"
)

// writeTable writes one CSV table into the export directory.
func writeTable(t *testing.T, dir, name, content string) {
	t.Helper()
	err := os.WriteFile(filepath.Join(dir, name+".csv"), []byte(content), 0600)
	require.NoError(t, err)
}

// fixtureDir builds a full seven-table export directory.
func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeTable(t, dir, tableUserReferrals,
		"referral_id,referral_source,referral_at,referrer_id,referee_id,referee_name,referral_reward_id,transaction_id,status\n"+
			"REF-1,mgm,2024-03-01T08:00:00Z,U-9,M-1,sarah connor,RW-1,TX-1,active\n"+
			"REF-2,broadcast,2024-03-02T09:30:00Z,U-9,M-2,kyle reese,,,active\n")

	writeTable(t, dir, tableReferralLogs,
		"user_referral_id,description,created_at,status\n"+
			"REF-1,menunggu,2024-03-01T08:05:00Z,open\n"+
			"REF-1,berhasil,2024-03-02T11:00:00Z,done\n"+
			"REF-2,menunggu,2024-03-02T09:35:00Z,open\n")

	writeTable(t, dir, tableRewards,
		"id,reward_value,reward_granted_at\n"+
			"RW-1,50000,2024-03-03T10:00:00Z\n"+
			"RW-2,gratis,\n")

	writeTable(t, dir, tableTransactions,
		"transaction_id,transaction_status,transaction_type,transaction_at,timezone_transaction\n"+
			"TX-1,PAID,NEW,2024-03-02T10:30:00Z,Asia/Jakarta\n")

	writeTable(t, dir, tableUserLogs,
		"user_id,name,phone_number,homeclub\n"+
			"U-9,john smith,+62811222333,senayan club\n")

	writeTable(t, dir, tableLeadLog,
		"lead_id,source\nL-1,organic\n")

	writeTable(t, dir, tableReferralStatuses,
		"status_id,description\n1,open\n")

	return dir
}

// drain consumes the full record stream.
func drain(t *testing.T, s *Source) ([]domain.RawRecord, []error) {
	t.Helper()

	recsCh, errsCh := s.Records(context.Background())
	var recs []domain.RawRecord
	var errs []error
	for recsCh != nil || errsCh != nil {
		select {
		case rec, ok := <-recsCh:
			if !ok {
				recsCh = nil
				continue
			}
			recs = append(recs, rec)
		case err, ok := <-errsCh:
			if !ok {
				errsCh = nil
				continue
			}
			errs = append(errs, err)
		}
	}
	return recs, errs
}

func TestSource_Open_MissingDirectory(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nope"), Options{})

	err := s.Open(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestSource_Open_MissingDrivingTable(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, dir, tableUserLogs, "user_id,name\nU-1,a\n")
	s := New(dir, Options{})

	err := s.Open(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.Contains(t, err.Error(), tableUserReferrals)
}

func TestSource_Open_Succeeds(t *testing.T) {
	s := New(fixtureDir(t), Options{})
	assert.NoError(t, s.Open(context.Background()))
}

func TestSource_Records_JoinsAndCleans(t *testing.T) {
	s := New(fixtureDir(t), Options{})
	require.NoError(t, s.Open(context.Background()))

	recs, errs := drain(t, s)
	require.Empty(t, errs)
	require.Len(t, recs, 2)

	first := recs[0]
	assert.Equal(t, 1, first.Line)
	assert.Equal(t, "REF-1", first.Fields[domain.FieldReferralID])

	// Latest log row wins the join.
	assert.Equal(t, "berhasil", first.Fields[domain.FieldDescription])

	// Reward and transaction enrichment.
	assert.Equal(t, "50000", first.Fields[domain.FieldRewardValue])
	assert.Equal(t, "2024-03-03T10:00:00Z", first.Fields[domain.FieldRewardGrantedAt])
	assert.Equal(t, "PAID", first.Fields[domain.FieldTransactionStatus])
	assert.Equal(t, "NEW", first.Fields[domain.FieldTransactionType])

	// Referrer fields come renamed from user_logs; the raw value is kept
	// and the title-cased one is derived.
	assert.Equal(t, "john smith", first.Fields[domain.FieldReferrerName])
	assert.Equal(t, "John Smith", first.Derived[domain.FieldReferrerName])
	assert.Equal(t, "+62811222333", first.Fields[colReferrerPhone])
	assert.Equal(t, "senayan club", first.Fields[colReferrerHomeclub])
	_, titled := first.Derived[colReferrerHomeclub]
	assert.False(t, titled, "homeclub stays as received")

	// Driving-table name column is title-cased into Derived only.
	assert.Equal(t, "sarah connor", first.Fields["referee_name"])
	assert.Equal(t, "Sarah Connor", first.Derived["referee_name"])

	// Jakarta is UTC+7.
	assert.Equal(t, "2024-03-02 17:30:00", first.Derived[domain.FieldTransactionAtLoc])

	// Colliding joined columns get the table suffix; driving wins the name.
	assert.Equal(t, "active", first.Fields["status"])
	assert.Equal(t, "done", first.Fields["status_log"])

	second := recs[1]
	assert.Equal(t, 2, second.Line)
	assert.Equal(t, "menunggu", second.Fields[domain.FieldDescription])
	assert.Empty(t, second.Fields[domain.FieldRewardValue])
	assert.Empty(t, second.Fields[domain.FieldTransactionStatus])
}

func TestSource_Records_CoercesBadRewardValue(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, dir, tableUserReferrals,
		"referral_id,referral_at,referee_id,referral_reward_id\n"+
			"REF-1,2024-03-01T08:00:00Z,M-1,RW-2\n")
	writeTable(t, dir, tableRewards,
		"id,reward_value,reward_granted_at\nRW-2,gratis,\n")
	s := New(dir, Options{})

	recs, errs := drain(t, s)
	require.Empty(t, errs)
	require.Len(t, recs, 1)

	// Raw keeps the received value, the derived one is cleared so absence
	// checks treat the reward as missing.
	assert.Equal(t, "gratis", recs[0].Fields[domain.FieldRewardValue])
	cleared, ok := recs[0].Derived[domain.FieldRewardValue]
	require.True(t, ok)
	assert.Empty(t, cleared)
}

func TestSource_Records_UnknownZoneKeepsInstant(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, dir, tableUserReferrals,
		"referral_id,referral_at,referee_id,transaction_id\n"+
			"REF-1,2024-03-01T08:00:00Z,M-1,TX-1\n")
	writeTable(t, dir, tableTransactions,
		"transaction_id,transaction_status,transaction_type,transaction_at,timezone_transaction\n"+
			"TX-1,PAID,NEW,2024-03-02T10:30:00Z,Mars/Olympus\n")
	s := New(dir, Options{})

	recs, errs := drain(t, s)
	require.Empty(t, errs)
	require.Len(t, recs, 1)
	assert.Equal(t, "2024-03-02T10:30:00Z", recs[0].Derived[domain.FieldTransactionAtLoc])
}

func TestSource_Records_DefaultZoneAppliesWhenRowHasNone(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, dir, tableUserReferrals,
		"referral_id,referral_at,referee_id,transaction_id\n"+
			"REF-1,2024-03-01T08:00:00Z,M-1,TX-1\n")
	writeTable(t, dir, tableTransactions,
		"transaction_id,transaction_status,transaction_type,transaction_at,timezone_transaction\n"+
			"TX-1,PAID,NEW,2024-03-02T10:30:00Z,\n")
	s := New(dir, Options{DefaultTimezone: "Asia/Makassar"})

	recs, errs := drain(t, s)
	require.Empty(t, errs)
	require.Len(t, recs, 1)

	// Makassar is UTC+8.
	assert.Equal(t, "2024-03-02 18:30:00", recs[0].Derived[domain.FieldTransactionAtLoc])
}

func TestSource_Records_MissingAuxTablesWarnOnly(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, dir, tableUserReferrals,
		"referral_id,referral_at,referee_id\nREF-1,2024-03-01T08:00:00Z,M-1\n")
	s := New(dir, Options{})

	recs, errs := drain(t, s)
	assert.Empty(t, errs)
	require.Len(t, recs, 1)
	assert.Empty(t, recs[0].Fields[domain.FieldDescription])
}

func TestSource_Records_BadRowIsLoadError(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, dir, tableUserReferrals,
		"referral_id,referral_at,referee_id\n"+
			"REF-1,2024-03-01T08:00:00Z,M-1\n"+
			"REF-2,2024-03-02T08:00:00Z,M-2,extra-column\n"+
			"REF-3,2024-03-03T08:00:00Z,M-3\n")
	s := New(dir, Options{})

	recs, errs := drain(t, s)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "row 2")
	require.Len(t, recs, 2)
	assert.Equal(t, "REF-1", recs[0].Fields[domain.FieldReferralID])
	assert.Equal(t, "REF-3", recs[1].Fields[domain.FieldReferralID])
}

func TestSource_Records_LogTieLaterRowWins(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, dir, tableUserReferrals,
		"referral_id,referral_at,referee_id\nREF-1,2024-03-01T08:00:00Z,M-1\n")
	writeTable(t, dir, tableReferralLogs,
		"user_referral_id,description,created_at\n"+
			"REF-1,menunggu,2024-03-01T09:00:00Z\n"+
			"REF-1,berhasil,2024-03-01T09:00:00Z\n")
	s := New(dir, Options{})

	recs, errs := drain(t, s)
	require.Empty(t, errs)
	require.Len(t, recs, 1)
	assert.Equal(t, "berhasil", recs[0].Fields[domain.FieldDescription])
}

func TestSource_Records_AfterCloseFails(t *testing.T) {
	s := New(fixtureDir(t), Options{})
	require.NoError(t, s.Close())

	recs, errs := drain(t, s)
	assert.Empty(t, recs)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], domain.ErrSourceUnavailable)
}

func TestSource_Profiles_CountsNullsAndDistincts(t *testing.T) {
	s := New(fixtureDir(t), Options{})
	_, errs := drain(t, s)
	require.Empty(t, errs)

	profiles := s.Profiles()
	require.NotEmpty(t, profiles)

	byKey := make(map[string]domain.ColumnProfile, len(profiles))
	tables := make(map[string]bool)
	for _, p := range profiles {
		byKey[p.Table+"."+p.Column] = p
		tables[p.Table] = true
	}

	// All seven tables are profiled, including the join-free ones.
	for _, table := range []string{
		tableUserReferrals, tableReferralLogs, tableRewards,
		tableTransactions, tableUserLogs, tableLeadLog, tableReferralStatuses,
	} {
		assert.True(t, tables[table], "missing profile for %s", table)
	}

	rewardIDs := byKey[tableUserReferrals+"."+colReferralRewardID]
	assert.Equal(t, 1, rewardIDs.NullCount)
	assert.Equal(t, 1, rewardIDs.DistinctCount)

	descriptions := byKey[tableReferralLogs+"."+domain.FieldDescription]
	assert.Equal(t, 0, descriptions.NullCount)
	assert.Equal(t, 2, descriptions.DistinctCount)

	granted := byKey[tableRewards+"."+domain.FieldRewardGrantedAt]
	assert.Equal(t, 1, granted.NullCount)
	assert.Equal(t, 1, granted.DistinctCount)
}

func TestSource_Name(t *testing.T) {
	s := New("/data/referrals", Options{})
	assert.Equal(t, "csvdir:/data/referrals", s.Name())
}
