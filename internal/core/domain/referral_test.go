package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveIdentityKey_ExplicitID(t *testing.T) {
	key, err := DeriveIdentityKey(map[string]string{
		FieldReferralID: "REF-001",
		FieldRefereeID:  "user-9",
	})

	require.NoError(t, err)
	assert.Equal(t, "REF-001", key)
}

func TestDeriveIdentityKey_DerivedFromRefereeAndTimestamp(t *testing.T) {
	fields := map[string]string{
		FieldRefereeID:  "user-9",
		FieldReferralAt: "2024-03-01T10:00:00Z",
	}

	key1, err := DeriveIdentityKey(fields)
	require.NoError(t, err)
	key2, err := DeriveIdentityKey(fields)
	require.NoError(t, err)

	// Derivation must be stable across calls and runs.
	assert.Equal(t, key1, key2)
	assert.Len(t, key1, 32)
}

func TestDeriveIdentityKey_DistinctInputsDistinctKeys(t *testing.T) {
	key1, err := DeriveIdentityKey(map[string]string{
		FieldRefereeID:  "user-1",
		FieldReferralAt: "2024-03-01T10:00:00Z",
	})
	require.NoError(t, err)

	key2, err := DeriveIdentityKey(map[string]string{
		FieldRefereeID:  "user-2",
		FieldReferralAt: "2024-03-01T10:00:00Z",
	})
	require.NoError(t, err)

	assert.NotEqual(t, key1, key2)
}

func TestDeriveIdentityKey_Underivable(t *testing.T) {
	_, err := DeriveIdentityKey(map[string]string{
		FieldDescription: "menunggu",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestNewReferral_StartsPending(t *testing.T) {
	rec := RawRecord{
		Line: 1,
		Fields: map[string]string{
			FieldReferralID: "REF-001",
			FieldReferralAt: "2024-03-01T10:00:00Z",
		},
	}

	r, err := NewReferral(rec)

	require.NoError(t, err)
	assert.Equal(t, StatusPending, r.Status)
	assert.Equal(t, "REF-001", r.IdentityKey)
	assert.Equal(t, "2024-03-01T10:00:00Z", r.FirstSeenAt)
	assert.False(t, r.Scored)
}

func TestReferral_Field_PrefersDerived(t *testing.T) {
	r := &Referral{
		Raw: map[string]string{FieldReferrerName: "jane DOE"},
	}
	r.SetDerived(FieldReferrerName, "Jane Doe")

	assert.Equal(t, "Jane Doe", r.Field(FieldReferrerName))
	// The received value stays untouched for audit.
	assert.Equal(t, "jane DOE", r.Raw[FieldReferrerName])
}

func TestReferral_Field_FallsBackToRaw(t *testing.T) {
	r := &Referral{
		Raw: map[string]string{FieldRewardValue: "50000"},
	}

	assert.Equal(t, "50000", r.Field(FieldRewardValue))
	assert.Equal(t, "", r.Field(FieldTransactionID))
}

func TestReferral_HasField(t *testing.T) {
	r := &Referral{
		Raw: map[string]string{
			FieldTransactionID: "tx-1",
			FieldRewardValue:   "   ",
		},
	}

	assert.True(t, r.HasField(FieldTransactionID))
	assert.False(t, r.HasField(FieldRewardValue))
	assert.False(t, r.HasField(FieldRewardGrantedAt))
}

func TestReferral_AddInvalidReason_Deduplicates(t *testing.T) {
	r := &Referral{}

	r.AddInvalidReason("missing_field:referee_id")
	r.AddInvalidReason("bad_timestamp:referral_at")
	r.AddInvalidReason("missing_field:referee_id")

	assert.Equal(t, []string{
		"missing_field:referee_id",
		"bad_timestamp:referral_at",
	}, r.InvalidReasons)
}
