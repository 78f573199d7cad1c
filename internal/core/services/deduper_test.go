package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflow-labs/refproc-cli/internal/core/domain"
)

func validReferral(t *testing.T, key string, fields map[string]string) *domain.Referral {
	t.Helper()
	r := &domain.Referral{
		IdentityKey: key,
		Raw:         fields,
		Status:      domain.StatusPending,
		FirstSeenAt: fields[domain.FieldReferralAt],
	}
	require.NoError(t, r.Advance(domain.StatusValid))
	return r
}

func TestDeduper_FirstWins_KeepsFirstOccurrence(t *testing.T) {
	d := NewDeduper(domain.DedupFirstWins)

	a1 := validReferral(t, "A", map[string]string{domain.FieldReferrerName: "first"})
	a2 := validReferral(t, "A", map[string]string{domain.FieldReferrerName: "second"})
	b := validReferral(t, "B", map[string]string{domain.FieldReferrerName: "other"})

	assert.False(t, d.Observe(a1))
	assert.True(t, d.Observe(a2))
	assert.False(t, d.Observe(b))

	survivors := d.Survivors()
	require.Len(t, survivors, 2)

	// Exactly one A and one B survive; A carries the first occurrence.
	assert.Same(t, a1, survivors[0])
	assert.Equal(t, "first", survivors[0].Field(domain.FieldReferrerName))
	assert.Same(t, b, survivors[1])

	assert.Equal(t, domain.StatusDuplicate, a2.Status)
	assert.Equal(t, domain.StatusValid, a1.Status)
}

func TestDeduper_LastWins_MergesFieldsKeepsIdentity(t *testing.T) {
	d := NewDeduper(domain.DedupLastWins)

	a1 := validReferral(t, "A", map[string]string{
		domain.FieldReferralAt:   "2024-03-01T10:00:00Z",
		domain.FieldReferrerName: "first",
	})
	a2 := validReferral(t, "A", map[string]string{
		domain.FieldReferralAt:   "2024-03-05T08:00:00Z",
		domain.FieldReferrerName: "second",
	})

	assert.False(t, d.Observe(a1))
	assert.True(t, d.Observe(a2))

	survivors := d.Survivors()
	require.Len(t, survivors, 1)

	survivor := survivors[0]
	assert.Equal(t, "A", survivor.IdentityKey)
	assert.Equal(t, "second", survivor.Field(domain.FieldReferrerName))
	// The first occurrence's referral timestamp survives the merge.
	assert.Equal(t, "2024-03-01T10:00:00Z", survivor.FirstSeenAt)
	assert.Equal(t, domain.StatusDuplicate, a2.Status)
}

func TestDeduper_SurvivorsKeepInputOrder(t *testing.T) {
	d := NewDeduper(domain.DedupLastWins)

	keys := []string{"C", "A", "B", "A", "C"}
	for _, key := range keys {
		d.Observe(validReferral(t, key, nil))
	}

	survivors := d.Survivors()
	require.Len(t, survivors, 3)
	assert.Equal(t, "C", survivors[0].IdentityKey)
	assert.Equal(t, "A", survivors[1].IdentityKey)
	assert.Equal(t, "B", survivors[2].IdentityKey)
}

func TestDeduper_DeterministicAcrossRuns(t *testing.T) {
	run := func() []string {
		d := NewDeduper(domain.DedupFirstWins)
		for _, key := range []string{"A", "A", "B"} {
			d.Observe(validReferral(t, key, nil))
		}
		var out []string
		for _, r := range d.Survivors() {
			out = append(out, r.IdentityKey)
		}
		return out
	}

	assert.Equal(t, run(), run())
	assert.Equal(t, []string{"A", "B"}, run())
}
