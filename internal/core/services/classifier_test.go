package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflow-labs/refproc-cli/internal/core/domain"
)

func TestClassifier_FirstMatchWinsByPriority(t *testing.T) {
	c := NewClassifier([]domain.RuleSpec{
		{Name: "fallback", Priority: 100, Classification: "invalid_logic", Score: 0},
		{Name: "high-value", Priority: 5, Classification: "valid", Score: 1,
			When: []domain.Condition{{Field: domain.FieldRewardValue, Op: domain.OpGt, Value: "50000"}}},
		{Name: "any-value", Priority: 10, Classification: "valid", Score: 0.5,
			When: []domain.Condition{{Field: domain.FieldRewardValue, Op: domain.OpGt, Value: "0"}}},
	})

	r := referralWith(map[string]string{domain.FieldRewardValue: "75000"})
	name := c.Classify(r)

	// Both value rules match; the lower priority number wins.
	assert.Equal(t, "high-value", name)
	assert.Equal(t, "valid", r.Classification)
	assert.Equal(t, 1.0, r.Score)
	assert.True(t, r.Scored)
}

func TestClassifier_FallbackCatchesEverything(t *testing.T) {
	c := NewClassifier(domain.DefaultRules())

	r := referralWith(map[string]string{domain.FieldDescription: "expired"})
	name := c.Classify(r)

	assert.Equal(t, "fallback", name)
	assert.Equal(t, domain.ClassificationInvalidLogic, r.Classification)
	assert.Equal(t, 0.0, r.Score)
}

func TestClassifier_NoMatchLeavesUnscored(t *testing.T) {
	c := NewClassifier([]domain.RuleSpec{
		{Name: "narrow", Priority: 1, Classification: "valid", Score: 1,
			When: []domain.Condition{{Field: domain.FieldRewardValue, Op: domain.OpPresent}}},
	})

	r := referralWith(nil)
	name := c.Classify(r)

	assert.Empty(t, name)
	assert.False(t, r.Scored)
	assert.Empty(t, r.Classification)
}

func TestClassifier_Deterministic(t *testing.T) {
	c := NewClassifier(domain.DefaultRules())
	fields := map[string]string{
		domain.FieldRewardValue:       "75000",
		domain.FieldDescription:       "berhasil",
		domain.FieldTransactionID:     "tx-1",
		domain.FieldTransactionStatus: "PAID",
		domain.FieldTransactionType:   "NEW",
		domain.FieldReferralAt:        "2024-03-01T10:00:00Z",
		domain.FieldTransactionAt:     "2024-03-02T10:00:00Z",
		domain.FieldRewardGrantedAt:   "2024-03-03T10:00:00Z",
	}

	first := referralWith(fields)
	second := referralWith(fields)

	assert.Equal(t, c.Classify(first), c.Classify(second))
	assert.Equal(t, first.Classification, second.Classification)
	assert.Equal(t, first.Score, second.Score)
}

func TestClassifier_EqualPriorityKeepsConfiguredOrder(t *testing.T) {
	c := NewClassifier([]domain.RuleSpec{
		{Name: "first", Priority: 10, Classification: "a"},
		{Name: "second", Priority: 10, Classification: "b"},
	})

	r := referralWith(nil)
	assert.Equal(t, "first", c.Classify(r))
	assert.Equal(t, "a", r.Classification)
}

func TestClassifier_RulesReturnsEvaluationOrder(t *testing.T) {
	c := NewClassifier([]domain.RuleSpec{
		{Name: "late", Priority: 50, Classification: "x"},
		{Name: "early", Priority: 1, Classification: "y"},
	})

	rules := c.Rules()
	require.Len(t, rules, 2)
	assert.Equal(t, "early", rules[0].Name)
	assert.Equal(t, "late", rules[1].Name)
}
