package domain

import "time"

// DefaultRules returns the shipped classification rule set. It reproduces the
// business logic the finance team signed off on: a referral is fully valid
// once the reward is granted against a paid first transaction, still valid
// while the outcome is pending, and a logic defect otherwise.
func DefaultRules() []RuleSpec {
	return []RuleSpec{
		{
			Name:           "reward-granted",
			Priority:       10,
			Classification: ClassificationValid,
			Score:          1.0,
			When: []Condition{
				{Field: FieldRewardValue, Op: OpGt, Value: "0"},
				{Field: FieldDescription, Op: OpEq, Value: "berhasil"},
				{Field: FieldTransactionID, Op: OpPresent},
				{Field: FieldTransactionStatus, Op: OpEq, Value: "PAID"},
				{Field: FieldTransactionType, Op: OpEq, Value: "NEW"},
				{Field: FieldTransactionAt, Op: OpNotBefore, ValueField: FieldReferralAt},
				{Field: FieldRewardGrantedAt, Op: OpPresent},
			},
		},
		{
			Name:           "awaiting-outcome",
			Priority:       20,
			Classification: ClassificationValid,
			Score:          0.0,
			When: []Condition{
				{Field: FieldDescription, Op: OpIn, Value: "menunggu,tidak berhasil"},
				{Field: FieldRewardValue, Op: OpAbsent},
			},
		},
		{
			Name:           "fallback",
			Priority:       100,
			Classification: ClassificationInvalidLogic,
			Score:          0.0,
		},
	}
}

// DefaultValidation returns the shipped field constraints: every referral
// needs an owner, and its referral timestamp, when present, has to parse so
// the pipeline can order occurrences by it.
func DefaultValidation() []FieldRule {
	return []FieldRule{
		{Field: FieldRefereeID, Check: CheckRequired},
		{Field: FieldReferralAt, Check: CheckTimestamp},
	}
}

// DefaultSettings returns settings matching the legacy batch job: CSV exports
// under ./data, reports under ./output, CSV destination. The dedup policy is
// deliberately left unset; deployments must state it in configuration.
func DefaultSettings() Settings {
	return Settings{
		Source: SourceSettings{
			Dir: "./data",
		},
		Output: OutputSettings{
			Dir:          "./output",
			ReportFormat: ReportFormatJSON,
		},
		Sink: SinkSettings{
			Destination: DestinationCSV,
			SQLitePath:  "./output/referrals.db",
		},
		Pipeline: PipelineConfig{
			Validation:       DefaultValidation(),
			Rules:            DefaultRules(),
			FailureThreshold: 25,
			IOTimeout:        30 * time.Second,
			BatchSize:        200,
			IdempotentWrites: true,
		},
	}
}
