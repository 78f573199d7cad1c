package services

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/leadflow-labs/refproc-cli/internal/core/domain"
)

// Validator applies the configured field constraints to referrals.
type Validator struct {
	rules []domain.FieldRule
}

// NewValidator creates a validator for the given constraints.
func NewValidator(rules []domain.FieldRule) *Validator {
	return &Validator{rules: rules}
}

// Check evaluates every constraint and returns the reason codes that failed.
// An empty result means the referral passed validation. Apart from
// "required", a constraint on an empty field passes; deployments combine
// checks when a field has to be both present and well-formed.
func (v *Validator) Check(r *domain.Referral) []string {
	var reasons []string
	for _, rule := range v.rules {
		if code := checkField(rule, r); code != "" {
			reasons = append(reasons, code)
		}
	}
	return reasons
}

func checkField(rule domain.FieldRule, r *domain.Referral) string {
	value := strings.TrimSpace(r.Field(rule.Field))

	if rule.Check == domain.CheckRequired {
		if value == "" {
			return "missing_field:" + rule.Field
		}
		return ""
	}
	if value == "" {
		return ""
	}

	switch rule.Check {
	case domain.CheckNumeric:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return "not_numeric:" + rule.Field
		}
	case domain.CheckPositive:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f <= 0 {
			return "not_positive:" + rule.Field
		}
	case domain.CheckTimestamp:
		if _, err := domain.ParseTimestamp(value); err != nil {
			return "bad_timestamp:" + rule.Field
		}
	case domain.CheckOneOf:
		for _, allowed := range strings.Split(rule.Param, ",") {
			if strings.EqualFold(value, strings.TrimSpace(allowed)) {
				return ""
			}
		}
		return "not_allowed:" + rule.Field
	case domain.CheckMaxLen:
		limit, err := strconv.Atoi(strings.TrimSpace(rule.Param))
		if err == nil && utf8.RuneCountInString(value) > limit {
			return "too_long:" + rule.Field
		}
	}
	return ""
}
