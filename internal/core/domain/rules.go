package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// DedupPolicy decides which occurrence of an identity key survives.
// Deployments must pick one explicitly; there is no implicit default.
type DedupPolicy string

const (
	// DedupFirstWins keeps the first record in input order and marks
	// later occurrences as duplicates.
	DedupFirstWins DedupPolicy = "first-wins"

	// DedupLastWins lets later occurrences overwrite the mutable fields of
	// the surviving record. The identity key and the first occurrence's
	// referral timestamp are always retained.
	DedupLastWins DedupPolicy = "last-wins"
)

// Valid reports whether the policy is one of the supported values.
func (p DedupPolicy) Valid() bool {
	return p == DedupFirstWins || p == DedupLastWins
}

// Check names the validation applied to a single field.
type Check string

const (
	CheckRequired  Check = "required"
	CheckNumeric   Check = "numeric"
	CheckPositive  Check = "positive"
	CheckTimestamp Check = "timestamp"
	CheckOneOf     Check = "oneof"
	CheckMaxLen    Check = "max_length"
)

// FieldRule is one configurable validation constraint.
type FieldRule struct {
	// Field is the referral field the check applies to.
	Field string

	// Check selects the constraint kind.
	Check Check

	// Param carries check-specific input: the allowed values for oneof
	// (comma separated), the limit for max_length. Unused otherwise.
	Param string
}

// Validate rejects rules the validator cannot execute.
func (fr FieldRule) Validate() error {
	if strings.TrimSpace(fr.Field) == "" {
		return fmt.Errorf("%w: field rule without field", ErrConfigInvalid)
	}
	switch fr.Check {
	case CheckRequired, CheckNumeric, CheckPositive, CheckTimestamp:
		return nil
	case CheckOneOf:
		if strings.TrimSpace(fr.Param) == "" {
			return fmt.Errorf("%w: oneof check on %s needs allowed values", ErrConfigInvalid, fr.Field)
		}
		return nil
	case CheckMaxLen:
		if _, err := strconv.Atoi(strings.TrimSpace(fr.Param)); err != nil {
			return fmt.Errorf("%w: max_length check on %s needs a numeric limit", ErrConfigInvalid, fr.Field)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown check %q on %s", ErrConfigInvalid, fr.Check, fr.Field)
	}
}

// Op is a condition operator. The set is closed so rule behaviour stays
// auditable: configuration can combine conditions but never inject code.
type Op string

const (
	OpEq        Op = "eq"
	OpNe        Op = "ne"
	OpGt        Op = "gt"
	OpGte       Op = "gte"
	OpLt        Op = "lt"
	OpLte       Op = "lte"
	OpPresent   Op = "present"
	OpAbsent    Op = "absent"
	OpIn        Op = "in"
	OpBefore    Op = "before"
	OpAfter     Op = "after"
	OpNotBefore Op = "not_before"
)

// Condition is one predicate inside a classification rule. Comparisons are
// against Value, or against another field of the same referral when
// ValueField is set (e.g. transaction_at not_before referral_at).
type Condition struct {
	Field      string
	Op         Op
	Value      string
	ValueField string
}

// Validate rejects conditions the classifier cannot evaluate.
func (c Condition) Validate() error {
	if strings.TrimSpace(c.Field) == "" {
		return fmt.Errorf("%w: condition without field", ErrConfigInvalid)
	}
	switch c.Op {
	case OpPresent, OpAbsent:
		return nil
	case OpEq, OpNe, OpIn:
		if c.Value == "" && c.ValueField == "" {
			return fmt.Errorf("%w: %s on %s needs a value", ErrConfigInvalid, c.Op, c.Field)
		}
		return nil
	case OpGt, OpGte, OpLt, OpLte, OpBefore, OpAfter, OpNotBefore:
		if c.Value == "" && c.ValueField == "" {
			return fmt.Errorf("%w: %s on %s needs a value or value_field", ErrConfigInvalid, c.Op, c.Field)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown operator %q on %s", ErrConfigInvalid, c.Op, c.Field)
	}
}

// Eval applies the condition to a referral. Evaluation is pure: it reads the
// referral's effective fields and the condition itself, nothing else.
func (c Condition) Eval(r *Referral) bool {
	actual := strings.TrimSpace(r.Field(c.Field))

	switch c.Op {
	case OpPresent:
		return actual != ""
	case OpAbsent:
		return actual == ""
	}

	expected := c.Value
	if c.ValueField != "" {
		expected = strings.TrimSpace(r.Field(c.ValueField))
	}

	switch c.Op {
	case OpEq:
		return strings.EqualFold(actual, expected)
	case OpNe:
		return !strings.EqualFold(actual, expected)
	case OpIn:
		for _, allowed := range strings.Split(expected, ",") {
			if strings.EqualFold(actual, strings.TrimSpace(allowed)) {
				return true
			}
		}
		return false
	case OpGt, OpGte, OpLt, OpLte:
		return evalNumeric(c.Op, actual, expected)
	case OpBefore, OpAfter, OpNotBefore:
		return evalTemporal(c.Op, actual, expected)
	}
	return false
}

func evalNumeric(op Op, actual, expected string) bool {
	a, errA := strconv.ParseFloat(actual, 64)
	e, errE := strconv.ParseFloat(expected, 64)
	if errA != nil || errE != nil {
		return false
	}
	switch op {
	case OpGt:
		return a > e
	case OpGte:
		return a >= e
	case OpLt:
		return a < e
	case OpLte:
		return a <= e
	}
	return false
}

func evalTemporal(op Op, actual, expected string) bool {
	a, errA := ParseTimestamp(actual)
	e, errE := ParseTimestamp(expected)
	if errA != nil || errE != nil {
		return false
	}
	switch op {
	case OpBefore:
		return a.Before(e)
	case OpAfter:
		return a.After(e)
	case OpNotBefore:
		return !a.Before(e)
	}
	return false
}

// SortRules orders rules for evaluation: by priority ascending, rules
// sharing a priority keep their configured order.
func SortRules(rules []RuleSpec) {
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority < rules[j].Priority
	})
}

// RuleSpec is one classification rule. Rules are evaluated in priority
// order (lowest number first); the first rule whose conditions all hold
// assigns its classification and score.
type RuleSpec struct {
	// Name identifies the rule in reports and logs.
	Name string

	// Priority orders evaluation; lower runs earlier.
	Priority int

	// Classification is assigned when the rule matches.
	Classification string

	// Score is assigned alongside the classification.
	Score float64

	// When lists the conditions that must all hold. An empty list always
	// matches, which makes the lowest-priority rule a natural fallback.
	When []Condition
}

// Validate rejects rules the classifier cannot evaluate.
func (rs RuleSpec) Validate() error {
	if strings.TrimSpace(rs.Name) == "" {
		return fmt.Errorf("%w: rule without name", ErrConfigInvalid)
	}
	if strings.TrimSpace(rs.Classification) == "" {
		return fmt.Errorf("%w: rule %s without classification", ErrConfigInvalid, rs.Name)
	}
	for _, cond := range rs.When {
		if err := cond.Validate(); err != nil {
			return fmt.Errorf("rule %s: %w", rs.Name, err)
		}
	}
	return nil
}

// Matches reports whether every condition of the rule holds.
func (rs RuleSpec) Matches(r *Referral) bool {
	for _, cond := range rs.When {
		if !cond.Eval(r) {
			return false
		}
	}
	return true
}
