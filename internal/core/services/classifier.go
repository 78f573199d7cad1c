package services

import (
	"github.com/leadflow-labs/refproc-cli/internal/core/domain"
)

// Classifier assigns a classification and score to referrals via the first
// matching rule. Evaluation is deterministic: identical fields and rules
// always produce the identical outcome.
type Classifier struct {
	rules []domain.RuleSpec
}

// NewClassifier creates a classifier with the rules ordered by priority.
// Rules sharing a priority keep their configured order.
func NewClassifier(rules []domain.RuleSpec) *Classifier {
	sorted := make([]domain.RuleSpec, len(rules))
	copy(sorted, rules)
	domain.SortRules(sorted)
	return &Classifier{rules: sorted}
}

// Rules returns the effective rule set in evaluation order.
func (c *Classifier) Rules() []domain.RuleSpec {
	out := make([]domain.RuleSpec, len(c.rules))
	copy(out, c.rules)
	return out
}

// Classify assigns the first matching rule's classification and score to the
// referral and returns the rule's name. With no matching rule the referral
// stays unscored and the name is empty.
func (c *Classifier) Classify(r *domain.Referral) string {
	for _, rule := range c.rules {
		if rule.Matches(r) {
			r.Classification = rule.Classification
			r.Score = rule.Score
			r.Scored = true
			return rule.Name
		}
	}
	return ""
}
