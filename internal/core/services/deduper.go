package services

import "github.com/leadflow-labs/refproc-cli/internal/core/domain"

// Deduper groups referrals by identity key according to the configured
// policy. It sees only referrals that passed validation, one at a time, in
// input order.
type Deduper struct {
	policy    domain.DedupPolicy
	order     []string
	survivors map[string]*domain.Referral
}

// NewDeduper creates a deduper for the given policy. The policy has been
// validated by the pipeline configuration before it gets here.
func NewDeduper(policy domain.DedupPolicy) *Deduper {
	return &Deduper{
		policy:    policy,
		survivors: make(map[string]*domain.Referral),
	}
}

// Observe feeds one referral through deduplication. It returns true when the
// referral's identity key was seen before; the incoming referral is then
// marked duplicate and, under last-wins, its fields replace the survivor's.
// The survivor always keeps its identity key and the referral timestamp of
// the first occurrence.
func (d *Deduper) Observe(r *domain.Referral) bool {
	existing, seen := d.survivors[r.IdentityKey]
	if !seen {
		d.survivors[r.IdentityKey] = r
		d.order = append(d.order, r.IdentityKey)
		return false
	}

	if d.policy == domain.DedupLastWins {
		existing.Raw = r.Raw
		existing.Derived = r.Derived
	}
	_ = r.Advance(domain.StatusDuplicate)
	return true
}

// Survivors returns the surviving referrals in first-occurrence order.
func (d *Deduper) Survivors() []*domain.Referral {
	out := make([]*domain.Referral, 0, len(d.order))
	for _, key := range d.order {
		out = append(out, d.survivors[key])
	}
	return out
}
