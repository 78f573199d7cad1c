package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Canonical field names shared by the loader, validator, classifier and sinks.
// They follow the column names of the upstream referral exports.
const (
	FieldReferralID        = "referral_id"
	FieldReferralSource    = "referral_source"
	FieldReferralAt        = "referral_at"
	FieldReferrerID        = "referrer_id"
	FieldReferrerName      = "referrer_name"
	FieldRefereeID         = "referee_id"
	FieldDescription       = "description"
	FieldTransactionID     = "transaction_id"
	FieldTransactionStatus = "transaction_status"
	FieldTransactionType   = "transaction_type"
	FieldTransactionAt     = "transaction_at"
	FieldTransactionAtLoc  = "transaction_at_local"
	FieldRewardValue       = "reward_value"
	FieldRewardGrantedAt   = "reward_granted_at"
)

// Classification labels assigned by the shipped rule set. Custom rule sets
// may introduce their own labels.
const (
	ClassificationValid        = "valid"
	ClassificationInvalidLogic = "invalid_logic"
)

// Referral is the central pipeline entity: one referred lead moving through
// load, validation, deduplication, classification and the sink write.
type Referral struct {
	// IdentityKey is the deterministic deduplication key.
	IdentityKey string

	// Raw holds the field values exactly as loaded. It is never mutated
	// after the loader emits the record; cleaning and enrichment write to
	// Derived instead so the original values stay available for audit.
	Raw map[string]string

	// Derived holds values computed from Raw (cleaned names, localised
	// timestamps, coerced numbers). Lookups via Field prefer Derived.
	Derived map[string]string

	// Status is the lifecycle state. It only ever advances.
	Status Status

	// Classification is the label assigned by the first matching rule.
	// Empty until the classifier runs.
	Classification string

	// Score is the numeric score assigned alongside Classification.
	Score float64

	// Scored reports whether the classifier has run for this referral.
	Scored bool

	// InvalidReasons carries machine-readable reason codes attached by the
	// validator, e.g. "missing_field:referee_id".
	InvalidReasons []string

	// FirstSeenAt is the referral_at of the first occurrence of this
	// identity key. Under the last-wins merge policy it survives merges.
	FirstSeenAt string

	// WriteError records a per-record sink failure, empty on success.
	WriteError string
}

// Field returns the effective value for a field name: the derived value when
// one exists, otherwise the raw value. Missing fields yield "".
func (r *Referral) Field(name string) string {
	if v, ok := r.Derived[name]; ok {
		return v
	}
	return r.Raw[name]
}

// HasField reports whether the field has a non-empty effective value.
func (r *Referral) HasField(name string) bool {
	return strings.TrimSpace(r.Field(name)) != ""
}

// SetDerived records a computed value without touching Raw.
func (r *Referral) SetDerived(name, value string) {
	if r.Derived == nil {
		r.Derived = make(map[string]string)
	}
	r.Derived[name] = value
}

// AddInvalidReason appends a validation reason code once.
func (r *Referral) AddInvalidReason(code string) {
	for _, existing := range r.InvalidReasons {
		if existing == code {
			return
		}
	}
	r.InvalidReasons = append(r.InvalidReasons, code)
}

// DeriveIdentityKey computes the deduplication key for a loaded record.
// An explicit referral_id wins; otherwise the key is derived from the
// referee and referral timestamp so re-runs produce the same key.
// Records carrying neither cannot enter the pipeline.
func DeriveIdentityKey(fields map[string]string) (string, error) {
	if id := strings.TrimSpace(fields[FieldReferralID]); id != "" {
		return id, nil
	}

	referee := strings.TrimSpace(fields[FieldRefereeID])
	at := strings.TrimSpace(fields[FieldReferralAt])
	if referee == "" || at == "" {
		return "", fmt.Errorf("%w: need %s, or %s with %s",
			ErrNoIdentity, FieldReferralID, FieldRefereeID, FieldReferralAt)
	}

	sum := sha256.Sum256([]byte(referee + "\x1f" + at))
	return hex.EncodeToString(sum[:16]), nil
}
