package domain

// RawRecord is one merged referral row as emitted by a source, before it
// enters the pipeline stages. Line is the position in the driving table and
// fixes the input order that deduplication depends on.
type RawRecord struct {
	// Line is the 1-based row number within the driving table.
	Line int

	// Fields maps column name to value as received, after source-side
	// joins and cleaning. Cleaned values live under derived keys so the
	// received values are preserved verbatim.
	Fields map[string]string

	// Derived maps computed column names (cleaned names, localised
	// timestamps) to their values.
	Derived map[string]string
}

// NewReferral builds a pending referral from a loaded record. It fails when
// no identity key can be derived, which the loader counts as a load error.
func NewReferral(rec RawRecord) (*Referral, error) {
	key, err := DeriveIdentityKey(rec.Fields)
	if err != nil {
		return nil, err
	}

	r := &Referral{
		IdentityKey: key,
		Raw:         rec.Fields,
		Derived:     rec.Derived,
		Status:      StatusPending,
		FirstSeenAt: rec.Fields[FieldReferralAt],
	}
	return r, nil
}
