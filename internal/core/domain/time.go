package domain

import (
	"fmt"
	"strings"
	"time"
)

// timestampLayouts are tried in order when parsing referral timestamps.
// Upstream exports mix RFC 3339 with space-separated and date-only forms;
// Go accepts fractional seconds on any of these without a dedicated layout.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a referral timestamp. Values without an explicit
// zone are taken as UTC, matching how the upstream exports are produced.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty timestamp", ErrInvalidInput)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable timestamp %q", ErrInvalidInput, s)
}
