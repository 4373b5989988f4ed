package appointment

import (
	"strings"
	"time"
)

// Accepted external timestamp forms. Layouts without a zone parse as UTC.
var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05Z07",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04Z0700",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"20060102T150405Z07:00",
	"20060102T150405Z0700",
	"20060102T150405",
}

// NormalizeInstant parses an ISO-8601 timestamp into a UTC instant truncated to
// whole seconds. A timestamp without zone information is taken to be UTC.
func NormalizeInstant(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrInvalidTimestamp
	}
	for _, layout := range instantLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t.UTC().Truncate(time.Second), nil
		}
	}
	return time.Time{}, ErrInvalidTimestamp
}
