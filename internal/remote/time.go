package remote

import (
	"fmt"
	"strings"
	"time"
)

// WireTimeLayout is the canonical time format sent to the API: UTC, second precision.
const WireTimeLayout = "2006-01-02T15:04:05Z"

// layouts without an offset are interpreted in the caller's location
var zonelessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime accepts RFC 3339 timestamps and the zone-less forms the dashboard produces
// ("2024-01-01T10:00", "2024-01-01T10:00:00", ...). Zone-less values are read in loc.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range zonelessLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
}

// NormalizeTime converts s to WireTimeLayout, dropping sub-second precision.
func NormalizeTime(s string, loc *time.Location) (string, error) {
	t, err := ParseTime(s, loc)
	if err != nil {
		return "", err
	}
	return FormatTime(t), nil
}

// FormatTime renders t in WireTimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(WireTimeLayout)
}
