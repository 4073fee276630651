package scan

import (
	"strings"
	"time"
)

var checkInLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

// ParseCheckIn parses a backend check-in timestamp. Values without a zone are
// read in loc (time.Local when nil).
func ParseCheckIn(raw string, loc *time.Location) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range checkInLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// IsNew classifies an update_found record against the cursor.
//
// A different id is always new. The same id is new only when the check-in
// changed, is not in the future, and moves forward from lastCheckIn. An
// unreadable check-in never re-triggers a known id.
func IsNew(r Result, lastID, lastCheckIn string, now time.Time, loc *time.Location) bool {
	if r.Status != StatusUpdateFound {
		return false
	}
	if strings.TrimSpace(r.ScanID) != strings.TrimSpace(lastID) {
		return true
	}

	at, ok := ParseCheckIn(r.CheckIn, loc)
	if !ok {
		return false
	}
	if at.After(now) {
		return false
	}
	last, ok := ParseCheckIn(lastCheckIn, loc)
	if !ok {
		// Nothing comparable recorded; any readable change counts.
		return strings.TrimSpace(r.CheckIn) != strings.TrimSpace(lastCheckIn)
	}
	return at.After(last)
}
