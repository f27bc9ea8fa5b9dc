package proto

import "time"

// Wire timestamp layouts. The server emits RFC3339; some backends send
// naive isoformat timestamps without a zone, so both are accepted.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// FormatTimestamp renders t in the wire format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTimestamp parses a wire timestamp. Returns false for empty or
// unparsable values; callers treat those as "no timestamp" (oldest).
func ParseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
