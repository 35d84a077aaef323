package model

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// epochMillisThreshold is the boundary the teacher's transcript parsers
// never had to reason about (they only ever saw RFC 3339 strings): an
// int64 below this is seconds since the epoch, at or above it is
// milliseconds. 10^12 seconds is the year 33658; 10^12 milliseconds is
// 2001-09-09, so anything plausible for a chat export lands unambiguously
// on one side.
const epochMillisThreshold = 1_000_000_000_000

// stringLayouts are tried in order against a timestamp string. The set
// covers ISO 8601 with and without fractional seconds, RFC 3339, and a
// handful of common human-readable export formats (spec.md §4.1).
var stringLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"Jan 2, 2006 3:04 PM",
}

// ParseTimestamp accepts the value shapes spec.md §4.1 requires: 64-bit
// integers (seconds if below epochMillisThreshold, otherwise
// milliseconds), floating-point seconds with a fractional part, or
// strings matched against stringLayouts in order. It returns ok=false
// (a typed "missing") rather than an error when nothing matches, so a
// caller can record a warning without failing the whole conversation.
func ParseTimestamp(raw any) (t time.Time, ok bool) {
	switch v := raw.(type) {
	case nil:
		return time.Time{}, false
	case int64:
		return parseEpoch(float64(v)), true
	case int:
		return parseEpoch(float64(v)), true
	case float64:
		if v == 0 {
			return time.Time{}, false
		}
		return parseEpoch(v), true
	case string:
		return parseTimestampString(v)
	default:
		return time.Time{}, false
	}
}

func parseEpoch(v float64) time.Time {
	abs := math.Abs(v)
	if abs < epochMillisThreshold {
		sec, frac := math.Modf(v)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC()
	}
	millis := int64(v)
	return time.UnixMilli(millis).UTC()
}

func parseTimestampString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	// A numeric string (e.g. exported as a quoted epoch value) is
	// treated the same as a bare number.
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return parseEpoch(n), true
	}

	for _, layout := range stringLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed.UTC(), true
		}
	}

	return time.Time{}, false
}
