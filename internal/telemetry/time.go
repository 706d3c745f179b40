package telemetry

import (
	"encoding/json"
	"strings"
	"time"
)

// Epoch values above this threshold are interpreted as milliseconds.
// The 1e10..1e12 band parses as seconds; there is exactly one
// convention and one implementation for the whole module.
const millisThreshold = 1e12

// Fallback layout for naive ISO-8601 strings without a zone offset.
// Such timestamps are assumed to be UTC.
const naiveISOLayout = "2006-01-02T15:04:05"

// ParseEpoch normalises a raw timestamp value into epoch seconds.
// It accepts numeric epochs (seconds, or milliseconds when the value
// exceeds 1e12), ISO-8601 strings with a trailing 'Z' or an explicit
// offset, naive ISO-8601 strings (assumed UTC) and time.Time values.
// The second return value is false when the input cannot be parsed;
// callers decide whether to skip the record or fall back to a fixed
// interval.
func ParseEpoch(v any) (float64, bool) {
	switch ts := v.(type) {
	case nil:
		return 0, false

	case float64:
		return normaliseNumeric(ts), true

	case float32:
		return normaliseNumeric(float64(ts)), true

	case int:
		return normaliseNumeric(float64(ts)), true

	case int64:
		return normaliseNumeric(float64(ts)), true

	case json.Number:
		f, err := ts.Float64()
		if err != nil {
			return 0, false
		}
		return normaliseNumeric(f), true

	case time.Time:
		return timeToEpoch(ts), true

	case string:
		return parseEpochString(ts)
	}

	return 0, false
}

func normaliseNumeric(v float64) float64 {
	if v > millisThreshold {
		return v / 1000.0
	}
	return v
}

func parseEpochString(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	// datetime parsers commonly reject a bare 'Z' suffix; rewrite it
	// to an explicit UTC offset first, matching the recorded streams.
	if strings.HasSuffix(s, "Z") {
		s = strings.TrimSuffix(s, "Z") + "+00:00"
	}

	if t, err := time.Parse("2006-01-02T15:04:05Z07:00", s); err == nil {
		return timeToEpoch(t), true
	}

	// Fixed fallback pattern: naive ISO-8601, assume UTC.
	if t, err := time.ParseInLocation(naiveISOLayout, s, time.UTC); err == nil {
		return timeToEpoch(t), true
	}

	return 0, false
}

func timeToEpoch(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
