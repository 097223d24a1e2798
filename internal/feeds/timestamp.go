package feeds

import (
	"time"

	"github.com/bluesky-social/indigo/atproto/syntax"
)

// DefaultDrift is how far in the past a record timestamp may lie before it
// is replaced by the ingestion time.
const DefaultDrift = 24 * time.Hour

const naiveLayout = "2006-01-02T15:04:05.999999999"

// SafeTimestamp parses a record's createdAt. It returns now when the value
// does not parse, is not after the epoch, lies in the future, or is older
// than drift.
func SafeTimestamp(raw string, now time.Time, drift time.Duration) time.Time {
	if drift <= 0 {
		drift = DefaultDrift
	}
	t, ok := parseTimestamp(raw)
	if !ok {
		return now
	}
	if t.Unix() <= 0 || t.After(now) || now.Sub(t) > drift {
		return now
	}
	return t
}

func parseTimestamp(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	if dt, err := syntax.ParseDatetime(raw); err == nil {
		return dt.Time().UTC(), true
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), true
	}
	if t, err := time.ParseInLocation(naiveLayout, raw, time.UTC); err == nil {
		return t, true
	}
	return time.Time{}, false
}
