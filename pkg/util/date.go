package util

import (
	"strconv"
	"time"
)

// unixMsFloor separates second-resolution stamps from millisecond ones.
// Anything above it is year 5138 in seconds, so it can only be ms.
const unixMsFloor = 1e11

// ParseTime tries RFC3339, RFC3339Nano, and bare unix integers in
// seconds or milliseconds. Returns (t, true) if any form worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return UnixAuto(ts), true
	}
	return time.Time{}, false
}

// UnixAuto converts a unix stamp to UTC time, treating magnitudes above
// unixMsFloor as milliseconds. Exchange and broker feeds disagree on
// the unit, so callers accept either.
func UnixAuto(n int64) time.Time {
	if n > unixMsFloor {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}
