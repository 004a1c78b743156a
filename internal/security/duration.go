package security

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const DefaultTTL = 15 * time.Minute

var durationPattern = regexp.MustCompile(`^(\d+)\s*(ms|s|m|h|d|w)?$`)

var durationUnits = map[string]time.Duration{
	"ms": time.Millisecond,
	"s":  time.Second,
	"m":  time.Minute,
	"h":  time.Hour,
	"d":  24 * time.Hour,
	"w":  7 * 24 * time.Hour,
}

// ParseTTL reads human-readable durations such as "15m", "7d" or "3600" (seconds).
// Anything it does not recognise, or that overflows a Duration, yields fallback, or DefaultTTL when fallback is zero.
func ParseTTL(value string, fallback time.Duration) time.Duration {
	if fallback <= 0 {
		fallback = DefaultTTL
	}

	m := durationPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(value)))
	if m == nil {
		return fallback
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || n <= 0 {
		return fallback
	}

	unit := time.Second
	if m[2] != "" {
		unit = durationUnits[m[2]]
	}
	if n > math.MaxInt64/int64(unit) {
		return fallback
	}
	return time.Duration(n) * unit
}
