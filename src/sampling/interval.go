package sampling

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"serialpha/src/helpers"
	"serialpha/src/models"
	"serialpha/src/profile"
)

// FallbackInterval is used when no interval was ever configured.
const FallbackInterval = 2 * time.Second

// MaxIntervalMs is the longest interval a time.Duration can hold, in milliseconds.
const MaxIntervalMs = float64(math.MaxInt64 / int64(time.Millisecond))

var leadingNumber = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)

// -----------------------------------------------------------------------------

// ToMilliseconds converts value in unit (ms, s, min, h) to milliseconds.
// Like a browser number field, trailing garbage after the number is ignored.
func ToMilliseconds(value, unit string) (float64, error) {
	m := leadingNumber.FindString(strings.TrimSpace(value))
	if m == "" {
		return 0, helpers.NewConfigurationError("invalid interval value %q", value)
	}
	num, err := strconv.ParseFloat(m, 64)
	if err != nil || num <= 0 {
		return 0, helpers.NewConfigurationError("invalid interval value %q", value)
	}

	var ms float64
	switch unit {
	case "ms":
		ms = num
	case "s":
		ms = num * 1000
	case "min":
		ms = num * 60 * 1000
	case "h":
		ms = num * 60 * 60 * 1000
	default:
		return 0, helpers.NewConfigurationError("unknown interval unit %q", unit)
	}
	if ms > MaxIntervalMs {
		return 0, helpers.NewConfigurationError("interval %s %s exceeds the maximum of %s", value, unit, FormatInterval(MaxIntervalMs))
	}
	return ms, nil
}

// -----------------------------------------------------------------------------

// ValidateInterval checks an operator interval against the profile minimum.
func ValidateInterval(value, unit string, p *models.MProfile) (time.Duration, error) {
	ms, err := ToMilliseconds(value, unit)
	if err != nil {
		return 0, err
	}
	minMs := profile.MinInterval(p)
	if ms < float64(minMs) {
		return 0, helpers.NewConfigurationError("minimum interval for this instrument: %s", FormatInterval(float64(minMs)))
	}
	return time.Duration(ms * float64(time.Millisecond)), nil
}

// -----------------------------------------------------------------------------

// EffectivePeriod is max(interval, profile minimum).
func EffectivePeriod(interval time.Duration, p *models.MProfile) time.Duration {
	if interval <= 0 {
		interval = FallbackInterval
	}
	minPeriod := time.Duration(profile.MinInterval(p)) * time.Millisecond
	if interval < minPeriod {
		return minPeriod
	}
	return interval
}

// -----------------------------------------------------------------------------

// FormatInterval renders milliseconds in the largest unit below the value.
func FormatInterval(ms float64) string {
	format := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	switch {
	case ms < 1000:
		return format(ms) + " ms"
	case ms < 60000:
		return format(ms/1000) + " s"
	case ms < 3600000:
		return format(ms/60000) + " min"
	default:
		return format(ms/3600000) + " h"
	}
}
