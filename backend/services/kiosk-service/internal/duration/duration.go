// Package duration converts the kiosk's hour/minute/second inputs into a charge
// duration, prices it and formats remaining time for the countdown.
package duration

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Defaults used when the tariff config leaves a field unset.
const (
	DefaultMaxHours    = 24
	DefaultMaxMinutes  = 59
	DefaultMaxSeconds  = 59
	DefaultRatePerHour = 20
)

// Limits caps each input field individually.
type Limits struct {
	MaxHours   int
	MaxMinutes int
	MaxSeconds int
}

// Calculator holds the per-field limits and the hourly rate.
type Calculator struct {
	limits      Limits
	ratePerHour int
}

// NewCalculator returns a calculator; non-positive values fall back to the defaults.
func NewCalculator(limits Limits, ratePerHour int) *Calculator {
	if limits.MaxHours <= 0 {
		limits.MaxHours = DefaultMaxHours
	}
	if limits.MaxMinutes <= 0 {
		limits.MaxMinutes = DefaultMaxMinutes
	}
	if limits.MaxSeconds <= 0 {
		limits.MaxSeconds = DefaultMaxSeconds
	}
	if ratePerHour <= 0 {
		ratePerHour = DefaultRatePerHour
	}
	return &Calculator{limits: limits, ratePerHour: ratePerHour}
}

// RatePerHour returns the configured tariff.
func (c *Calculator) RatePerHour() int {
	return c.ratePerHour
}

// ComputeDuration clamps each field into [0, max] and returns the total in seconds.
func (c *Calculator) ComputeDuration(hours, minutes, seconds int) int {
	hours = clamp(hours, c.limits.MaxHours)
	minutes = clamp(minutes, c.limits.MaxMinutes)
	seconds = clamp(seconds, c.limits.MaxSeconds)
	return hours*3600 + minutes*60 + seconds
}

// FromInput parses raw form values and computes the duration.
func (c *Calculator) FromInput(hours, minutes, seconds string) int {
	return c.ComputeDuration(ParseField(hours), ParseField(minutes), ParseField(seconds))
}

// ComputeAmount returns ceil(durationSeconds/3600 * rate). Integer arithmetic keeps
// exact hour fractions from rounding up on float error.
func (c *Calculator) ComputeAmount(durationSeconds int) int {
	if durationSeconds <= 0 {
		return 0
	}
	total := durationSeconds * c.ratePerHour
	return (total + 3599) / 3600
}

// ParseField reads the leading integer of raw; anything unparsable is 0 and
// out-of-range values saturate.
func ParseField(raw string) int {
	raw = strings.TrimSpace(raw)
	end := 0
	if end < len(raw) && (raw[end] == '-' || raw[end] == '+') {
		end++
	}
	digits := end
	for end < len(raw) && raw[end] >= '0' && raw[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	v, err := strconv.Atoi(raw[:end])
	if errors.Is(err, strconv.ErrRange) {
		// Saturate so the field maximum still applies.
		if raw[0] == '-' {
			return math.MinInt
		}
		return math.MaxInt
	}
	if err != nil {
		return 0
	}
	return v
}

// FormatDuration renders seconds as HH:MM:SS. Hours are padded to two digits but
// never truncated, so 100 hours prints as "100:00:00".
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func clamp(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
