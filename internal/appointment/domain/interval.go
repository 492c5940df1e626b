package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

// ParseDate validates a calendar date in YYYY-MM-DD form.
func ParseDate(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if _, err := time.Parse("2006-01-02", trimmed); err != nil {
		return "", ErrInvalidDate
	}
	return trimmed, nil
}

// ParseStartMinute converts an HH:MM wall-clock time to minute-of-day.
func ParseStartMinute(value string) (int, error) {
	trimmed := strings.TrimSpace(value)
	parts := strings.Split(trimmed, ":")
	if len(parts) != 2 {
		return 0, ErrInvalidTime
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, ErrInvalidTime
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, ErrInvalidTime
	}
	return hour*60 + minute, nil
}

// FormatStartMinute renders a minute-of-day back to HH:MM.
func FormatStartMinute(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// ValidateInterval checks that a start/duration pair is a well-formed
// same-day interval. Intervals running past midnight are rejected.
func ValidateInterval(startMinute, durationMin int) error {
	if durationMin <= 0 {
		return ErrInvalidDuration
	}
	if startMinute < 0 || startMinute >= minutesPerDay {
		return ErrInvalidTime
	}
	if startMinute+durationMin > minutesPerDay {
		return ErrInvalidDuration
	}
	return nil
}

// Overlaps reports whether two half-open minute intervals intersect.
// Intervals that merely touch (one ends exactly when the other starts)
// do not overlap.
func Overlaps(startA, durA, startB, durB int) bool {
	return startA < startB+durB && startA+durA > startB
}
