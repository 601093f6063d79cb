package domain

import (
	"fmt"
	"time"
)

// dateLayout is the canonical storage format for calendar dates.
// Dates are stored as YYYY-MM-DD strings so sqlite range queries order correctly.
const dateLayout = "2006-01-02"

// Day truncates a time to midnight UTC. The calendar day is taken from the
// UTC instant, matching DateKey, so both always name the same day for the
// same input. All calendar arithmetic in the simulation happens on
// Day-normalized times.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateKey formats a time as its canonical YYYY-MM-DD storage key
func DateKey(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// ParseDateKey parses a YYYY-MM-DD storage key back to midnight UTC
func ParseDateKey(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date %q: %w", s, err)
	}
	return t, nil
}
