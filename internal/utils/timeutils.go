package utils

import (
	"fmt"
	"time"
)

// DayLayout is the calendar-day wire format used throughout the engine.
// Lexicographic order of formatted days matches chronological order.
const DayLayout = "2006-01-02"

// Day truncates a timestamp to its UTC calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDay returns the UTC calendar day encoded by value, or an error.
func ParseDay(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty day value")
	}
	t, err := time.ParseInLocation(DayLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day: %w", err)
	}
	return t, nil
}

// FormatDay renders a timestamp's UTC calendar day.
func FormatDay(t time.Time) string {
	return Day(t).Format(DayLayout)
}

// MonthPartition renders the archive partition label for a day (e.g. 2025_07).
func MonthPartition(t time.Time) string {
	return Day(t).Format("2006_01")
}

// DaysBetween counts whole calendar days from a to b (negative when b precedes a).
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)) / (24 * time.Hour))
}
