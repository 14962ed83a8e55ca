package service

import (
	"fmt"
	"time"
)

// All aggregation windows are computed in UTC. "Today" is the UTC calendar
// day, and weeks are ISO weeks starting Monday 00:00 UTC.

// dayWindow returns the half-open UTC calendar day [start, end) containing t.
func dayWindow(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// weekWindow returns the half-open ISO week [Monday 00:00, next Monday)
// containing t.
func weekWindow(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday belongs to the week that started the prior Monday
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(weekday - 1))
	return start, start.AddDate(0, 0, 7)
}

// periodStart returns the beginning of a rolling performance window ending
// at t. Unknown periods fall back to a week.
func periodStart(t time.Time, period string) time.Time {
	t = t.UTC()
	switch period {
	case "month":
		return t.AddDate(0, -1, 0)
	case "year":
		return t.AddDate(-1, 0, 0)
	default:
		return t.AddDate(0, 0, -7)
	}
}

// isoWeekLabel formats t's ISO week as "2026-W35".
func isoWeekLabel(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func within(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}
