package summary

import (
	"strings"
	"time"
)

// DateLayout is the wire form of week and day dates.
const DateLayout = "2006-01-02"

// WeekStart returns the Monday 00:00 UTC of the week containing t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// WeekEnd returns the Sunday of the week starting at start.
func WeekEnd(start time.Time) time.Time {
	return start.AddDate(0, 0, 6)
}

// WeekKey formats the week containing t as its Monday date.
func WeekKey(t time.Time) string {
	return WeekStart(t).Format(DateLayout)
}

// ParseWeek resolves a requested week. Any date is snapped back to its
// Monday; an empty or unparseable value means the week containing now.
// RFC 3339 timestamps are converted to UTC before snapping.
func ParseWeek(s string, now time.Time) time.Time {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return WeekStart(t)
	}
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return WeekStart(now)
	}
	return WeekStart(t)
}
