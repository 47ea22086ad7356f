package utils

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format accepted in query strings.
const DateLayout = "2006-01-02"

// Window is a half-open time interval [Start, End). Every aggregation in the
// service filters with createdAt >= Start AND createdAt < End.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// StartOfDay truncates t to midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DayWindow returns the calendar day containing t in loc. The end is the next
// midnight computed with AddDate, so DST days are 23 or 25 hours long.
func DayWindow(t time.Time, loc *time.Location) Window {
	start := StartOfDay(t, loc)
	return Window{Start: start, End: start.AddDate(0, 0, 1)}
}

// MonthToDateWindow runs from the first of t's month to the end of t's day.
func MonthToDateWindow(t time.Time, loc *time.Location) Window {
	day := DayWindow(t, loc)
	first := time.Date(day.Start.Year(), day.Start.Month(), 1, 0, 0, 0, 0, day.Start.Location())
	return Window{Start: first, End: day.End}
}

// DateRangeWindow covers whole days from `from` through `to` inclusive.
func DateRangeWindow(from, to time.Time, loc *time.Location) Window {
	return Window{Start: StartOfDay(from, loc), End: DayWindow(to, loc).End}
}

// ParseDate reads a YYYY-MM-DD date as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}
