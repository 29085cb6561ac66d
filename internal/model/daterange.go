package model

import (
	"fmt"
	"time"
)

// DateRange is a closed interval [Start, End]. A zero bound is open.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// IsOpen reports whether neither bound is set.
func (r DateRange) IsOpen() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// DateRangeType names the preset filters offered to the user.
type DateRangeType string

// Date range presets.
const (
	RangeToday     DateRangeType = "today"
	RangeThisWeek  DateRangeType = "this-week"
	RangeThisMonth DateRangeType = "this-month"
	RangeThisYear  DateRangeType = "this-year"
	RangeAll       DateRangeType = "all"
	// RangeCustom bounds come from explicit start and end dates.
	RangeCustom DateRangeType = "custom"
)

// Resolve turns a preset into concrete bounds relative to now, in now's
// location. Weeks start on Monday. Custom ranges cannot be resolved and
// return an error.
func (t DateRangeType) Resolve(now time.Time) (DateRange, error) {
	y, m, d := now.Date()
	loc := now.Location()
	startOfDay := time.Date(y, m, d, 0, 0, 0, 0, loc)
	// Ranges are inclusive, so each one ends a millisecond before the next starts.
	until := func(next time.Time) time.Time { return next.Add(-time.Millisecond) }

	switch t {
	case RangeToday:
		return DateRange{Start: startOfDay, End: until(startOfDay.AddDate(0, 0, 1))}, nil
	case RangeThisWeek:
		offset := (int(startOfDay.Weekday()) + 6) % 7
		start := startOfDay.AddDate(0, 0, -offset)
		return DateRange{Start: start, End: until(start.AddDate(0, 0, 7))}, nil
	case RangeThisMonth:
		start := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return DateRange{Start: start, End: until(start.AddDate(0, 1, 0))}, nil
	case RangeThisYear:
		start := time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
		return DateRange{Start: start, End: until(start.AddDate(1, 0, 0))}, nil
	case RangeAll:
		return DateRange{}, nil
	default:
		return DateRange{}, fmt.Errorf("date range %q has no preset bounds", t)
	}
}
