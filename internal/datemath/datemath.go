// Package datemath holds the calendar-day primitives the grid and matcher
// are built on. Every function keeps the location of its input and works on
// wall-clock date fields, so results are not shifted by DST transitions.
package datemath

import "time"

// StartOfDay truncates d to midnight in d's location.
func StartOfDay(d time.Time) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, d.Location())
}

// EndOfDay returns the last representable instant of d's calendar day.
func EndOfDay(d time.Time) time.Time {
	return AddDays(StartOfDay(d), 1).Add(-time.Nanosecond)
}

// StartOfMonth returns midnight on the first day of d's month.
func StartOfMonth(d time.Time) time.Time {
	y, m, _ := d.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, d.Location())
}

// EndOfMonth returns midnight on the last day of d's month.
func EndOfMonth(d time.Time) time.Time {
	y, m, _ := d.Date()
	// Day 0 of the next month normalizes to the last day of this one.
	return time.Date(y, m+1, 0, 0, 0, 0, 0, d.Location())
}

// StartOfWeek returns midnight on the Sunday on or before d.
func StartOfWeek(d time.Time) time.Time {
	day := StartOfDay(d)
	return AddDays(day, -int(day.Weekday()))
}

// AddDays moves d by n calendar days, keeping the wall-clock time.
func AddDays(d time.Time, n int) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day+n, d.Hour(), d.Minute(), d.Second(), d.Nanosecond(), d.Location())
}

// AddMonths moves to day 1 of the month n months away from d's month.
func AddMonths(d time.Time, n int) time.Time {
	y, m, _ := d.Date()
	return time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, d.Location())
}

// IsSameDate compares year, month and day as seen in each value's own
// location.
func IsSameDate(a, b time.Time) bool {
	return DateKey(a) == DateKey(b)
}

// IsBetweenDay reports whether d's date lies within [s, e] by date only,
// inclusive on both ends.
func IsBetweenDay(d, s, e time.Time) bool {
	k := DateKey(d)
	return DateKey(s) <= k && k <= DateKey(e)
}

// CompareDate orders a and b by date only: -1, 0 or +1.
func CompareDate(a, b time.Time) int {
	ka, kb := DateKey(a), DateKey(b)
	switch {
	case ka < kb:
		return -1
	case ka > kb:
		return 1
	default:
		return 0
	}
}

// DateKey encodes a's date as yyyymmdd so date-only values compare as ints.
func DateKey(a time.Time) int {
	y, m, d := a.Date()
	return y*10000 + int(m)*100 + d
}
