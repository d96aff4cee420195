// Package match decides which meetings belong to a day or a fetch window.
//
// Timed meetings are compared on the day cell's location: the start instant
// is moved into that location before the date test. All-day meetings are
// floating calendar dates and are compared on the date fields they were
// stored with, so a UTC all-day entry stays on its date for every viewer.
package match

import (
	"sort"
	"time"

	"meetcal/internal/datemath"
	"meetcal/internal/model"
)

// OnDay reports whether m belongs to day d.
func OnDay(d time.Time, m model.Meeting) bool {
	if m.AllDay {
		return datemath.IsBetweenDay(d, m.Start, m.End)
	}
	return datemath.IsSameDate(d, m.Start.In(d.Location()))
}

// Overlaps reports whether m intersects [from, to]. Touching a boundary
// counts as overlapping.
func Overlaps(m model.Meeting, from, to time.Time) bool {
	return !m.Start.After(to) && !m.End.Before(from)
}

// ForDay returns the meetings of ms that belong to d, ascending by start.
// Equal starts keep their order in ms.
func ForDay(d time.Time, ms []model.Meeting) []model.Meeting {
	out := make([]model.Meeting, 0)
	for _, m := range ms {
		if OnDay(d, m) {
			out = append(out, m)
		}
	}
	SortByStart(out)
	return out
}

// InWindow filters ms to those overlapping [from, to], preserving order.
func InWindow(ms []model.Meeting, from, to time.Time) []model.Meeting {
	out := make([]model.Meeting, 0, len(ms))
	for _, m := range ms {
		if Overlaps(m, from, to) {
			out = append(out, m)
		}
	}
	return out
}

// SortByStart stable-sorts ms ascending by start in place.
func SortByStart(ms []model.Meeting) {
	sort.SliceStable(ms, func(i, j int) bool {
		return ms[i].Start.Before(ms[j].Start)
	})
}
