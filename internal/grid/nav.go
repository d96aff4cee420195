package grid

import (
	"fmt"
	"strings"
	"time"

	"meetcal/internal/datemath"
)

// Mode selects the visible window.
type Mode string

const (
	ModeMonth Mode = "month"
	ModeWeek  Mode = "week"
)

// ParseMode accepts "month" or "week" (case-insensitive); empty means month.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ModeMonth):
		return ModeMonth, nil
	case string(ModeWeek):
		return ModeWeek, nil
	default:
		return "", fmt.Errorf("unknown view mode %q", s)
	}
}

// Shift moves cursor by delta steps of mode: 7 days per step in week mode,
// one month per step in month mode anchored to day 1 so the 31st never
// skips a short month.
func Shift(mode Mode, cursor time.Time, delta int) time.Time {
	if mode == ModeWeek {
		return datemath.AddDays(datemath.StartOfDay(cursor), 7*delta)
	}
	return datemath.AddMonths(cursor, delta)
}

// Window returns the fetch window covering the visible grid for mode.
func Window(mode Mode, cursor time.Time) (time.Time, time.Time) {
	if mode == ModeWeek {
		r := Week(cursor)
		return r.Span()
	}
	g := Month(cursor)
	return g.Span()
}

// Today returns the current date at midnight in loc.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return datemath.StartOfDay(now.In(loc))
}
