package grid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetcal/internal/datemath"
	"meetcal/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMonthGridShape(t *testing.T) {
	// Every month across several years, including leap Februaries.
	for i := 0; i < 60; i++ {
		cursor := datemath.AddMonths(day(2023, 1, 15), i).Add(13 * time.Hour)
		g := Month(cursor)
		cells := g.Cells()
		require.Len(t, cells, 42)

		assert.Equal(t, time.Sunday, cells[0].Date.Weekday(), "cursor %s", cursor)
		for j := 1; j < len(cells); j++ {
			assert.Equal(t, datemath.AddDays(cells[j-1].Date, 1), cells[j].Date)
		}

		// The whole month is present and flagged.
		inMonth := 0
		for _, c := range cells {
			if c.InCurrentMonth {
				inMonth++
				assert.Equal(t, cursor.Month(), c.Date.Month())
			}
		}
		assert.Equal(t, datemath.EndOfMonth(cursor).Day(), inMonth)
	}
}

func TestMonthGridSeptember2025(t *testing.T) {
	g := Month(day(2025, 9, 17))
	assert.Equal(t, day(2025, 8, 31), g[0][0].Date)
	assert.False(t, g[0][0].InCurrentMonth)
	assert.Equal(t, day(2025, 9, 1), g[0][1].Date)
	assert.True(t, g[0][1].InCurrentMonth)
	assert.Equal(t, day(2025, 10, 11), g[5][6].Date)

	from, to := g.Span()
	assert.Equal(t, day(2025, 8, 31), from)
	assert.Equal(t, datemath.EndOfDay(day(2025, 10, 11)), to)
}

func TestWeekRow(t *testing.T) {
	for i := 0; i < 14; i++ {
		cursor := datemath.AddDays(day(2025, 9, 1), i).Add(7 * time.Hour)
		r := Week(cursor)
		assert.Equal(t, datemath.StartOfWeek(cursor), r[0].Date)
		assert.Equal(t, time.Sunday, r[0].Date.Weekday())
		for j := 0; j < DaysPerWeek; j++ {
			assert.True(t, r[j].InCurrentMonth)
			assert.Equal(t, datemath.AddDays(r[0].Date, j), r[j].Date)
		}
	}
}

func TestShiftWeek(t *testing.T) {
	c := time.Date(2025, 9, 3, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, day(2025, 9, 10), Shift(ModeWeek, c, 1))
	assert.Equal(t, day(2025, 8, 27), Shift(ModeWeek, c, -1))
}

func TestShiftMonthAnchorsToFirst(t *testing.T) {
	assert.Equal(t, day(2025, 2, 1), Shift(ModeMonth, day(2025, 1, 31), 1))
	assert.Equal(t, day(2025, 3, 1), Shift(ModeMonth, day(2025, 1, 31), 2))
	assert.Equal(t, day(2024, 12, 1), Shift(ModeMonth, day(2025, 1, 31), -1))
}

func TestWindowByMode(t *testing.T) {
	from, to := Window(ModeWeek, day(2025, 9, 3))
	assert.Equal(t, day(2025, 8, 31), from)
	assert.Equal(t, datemath.EndOfDay(day(2025, 9, 6)), to)

	from, to = Window(ModeMonth, day(2025, 9, 3))
	assert.Equal(t, day(2025, 8, 31), from)
	assert.Equal(t, datemath.EndOfDay(day(2025, 10, 11)), to)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("WEEK")
	require.NoError(t, err)
	assert.Equal(t, ModeWeek, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeMonth, m)

	_, err = ParseMode("year")
	assert.Error(t, err)
}

func TestToday(t *testing.T) {
	kst := time.FixedZone("KST", 9*3600)
	now := time.Date(2025, 9, 30, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 10, 1, 0, 0, 0, 0, kst), Today(now, kst))
}

func TestFill(t *testing.T) {
	r := Week(day(2025, 9, 3))
	m := model.Meeting{ID: "x"}
	Fill(r.Cells(), func(d time.Time) []model.Meeting {
		if d.Equal(day(2025, 9, 3)) {
			return []model.Meeting{m}
		}
		return nil
	})
	assert.Len(t, r[3].Items, 1)
	assert.Empty(t, r[2].Items)
}
