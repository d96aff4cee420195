package grid

import (
	"time"

	"meetcal/internal/datemath"
	"meetcal/internal/model"
)

const (
	DaysPerWeek   = 7
	WeeksPerMonth = 6
)

// DayCell is one calendar day bucket. Items are ascending by start.
type DayCell struct {
	Date           time.Time       `json:"date"`
	InCurrentMonth bool            `json:"in_current_month"`
	Items          []model.Meeting `json:"items"`
}

// WeekRow is seven consecutive days, Sunday first.
type WeekRow [DaysPerWeek]DayCell

// MonthGrid is six week rows covering the cursor's month plus the leading
// and trailing days needed to complete whole weeks.
type MonthGrid [WeeksPerMonth]WeekRow

// Month builds the 6x7 grid for cursor's month.
func Month(cursor time.Time) MonthGrid {
	var g MonthGrid
	first := datemath.StartOfWeek(datemath.StartOfMonth(cursor))
	month := cursor.Month()
	for i := 0; i < WeeksPerMonth*DaysPerWeek; i++ {
		d := datemath.AddDays(first, i)
		g[i/DaysPerWeek][i%DaysPerWeek] = DayCell{
			Date:           d,
			InCurrentMonth: d.Month() == month,
		}
	}
	return g
}

// Week builds the single row starting on the Sunday on or before cursor.
// Every cell is marked in-month since a week view has no month boundary.
func Week(cursor time.Time) WeekRow {
	var r WeekRow
	first := datemath.StartOfWeek(cursor)
	for i := 0; i < DaysPerWeek; i++ {
		r[i] = DayCell{Date: datemath.AddDays(first, i), InCurrentMonth: true}
	}
	return r
}

// Cells flattens the grid into its 42 cells in date order.
func (g *MonthGrid) Cells() []*DayCell {
	out := make([]*DayCell, 0, WeeksPerMonth*DaysPerWeek)
	for w := range g {
		out = append(out, g[w].Cells()...)
	}
	return out
}

// Cells returns pointers to the row's cells in date order.
func (r *WeekRow) Cells() []*DayCell {
	out := make([]*DayCell, 0, DaysPerWeek)
	for i := range r {
		out = append(out, &r[i])
	}
	return out
}

// Span returns the first cell's midnight and the last instant of the last
// cell, the window a store should be asked for.
func (g *MonthGrid) Span() (time.Time, time.Time) {
	return g[0][0].Date, datemath.EndOfDay(g[WeeksPerMonth-1][DaysPerWeek-1].Date)
}

// Span returns the row's first midnight and last instant.
func (r *WeekRow) Span() (time.Time, time.Time) {
	return r[0].Date, datemath.EndOfDay(r[DaysPerWeek-1].Date)
}

// Fill sets every cell's items from pick. pick is expected to return items
// already in display order.
func Fill(cells []*DayCell, pick func(day time.Time) []model.Meeting) {
	for _, c := range cells {
		c.Items = pick(c.Date)
	}
}
