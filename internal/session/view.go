package session

import (
	"time"

	"meetcal/internal/grid"
	"meetcal/internal/match"
	"meetcal/internal/model"
)

// View is everything a calendar screen renders for one state.
type View struct {
	Mode     grid.Mode       `json:"mode"`
	Cursor   time.Time       `json:"cursor"`
	Selected time.Time       `json:"selected"`
	From     time.Time       `json:"from"`
	To       time.Time       `json:"to"`
	Month    *grid.MonthGrid `json:"month,omitempty"`
	Week     *grid.WeekRow   `json:"week,omitempty"`

	// SelectedItems are the meetings of the selected day, ascending by start.
	SelectedItems []model.Meeting `json:"selected_items"`
}

// BuildView lays out the grid for (mode, cursor) and distributes meetings
// into its cells. It has no hidden state: call it again whenever any input
// changes.
func BuildView(mode grid.Mode, cursor, selected time.Time, meetings []model.Meeting) View {
	v := View{
		Mode:          mode,
		Cursor:        cursor,
		Selected:      selected,
		SelectedItems: match.ForDay(selected, meetings),
	}
	pick := func(d time.Time) []model.Meeting { return match.ForDay(d, meetings) }

	if mode == grid.ModeWeek {
		w := grid.Week(cursor)
		grid.Fill(w.Cells(), pick)
		v.From, v.To = w.Span()
		v.Week = &w
		return v
	}

	g := grid.Month(cursor)
	grid.Fill(g.Cells(), pick)
	v.From, v.To = g.Span()
	v.Month = &g
	return v
}
