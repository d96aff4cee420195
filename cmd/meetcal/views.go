package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"meetcal/internal/datemath"
	"meetcal/internal/grid"
	"meetcal/internal/listview"
	appLog "meetcal/internal/log"
	"meetcal/internal/model"
	"meetcal/internal/session"
	"meetcal/internal/store"
)

func parseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not a YYYY-MM-DD date", s)
	}
	return t, nil
}

func newViewCmd(a *app, mode grid.Mode) *cobra.Command {
	var date, selected, query string

	cmd := &cobra.Command{
		Use:   string(mode),
		Short: fmt.Sprintf("Print the %s grid and the selected day's meetings", mode),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := a.open(nil)
			if err != nil {
				return err
			}
			defer b.Close()

			loc := a.cfg.Location()
			sess := session.New(b.meetings, session.Options{Location: loc, Mode: mode})
			if date != "" {
				d, err := parseDate(date, loc)
				if err != nil {
					return err
				}
				sess.SetCursor(d)
				sess.Select(d)
			}
			if selected != "" {
				d, err := parseDate(selected, loc)
				if err != nil {
					return err
				}
				sess.Select(d)
			}
			sess.SetQuery(query)
			sess.Refresh(cmd.Context())
			if err := sess.Err(); err != nil {
				appLog.Warn("meetings unavailable; showing an empty calendar", "err", err)
			}

			printView(cmd.OutOrStdout(), sess.View())
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Cursor date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&selected, "selected", "", "Selected day YYYY-MM-DD (default the cursor date)")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Only meetings whose title contains this text")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var (
		page  int
		query string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print one page of all meetings, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := a.open(nil)
			if err != nil {
				return err
			}
			defer b.Close()

			q := store.All()
			q.Query = query
			res, err := b.meetings.ListByRange(cmd.Context(), q)
			if err != nil {
				return err
			}
			printList(cmd.OutOrStdout(), listview.Paginate(res.Items, page, time.Now()), a.cfg.Location())
			return nil
		},
	}

	cmd.Flags().IntVarP(&page, "page", "p", 1, "Page number (clamped to the available pages)")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Only meetings whose title contains this text")
	return cmd
}

var weekdayHeader = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// printView writes the grid as a table of day numbers with meeting counts.
// Days outside the cursor's month are parenthesized and the selected day
// is starred.
func printView(w io.Writer, v session.View) {
	if v.Mode == grid.ModeWeek {
		fmt.Fprintf(w, "Week of %s\n\n", v.From.Format("Mon, 02 Jan 2006"))
	} else {
		fmt.Fprintf(w, "%s\n\n", v.Cursor.Format("January 2006"))
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(weekdayHeader, "\t"))

	var rows [][]*grid.DayCell
	if v.Month != nil {
		for i := range v.Month {
			rows = append(rows, v.Month[i].Cells())
		}
	} else if v.Week != nil {
		rows = append(rows, v.Week.Cells())
	}
	for _, row := range rows {
		cols := make([]string, len(row))
		for i, c := range row {
			cols[i] = cellLabel(c, v.Selected)
		}
		fmt.Fprintln(tw, strings.Join(cols, "\t"))
	}
	tw.Flush()

	fmt.Fprintf(w, "\n%s:\n", v.Selected.Format("Mon, 02 Jan 2006"))
	if len(v.SelectedItems) == 0 {
		fmt.Fprintln(w, "  no meetings")
		return
	}
	for _, m := range v.SelectedItems {
		fmt.Fprintf(w, "  %-13s %s%s\n", timeLabel(m, v.Selected.Location()), m.Title, teamsLabel(m))
	}
}

func cellLabel(c *grid.DayCell, selected time.Time) string {
	label := fmt.Sprintf("%d", c.Date.Day())
	if len(c.Items) > 0 {
		label += fmt.Sprintf("(%d)", len(c.Items))
	}
	if !c.InCurrentMonth {
		label = "(" + label + ")"
	}
	if datemath.IsSameDate(c.Date, selected) {
		label = "*" + label
	}
	return label
}

func timeLabel(m model.Meeting, loc *time.Location) string {
	if m.AllDay {
		return "all day"
	}
	return m.Start.In(loc).Format("15:04") + "-" + m.End.In(loc).Format("15:04")
}

// dateLabel formats all-day meetings on their stored date fields; they are
// floating dates and must not shift with the viewer's zone.
func dateLabel(m model.Meeting, loc *time.Location) string {
	if m.AllDay {
		return m.Start.Format(time.DateOnly)
	}
	return m.Start.In(loc).Format(time.DateOnly)
}

func teamsLabel(m model.Meeting) string {
	if len(m.Teams) == 0 {
		return ""
	}
	return " [" + strings.Join(m.Teams, ", ") + "]"
}

func printList(w io.Writer, p listview.Page, loc *time.Location) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tTIME\tSTATUS\tTITLE")
	for _, r := range p.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s%s\n",
			dateLabel(r.Meeting, loc),
			timeLabel(r.Meeting, loc),
			r.Status,
			r.Meeting.Title,
			teamsLabel(r.Meeting),
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\npage %d/%d (%d meetings)  %s\n", p.Page, p.TotalPages, p.TotalItems, pagerLabel(p.Links))
}

func pagerLabel(links []listview.PageLink) string {
	parts := make([]string, 0, len(links))
	for _, l := range links {
		switch {
		case l.Ellipsis:
			parts = append(parts, "...")
		case l.Current:
			parts = append(parts, fmt.Sprintf("[%d]", l.Number))
		default:
			parts = append(parts, fmt.Sprintf("%d", l.Number))
		}
	}
	return strings.Join(parts, " ")
}
