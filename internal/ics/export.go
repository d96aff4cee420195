package ics

import (
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"meetcal/internal/datemath"
	"meetcal/internal/model"
)

const statusProperty = ical.ComponentProperty("X-MEETCAL-STATUS")

// Export renders meetings as a VCALENDAR document. All-day meetings are
// written as DATE values with an exclusive DTEND.
func Export(meetings []model.Meeting, name string, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//meetcal//meetcal//EN")
	if name != "" {
		cal.SetName(name)
	}

	for _, m := range meetings {
		uid := m.ID + "@meetcal"
		if m.ExternalID != "" {
			uid = m.ExternalID
		}
		e := cal.AddEvent(uid)
		e.SetDtStampTime(now.UTC())
		e.SetSummary(m.Title)
		if m.Description != "" {
			e.SetDescription(m.Description)
		}
		if m.Location != "" {
			e.SetLocation(m.Location)
		}

		if m.AllDay {
			start := datemath.StartOfDay(m.Start)
			end := datemath.AddDays(datemath.StartOfDay(m.End), 1)
			e.SetAllDayStartAt(start)
			e.SetAllDayEndAt(end)
		} else {
			e.SetStartAt(m.Start)
			e.SetEndAt(m.End)
		}

		if len(m.Teams) > 0 {
			e.SetProperty(ical.ComponentPropertyCategories, strings.Join(m.Teams, ","))
		}
		switch m.Status {
		case model.StatusScheduled:
			e.SetProperty(ical.ComponentPropertyStatus, "CONFIRMED")
		case model.StatusDone:
			e.SetProperty(statusProperty, string(model.StatusDone))
		}
	}
	return cal.Serialize()
}
