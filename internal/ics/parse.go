package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "meetcal/internal/log"
	"meetcal/internal/model"
)

// Event is a VEVENT before recurrence expansion.
type Event struct {
	Feed string
	UID  string

	Summary     string
	Description string
	Location    string
	Categories  []string
	Status      model.Status

	Start  time.Time
	End    time.Time
	AllDay bool

	RRule      string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID of an overriding instance
}

// Parse reads every VEVENT of body. Events that cannot be read are logged
// and skipped.
func Parse(feedID string, body []byte) ([]Event, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	l := appLog.Component("ics").With("feed", feedID)
	out := make([]Event, 0)
	for _, ve := range cal.Events() {
		ev, err := parseEvent(feedID, ve)
		if err != nil {
			l.Warn("skipping vevent", "err", err)
			continue
		}
		out = append(out, ev)
	}
	l.Debug("ics parsed", "events", len(out))
	return out, nil
}

func prop(ve *ical.VEvent, name ical.ComponentProperty) string {
	if p := ve.GetProperty(name); p != nil {
		return p.Value
	}
	return ""
}

func parseEvent(feedID string, ve *ical.VEvent) (Event, error) {
	ev := Event{Feed: feedID}
	ev.UID = prop(ve, ical.ComponentPropertyUniqueId)
	if ev.UID == "" {
		return ev, errors.New("missing UID")
	}
	ev.Summary = unescape(prop(ve, ical.ComponentPropertySummary))
	ev.Description = unescape(prop(ve, ical.ComponentPropertyDescription))
	ev.Location = unescape(prop(ve, ical.ComponentPropertyLocation))
	ev.Status = icsStatus(prop(ve, ical.ComponentPropertyStatus))
	if v := prop(ve, statusProperty); v != "" {
		ev.Status = model.ParseStatus(v)
	}
	if c := prop(ve, ical.ComponentPropertyCategories); c != "" {
		ev.Categories = model.NormalizeTeams(strings.Split(c, ","))
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return ev, errors.New("missing DTSTART")
	}
	ev.AllDay = !strings.Contains(dtStart.Value, "T")
	if vs, ok := dtStart.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		ev.AllDay = true
	}

	var err error
	if ev.AllDay {
		// All-day dates are floating; pin them to UTC so the date fields are
		// the same for every viewer.
		if ev.Start, err = parseTime(dtStart.Value, time.UTC); err != nil {
			return ev, err
		}
		ev.End = ev.Start.AddDate(0, 0, 1)
		if p := ve.GetProperty(ical.ComponentPropertyDtEnd); p != nil {
			if end, err := parseTime(p.Value, time.UTC); err == nil && end.After(ev.Start) {
				ev.End = end
			}
		}
	} else {
		if ev.Start, err = ve.GetStartAt(); err != nil {
			return ev, err
		}
		ev.End = ev.Start
		if end, err := ve.GetEndAt(); err == nil && !end.Before(ev.Start) {
			ev.End = end
		}
	}

	ev.RRule = prop(ve, ical.ComponentPropertyRrule)
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseTime(part, ev.Start.Location()); err == nil {
				ev.ExDates = append(ev.ExDates, t)
			}
		}
	}
	if rid := ve.GetProperty(ical.ComponentProperty("RECURRENCE-ID")); rid != nil {
		if t, err := parseTime(rid.Value, ev.Start.Location()); err == nil {
			ev.Recurrence = &t
		}
	}
	return ev, nil
}

// parseTime reads the basic DATE / DATE-TIME / UTC forms. Floating values
// land in loc.
func parseTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}

func icsStatus(s string) model.Status {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CONFIRMED", "TENTATIVE":
		return model.StatusScheduled
	default:
		return model.StatusNone
	}
}

var unescaper = strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)

func unescape(s string) string {
	return unescaper.Replace(s)
}
