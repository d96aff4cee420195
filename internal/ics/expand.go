package ics

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	appLog "meetcal/internal/log"
	"meetcal/internal/model"
)

const defaultMaxPerEvent = 5000

// Window bounds recurrence expansion. Instances overlapping [From, To] are
// kept.
type Window struct {
	From time.Time
	To   time.Time

	// MaxPerEvent caps the instances produced for one UID. Zero means 5000.
	MaxPerEvent int
}

// WindowAround returns [now-backfill, now+horizon] in days.
func WindowAround(now time.Time, backfillDays, horizonDays int) Window {
	return Window{From: now.AddDate(0, 0, -backfillDays), To: now.AddDate(0, 0, horizonDays)}
}

// Expand turns parsed events into meeting drafts, one per instance inside w.
// Overrides replace the instance their RECURRENCE-ID names and EXDATEs remove
// instances. All-day ends become the last instant of the final day. The
// result is sorted by start then ExternalID.
func Expand(events []Event, w Window) ([]model.Draft, error) {
	if w.To.Before(w.From) {
		return nil, errors.New("expand: window ends before it starts")
	}
	if w.MaxPerEvent <= 0 {
		w.MaxPerEvent = defaultMaxPerEvent
	}

	var bases []Event
	overrides := make(map[string][]Event)
	for _, ev := range events {
		if ev.Recurrence != nil {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		bases = append(bases, ev)
	}

	l := appLog.Component("ics")
	out := make([]model.Draft, 0, len(bases))
	for _, ev := range bases {
		if ev.RRule == "" {
			if overlaps(ev.Start, ev.End, w) {
				out = append(out, draft(ev, ev.Start))
			}
			continue
		}

		starts, err := occurrences(ev, w)
		if err != nil {
			l.Warn("bad RRULE; keeping first instance only", "uid", ev.UID, "rrule", ev.RRule, "err", err)
			if overlaps(ev.Start, ev.End, w) {
				out = append(out, draft(ev, ev.Start))
			}
			continue
		}
		if len(starts) > w.MaxPerEvent {
			l.Warn("recurrence truncated", "uid", ev.UID, "cap", w.MaxPerEvent)
			starts = starts[:w.MaxPerEvent]
		}

		dur := ev.End.Sub(ev.Start)
		for _, s := range starts {
			inst := ev
			inst.Start, inst.End = s, s.Add(dur)
			if o, ok := overrideFor(overrides[ev.UID], s); ok {
				inst = o
			}
			if !overlaps(inst.Start, inst.End, w) {
				continue
			}
			out = append(out, draft(inst, s))
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ExternalID < out[j].ExternalID
	})
	return out, nil
}

// occurrences lists the instance starts of a recurring event that may
// overlap w. The lower bound is widened by the event's duration so an
// instance starting before w but still running inside it is kept.
func occurrences(ev Event, w Window) ([]time.Time, error) {
	r, err := rrule.StrToRRule(ev.RRule)
	if err != nil {
		return nil, err
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}
	from := w.From.Add(-ev.End.Sub(ev.Start)).In(ev.Start.Location())
	return set.Between(from, w.To.In(ev.Start.Location()), true), nil
}

func overrideFor(cands []Event, start time.Time) (Event, bool) {
	for _, o := range cands {
		if o.Recurrence.Equal(start) {
			return o, true
		}
	}
	return Event{}, false
}

func overlaps(start, end time.Time, w Window) bool {
	return !start.After(w.To) && !end.Before(w.From)
}

// draft builds the stored shape of one instance. key is the unmodified
// instance start and stays stable when an override moves the instance.
func draft(ev Event, key time.Time) model.Draft {
	d := model.Draft{
		Title:       ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       ev.Start,
		End:         ev.End,
		AllDay:      ev.AllDay,
		Teams:       ev.Categories,
		Status:      ev.Status,
		Source:      ev.Feed,
		ExternalID:  ev.UID,
	}
	if strings.TrimSpace(d.Title) == "" {
		d.Title = "(no title)"
	}
	if ev.RRule != "" || ev.Recurrence != nil {
		d.ExternalID = ev.UID + "/" + key.UTC().Format("20060102T150405Z")
	}
	if ev.AllDay && d.End.After(d.Start) {
		d.End = d.End.Add(-time.Nanosecond)
	}
	return d
}
