package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrValidation marks input that is rejected before it reaches a store.
var ErrValidation = errors.New("validation failed")

// Status is the explicit lifecycle marker a meeting may carry.
type Status string

const (
	StatusNone      Status = ""
	StatusScheduled Status = "SCHEDULED"
	StatusDone      Status = "DONE"
)

// ParseStatus accepts the explicit status strings case-insensitively.
// Anything else maps to StatusNone.
func ParseStatus(s string) Status {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(StatusScheduled):
		return StatusScheduled
	case string(StatusDone):
		return StatusDone
	default:
		return StatusNone
	}
}

// Meeting is a stored calendar entry. The scheduling core only reads it;
// every change goes through a store.
type Meeting struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"all_day"`
	Teams       []string  `json:"teams,omitempty"`
	Status      Status    `json:"status,omitempty"`
	Version     int64     `json:"version"`

	// Owner, when set, is the only actor allowed to delete the meeting.
	Owner string `json:"owner,omitempty"`

	// Source is the feed ID of an imported meeting; empty for local ones.
	Source string `json:"source,omitempty"`
	// ExternalID identifies the feed instance (UID + instance key).
	ExternalID string `json:"external_id,omitempty"`
}

// Draft carries the fields supplied when creating a meeting.
type Draft struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"all_day"`
	Teams       []string  `json:"teams,omitempty"`
	Status      Status    `json:"status,omitempty"`
	Owner       string    `json:"owner,omitempty"`
	Source      string    `json:"source,omitempty"`
	ExternalID  string    `json:"external_id,omitempty"`
}

// Validate reports ErrValidation for an empty title or an end before start.
func (d Draft) Validate() error {
	return validate(d.Title, d.Start, d.End)
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Location    *string    `json:"location,omitempty"`
	Start       *time.Time `json:"start,omitempty"`
	End         *time.Time `json:"end,omitempty"`
	AllDay      *bool      `json:"all_day,omitempty"`
	Teams       *[]string  `json:"teams,omitempty"`
	Status      *Status    `json:"status,omitempty"`

	// IfMatch, when set, must equal the stored version.
	IfMatch *int64 `json:"-"`
}

// Validate checks the fields that can be judged without the stored record.
func (p Patch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return fmt.Errorf("%w: title is empty", ErrValidation)
	}
	if p.Start != nil && p.End != nil && p.End.Before(*p.Start) {
		return fmt.Errorf("%w: end is before start", ErrValidation)
	}
	return nil
}

// Apply returns a copy of m with the patch applied and validated. The
// version is not touched.
func (p Patch) Apply(m Meeting) (Meeting, error) {
	out := m
	if p.Title != nil {
		out.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Location != nil {
		out.Location = *p.Location
	}
	if p.Start != nil {
		out.Start = *p.Start
	}
	if p.End != nil {
		out.End = *p.End
	}
	if p.AllDay != nil {
		out.AllDay = *p.AllDay
	}
	if p.Teams != nil {
		out.Teams = NormalizeTeams(*p.Teams)
	}
	if p.Status != nil {
		out.Status = ParseStatus(string(*p.Status))
	}
	if err := validate(out.Title, out.Start, out.End); err != nil {
		return m, err
	}
	return out, nil
}

// NewMeeting builds the stored shape of a draft. Unknown statuses become
// StatusNone. The caller assigns ID and Version.
func NewMeeting(d Draft) Meeting {
	return Meeting{
		Title:       strings.TrimSpace(d.Title),
		Description: d.Description,
		Location:    d.Location,
		Start:       d.Start,
		End:         d.End,
		AllDay:      d.AllDay,
		Teams:       NormalizeTeams(d.Teams),
		Status:      ParseStatus(string(d.Status)),
		Owner:       d.Owner,
		Source:      d.Source,
		ExternalID:  d.ExternalID,
	}
}

// NormalizeTeams trims labels, drops blanks and duplicates, and returns nil
// for an empty result so "no team" has a single representation.
func NormalizeTeams(teams []string) []string {
	if len(teams) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(teams))
	out := make([]string, 0, len(teams))
	for _, t := range teams {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Clone returns a deep copy so callers never share the Teams backing array.
func (m Meeting) Clone() Meeting {
	if m.Teams != nil {
		m.Teams = append([]string(nil), m.Teams...)
	}
	return m
}

// MatchesQuery reports whether the title contains q, case-insensitively.
// An empty query matches everything.
func (m Meeting) MatchesQuery(q string) bool {
	q = strings.TrimSpace(q)
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(m.Title), strings.ToLower(q))
}

func validate(title string, start, end time.Time) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: title is empty", ErrValidation)
	}
	if end.Before(start) {
		return fmt.Errorf("%w: end is before start", ErrValidation)
	}
	return nil
}
