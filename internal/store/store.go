// Package store defines the MeetingStore contract the scheduling core
// consumes, its error taxonomy, and the in-memory, SQLite and HTTP
// implementations.
package store

import (
	"context"
	"errors"
	"time"

	"meetcal/internal/match"
	"meetcal/internal/model"
)

var (
	// ErrValidation is returned for bad input: empty title, end before start.
	ErrValidation = model.ErrValidation
	// ErrNotFound is returned when the meeting does not exist (anymore).
	ErrNotFound = errors.New("meeting not found")
	// ErrConflict is returned when an IfMatch version does not match.
	ErrConflict = errors.New("version conflict")
	// ErrForbidden is returned when the actor may not perform the change.
	ErrForbidden = errors.New("forbidden")
	// ErrNetwork marks transport or availability failures.
	ErrNetwork = errors.New("store unavailable")
)

// RangeQuery selects meetings overlapping [From, To]. Query filters by title,
// case-insensitive substring. Page/PerPage are optional; zero PerPage returns
// every match.
type RangeQuery struct {
	From    time.Time
	To      time.Time
	Query   string
	Page    int
	PerPage int
}

// ListResult is a range query response.
type ListResult struct {
	Items      []model.Meeting `json:"items"`
	TotalItems int             `json:"total_items"`
	TotalPages int             `json:"total_pages"`
	Page       int             `json:"page,omitempty"`
	PerPage    int             `json:"per_page,omitempty"`
}

// DeleteOptions carries the optional concurrency token and the acting user.
type DeleteOptions struct {
	IfMatch *int64
	Actor   string
}

// MeetingStore is the range-query and mutation surface of meetings.
type MeetingStore interface {
	ListByRange(ctx context.Context, q RangeQuery) (ListResult, error)
	Get(ctx context.Context, id string) (model.Meeting, error)
	Create(ctx context.Context, d model.Draft) (model.Meeting, error)
	Update(ctx context.Context, id string, p model.Patch) (model.Meeting, error)
	Delete(ctx context.Context, id string, opts DeleteOptions) error
}

// Bounds of an unbounded range query.
var (
	MinTime = time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	MaxTime = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)
)

// All is a RangeQuery covering every meeting.
func All() RangeQuery {
	return RangeQuery{From: MinTime, To: MaxTime}
}

// Version returns a pointer to v for IfMatch fields.
func Version(v int64) *int64 { return &v }

// paginate applies the range rule, title query and pagination shared by every
// local implementation. ms must already be in stored (creation) order.
func paginate(ms []model.Meeting, q RangeQuery) ListResult {
	hits := make([]model.Meeting, 0)
	for _, m := range match.InWindow(ms, q.From, q.To) {
		if m.MatchesQuery(q.Query) {
			hits = append(hits, m.Clone())
		}
	}
	match.SortByStart(hits)

	res := ListResult{TotalItems: len(hits), TotalPages: 1}
	if q.PerPage <= 0 {
		res.Items = hits
		return res
	}

	res.PerPage = q.PerPage
	res.TotalPages = max(1, (len(hits)+q.PerPage-1)/q.PerPage)
	res.Page = min(max(q.Page, 1), res.TotalPages)

	lo := (res.Page - 1) * q.PerPage
	hi := min(lo+q.PerPage, len(hits))
	res.Items = hits[lo:hi]
	return res
}

func checkVersion(ifMatch *int64, stored int64) error {
	if ifMatch != nil && *ifMatch != stored {
		return ErrConflict
	}
	return nil
}

func checkOwner(actor, owner string) error {
	if actor != "" && owner != "" && actor != owner {
		return ErrForbidden
	}
	return nil
}
