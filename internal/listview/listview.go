// Package listview turns a meeting collection into the flat, paginated,
// most-recent-first table view.
package listview

import (
	"sort"
	"time"

	"meetcal/internal/model"
)

// PageSize is fixed for the list view.
const PageSize = 10

// pageRadius is how many neighbours of the current page the pager shows.
const pageRadius = 3

// Status is the derived display status.
type Status string

const (
	StatusDone   Status = "done"
	StatusBefore Status = "before"
)

// Row is a meeting with its derived status.
type Row struct {
	Meeting model.Meeting `json:"meeting"`
	Status  Status        `json:"status"`
}

// Page is one page of rows plus the pager.
type Page struct {
	Items      []Row      `json:"items"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalItems int        `json:"total_items"`
	TotalPages int        `json:"total_pages"`
	Links      []PageLink `json:"links"`
}

// PageLink is one pager entry: a page number or a collapsed gap.
type PageLink struct {
	Number   int  `json:"number,omitempty"`
	Current  bool `json:"current,omitempty"`
	Ellipsis bool `json:"ellipsis,omitempty"`
}

// Sort returns a copy of ms ordered by start, most recent first. Equal
// starts keep their input order.
func Sort(ms []model.Meeting) []model.Meeting {
	out := make([]model.Meeting, len(ms))
	copy(out, ms)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.After(out[j].Start)
	})
	return out
}

// DeriveStatus applies, in order: explicit DONE, explicit SCHEDULED, then
// whether the later of end and start is strictly before now.
func DeriveStatus(m model.Meeting, now time.Time) Status {
	switch m.Status {
	case model.StatusDone:
		return StatusDone
	case model.StatusScheduled:
		return StatusBefore
	}
	last := m.End
	if m.Start.After(last) {
		last = m.Start
	}
	if last.Before(now) {
		return StatusDone
	}
	return StatusBefore
}

// TotalPages is ceil(total/PageSize), never less than 1.
func TotalPages(total int) int {
	if total <= 0 {
		return 1
	}
	return (total + PageSize - 1) / PageSize
}

// Clamp pins page into [1, totalPages]. Callers re-clamp after a delete
// shrinks the collection.
func Clamp(page, totalPages int) int {
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}

// Paginate sorts ms, clamps page and returns that page with statuses
// derived at now.
func Paginate(ms []model.Meeting, page int, now time.Time) Page {
	sorted := Sort(ms)
	total := len(sorted)
	pages := TotalPages(total)
	page = Clamp(page, pages)

	lo := (page - 1) * PageSize
	hi := lo + PageSize
	if hi > total {
		hi = total
	}

	rows := make([]Row, 0, hi-lo)
	for _, m := range sorted[lo:hi] {
		rows = append(rows, Row{Meeting: m, Status: DeriveStatus(m, now)})
	}

	return Page{
		Items:      rows,
		Page:       page,
		PageSize:   PageSize,
		TotalItems: total,
		TotalPages: pages,
		Links:      Links(page, pages),
	}
}

// Links builds the pager: page 1, the last page, and pages within three
// of current; every gap collapses into one ellipsis.
func Links(current, totalPages int) []PageLink {
	totalPages = max(totalPages, 1)
	current = Clamp(current, totalPages)

	out := make([]PageLink, 0, 2*pageRadius+5)
	prev := 0
	for p := 1; p <= totalPages; p++ {
		show := p == 1 || p == totalPages || (p >= current-pageRadius && p <= current+pageRadius)
		if !show {
			continue
		}
		if p-prev > 1 {
			out = append(out, PageLink{Ellipsis: true})
		}
		out = append(out, PageLink{Number: p, Current: p == current})
		prev = p
	}
	return out
}

// Next and Prev step one page, staying put at the ends.
func Next(page, totalPages int) int { return Clamp(page+1, totalPages) }
func Prev(page, totalPages int) int { return Clamp(page-1, totalPages) }
