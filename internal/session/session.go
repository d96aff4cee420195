// Package session keeps the state of one visible calendar: cursor, selected
// day, text query and the meetings last fetched for the visible window.
//
// Every change to (mode, cursor, query) issues a Ticket carrying a sequence
// number. Only the response for the most recently issued ticket is applied;
// earlier responses are dropped when they arrive, whatever their order on
// the wire.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"meetcal/internal/datemath"
	"meetcal/internal/grid"
	appLog "meetcal/internal/log"
	"meetcal/internal/match"
	"meetcal/internal/metrics"
	"meetcal/internal/model"
	"meetcal/internal/store"
)

// State is the fetch lifecycle state.
type State string

const (
	StateIdle     State = "idle"
	StateFetching State = "fetching"
	StateReady    State = "ready"
)

// Ticket identifies one issued fetch.
type Ticket struct {
	Seq   uint64
	Mode  grid.Mode
	From  time.Time
	To    time.Time
	Query string
}

// Options tune a Session. Zero values pick local time, time.Now and month
// mode.
type Options struct {
	Location *time.Location
	Now      func() time.Time
	Mode     grid.Mode
	Metrics  *metrics.Metrics
}

// Session is safe for concurrent use; store calls run outside the lock.
type Session struct {
	store   store.MeetingStore
	loc     *time.Location
	now     func() time.Time
	metrics *metrics.Metrics
	log     *appLog.Logger

	mu       sync.Mutex
	mode     grid.Mode
	cursor   time.Time
	selected time.Time
	query    string
	seq      uint64
	state    State
	meetings []model.Meeting
	lastErr  error
}

// New returns an Idle session positioned on today.
func New(s store.MeetingStore, opts Options) *Session {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Mode == "" {
		opts.Mode = grid.ModeMonth
	}
	today := grid.Today(opts.Now(), opts.Location)
	return &Session{
		store:    s,
		loc:      opts.Location,
		now:      opts.Now,
		metrics:  opts.Metrics,
		log:      appLog.Component("session"),
		mode:     opts.Mode,
		cursor:   today,
		selected: today,
		state:    StateIdle,
		meetings: []model.Meeting{},
	}
}

// issue bumps the sequence and enters Fetching. Callers hold mu.
func (s *Session) issue() Ticket {
	s.seq++
	s.state = StateFetching
	from, to := grid.Window(s.mode, s.cursor)
	return Ticket{Seq: s.seq, Mode: s.mode, From: from, To: to, Query: s.query}
}

// Reload issues a fetch for the current (mode, cursor, query).
func (s *Session) Reload() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issue()
}

// SetMode switches between month and week views.
func (s *Session) SetMode(m grid.Mode) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
	return s.issue()
}

// SetCursor moves the visible window to contain d.
func (s *Session) SetCursor(d time.Time) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = datemath.StartOfDay(d.In(s.loc))
	return s.issue()
}

// Navigate moves the cursor by delta weeks or months depending on mode.
func (s *Session) Navigate(delta int) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = grid.Shift(s.mode, s.cursor, delta)
	return s.issue()
}

// Today resets both cursor and selected date to today at midnight.
func (s *Session) Today() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	today := grid.Today(s.now(), s.loc)
	s.cursor = today
	s.selected = today
	return s.issue()
}

// SetQuery changes the title filter forwarded to the store.
func (s *Session) SetQuery(q string) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = q
	return s.issue()
}

// Select highlights a day. It never triggers a fetch.
func (s *Session) Select(d time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = datemath.StartOfDay(d.In(s.loc))
}

// Resolve applies a fetch outcome if t is still the latest ticket and
// reports whether it did. A failed fetch leaves an empty meeting set and
// the session Ready.
func (s *Session) Resolve(t Ticket, items []model.Meeting, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.Seq != s.seq {
		s.metrics.ObserveFetch(metrics.ResultStale)
		s.log.Debug("stale response dropped", "seq", t.Seq, "latest", s.seq)
		return false
	}

	s.state = StateReady
	s.lastErr = err
	if err != nil {
		s.meetings = []model.Meeting{}
		s.metrics.ObserveFetch(metrics.ResultError)
		s.log.Error("fetch failed; showing empty window", err,
			"from", t.From.Format(time.RFC3339), "to", t.To.Format(time.RFC3339))
		return true
	}

	s.meetings = match.InWindow(items, t.From, t.To)
	s.metrics.ObserveFetch(metrics.ResultOK)
	return true
}

// Run performs the store call for t and resolves it.
func (s *Session) Run(ctx context.Context, t Ticket) bool {
	res, err := s.store.ListByRange(ctx, store.RangeQuery{From: t.From, To: t.To, Query: t.Query})
	return s.Resolve(t, res.Items, err)
}

// Refresh issues and runs a fetch for the current state.
func (s *Session) Refresh(ctx context.Context) bool {
	return s.Run(ctx, s.Reload())
}

// Create validates d locally, stores it, then refetches the window.
func (s *Session) Create(ctx context.Context, d model.Draft) (model.Meeting, error) {
	if err := d.Validate(); err != nil {
		return model.Meeting{}, err
	}
	m, err := s.store.Create(ctx, d)
	if err != nil {
		return m, err
	}
	s.Refresh(ctx)
	return m, nil
}

// Update validates p locally, forwards it, then refetches the window.
// Conflict and not-found errors are returned as-is for the caller to show.
func (s *Session) Update(ctx context.Context, id string, p model.Patch) (model.Meeting, error) {
	if err := p.Validate(); err != nil {
		return model.Meeting{}, err
	}
	m, err := s.store.Update(ctx, id, p)
	if err != nil {
		return m, err
	}
	s.Refresh(ctx)
	return m, nil
}

// Delete removes a meeting, then refetches the window.
func (s *Session) Delete(ctx context.Context, id string, opts store.DeleteOptions) error {
	if id == "" {
		return fmt.Errorf("%w: meeting id is empty", store.ErrValidation)
	}
	if err := s.store.Delete(ctx, id, opts); err != nil {
		return err
	}
	s.Refresh(ctx)
	return nil
}

// View builds the current view from the fetched meetings.
func (s *Session) View() View {
	s.mu.Lock()
	mode, cursor, selected := s.mode, s.cursor, s.selected
	meetings := s.meetings
	s.mu.Unlock()
	return BuildView(mode, cursor, selected, meetings)
}

// SelectedItems returns the selected day's meetings from the fetched set.
func (s *Session) SelectedItems() []model.Meeting {
	s.mu.Lock()
	defer s.mu.Unlock()
	return match.ForDay(s.selected, s.meetings)
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Meetings returns a copy of the fetched set.
func (s *Session) Meetings() []model.Meeting {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Meeting(nil), s.meetings...)
}

// Err is the error of the last applied fetch, nil on success.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) Cursor() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

func (s *Session) Selected() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

func (s *Session) Mode() grid.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Session) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}
