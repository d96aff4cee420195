package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"meetcal/internal/grid"
	"meetcal/internal/ics"
	"meetcal/internal/listview"
	"meetcal/internal/model"
	"meetcal/internal/refresh"
	"meetcal/internal/session"
	"meetcal/internal/store"
)

const maxBody = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// rangeQuery reads from/to (RFC 3339), q, page and per_page. Missing bounds
// leave the range open on that side.
func rangeQuery(r *http.Request) (store.RangeQuery, error) {
	v := r.URL.Query()
	q := store.All()
	q.Query = v.Get("q")
	q.Page = parseIntDefault(v.Get("page"), 1)
	q.PerPage = parseIntDefault(v.Get("per_page"), 0)
	for name, dst := range map[string]*time.Time{"from": &q.From, "to": &q.To} {
		raw := v.Get(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return q, fmt.Errorf("%w: %s must be RFC 3339", store.ErrValidation, name)
		}
		*dst = t
	}
	if q.To.Before(q.From) {
		return q, fmt.Errorf("%w: to is before from", store.ErrValidation)
	}
	return q, nil
}

// GET /api/meetings?from=&to=&q=&page=&per_page=
func (s *Server) handleListMeetings(w http.ResponseWriter, r *http.Request) {
	q, err := rangeQuery(r)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	res, err := s.opts.Store.ListByRange(r.Context(), q)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", store.ErrValidation, err)
	}
	return nil
}

// ifMatch reads the If-Match header as a version number. Quotes of an
// entity-tag form are tolerated.
func ifMatch(r *http.Request) (*int64, error) {
	raw := strings.Trim(strings.TrimSpace(r.Header.Get(store.HeaderIfMatch)), `"`)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: If-Match must be a version number", store.ErrValidation)
	}
	return &v, nil
}

// POST /api/meetings
func (s *Server) handleCreateMeeting(w http.ResponseWriter, r *http.Request) {
	var d model.Draft
	if err := decodeBody(r, &d); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if d.Owner == "" {
		d.Owner = r.Header.Get(store.HeaderActor)
	}
	m, err := s.opts.Store.Create(r.Context(), d)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/meetings/"+m.ID)
	writeJSON(w, http.StatusCreated, m)
}

// GET /api/meetings/{id}
func (s *Server) handleGetMeeting(w http.ResponseWriter, r *http.Request) {
	m, err := s.opts.Store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// PATCH /api/meetings/{id}
func (s *Server) handleUpdateMeeting(w http.ResponseWriter, r *http.Request) {
	var p model.Patch
	if err := decodeBody(r, &p); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	v, err := ifMatch(r)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	p.IfMatch = v
	m, err := s.opts.Store.Update(r.Context(), r.PathValue("id"), p)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// DELETE /api/meetings/{id}
func (s *Server) handleDeleteMeeting(w http.ResponseWriter, r *http.Request) {
	v, err := ifMatch(r)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	opts := store.DeleteOptions{IfMatch: v, Actor: r.Header.Get(store.HeaderActor)}
	if err := s.opts.Store.Delete(r.Context(), r.PathValue("id"), opts); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type calendarResponse struct {
	session.View
	State session.State `json:"state"`
	Query string        `json:"query,omitempty"`
	Error string        `json:"error,omitempty"`
}

// parseDay reads a YYYY-MM-DD parameter in loc, defaulting to def.
func parseDay(raw string, loc *time.Location, def time.Time) (time.Time, error) {
	if raw == "" {
		return def, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a YYYY-MM-DD date", store.ErrValidation, raw)
	}
	return t, nil
}

// GET /api/calendar?view=month|week&date=&selected=&q=
//
// A failed store fetch still answers 200 with an empty grid; the cause is
// reported in "error".
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	mode := grid.ModeMonth
	if raw := v.Get("view"); raw != "" {
		m, err := grid.ParseMode(raw)
		if err != nil {
			s.writeStoreError(w, r, fmt.Errorf("%w: %v", store.ErrValidation, err))
			return
		}
		mode = m
	}

	loc := s.opts.Location
	today := grid.Today(s.opts.Now(), loc)
	cursor, err := parseDay(v.Get("date"), loc, today)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	selected, err := parseDay(v.Get("selected"), loc, cursor)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	sess := session.New(s.opts.Store, session.Options{
		Location: loc,
		Now:      s.opts.Now,
		Mode:     mode,
		Metrics:  s.opts.Metrics,
	})
	sess.SetQuery(v.Get("q"))
	sess.Select(selected)
	sess.Run(r.Context(), sess.SetCursor(cursor))

	resp := calendarResponse{View: sess.View(), State: sess.State(), Query: sess.Query()}
	if err := sess.Err(); err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/list?page=&q=
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	q := store.All()
	q.Query = v.Get("q")
	res, err := s.opts.Store.ListByRange(r.Context(), q)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	page := listview.Paginate(res.Items, parseIntDefault(v.Get("page"), 1), s.opts.Now())
	writeJSON(w, http.StatusOK, page)
}

// GET /api/export.ics?from=&to=&q=
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q, err := rangeQuery(r)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	q.Page, q.PerPage = 0, 0
	res, err := s.opts.Store.ListByRange(r.Context(), q)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	body := ics.Export(res.Items, s.opts.CalendarName, s.opts.Now())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="meetcal.ics"`)
	_, _ = io.WriteString(w, body)
}

type noteBody struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// GET /api/notes/{key}
func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	v, err := s.opts.Notes.GetNote(r.Context(), key)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, noteBody{Key: key, Value: v})
}

// PUT /api/notes/{key}
func (s *Server) handleSetNote(w http.ResponseWriter, r *http.Request) {
	var in noteBody
	if err := decodeBody(r, &in); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	key := r.PathValue("key")
	if err := s.opts.Notes.SetNote(r.Context(), key, in.Value); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, noteBody{Key: key, Value: in.Value})
}

// POST /api/refresh runs the feed import now.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.opts.Refresh == nil {
		writeError(w, http.StatusNotFound, "no feeds configured")
		return
	}
	if err := s.opts.Refresh(r.Context()); err != nil {
		if errors.Is(err, refresh.ErrBusy) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.log.Error("manual refresh failed", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
