package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetcal/internal/config"
	"meetcal/internal/listview"
	"meetcal/internal/metrics"
	"meetcal/internal/model"
	"meetcal/internal/refresh"
	"meetcal/internal/store"
)

var fixedNow = time.Date(2025, 9, 17, 15, 0, 0, 0, time.UTC)

type fixture struct {
	srv     *httptest.Server
	store   *store.Memory
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()
	f := &fixture{store: store.NewMemory(), metrics: metrics.New(prometheus.NewRegistry())}
	opts := Options{
		Store:    f.store,
		Metrics:  f.metrics,
		Location: time.UTC,
		Now:      func() time.Time { return fixedNow },
	}
	if mutate != nil {
		mutate(&opts)
	}
	f.srv = httptest.NewServer(NewServer(opts).Handler())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) seed(t *testing.T, title string, start, end time.Time, allDay bool) model.Meeting {
	t.Helper()
	m, err := f.store.Create(context.Background(), model.Draft{Title: title, Start: start, End: end, AllDay: allDay})
	require.NoError(t, err)
	return m
}

func (f *fixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := f.srv.Client().Get(f.srv.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "OK", string(body))
}

func TestBasicAuth(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	})

	assert.Equal(t, http.StatusOK, f.get(t, "/health").StatusCode)

	resp := f.get(t, "/api/list")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Basic")

	req, _ := http.NewRequest(http.MethodGet, f.srv.URL+"/api/list", nil)
	req.SetBasicAuth("admin", "secret")
	ok, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	defer ok.Body.Close()
	assert.Equal(t, http.StatusOK, ok.StatusCode)

	hs, err := store.NewHTTP(f.srv.URL, store.WithHTTPClient(f.srv.Client()), store.WithBasicAuth("admin", "secret"))
	require.NoError(t, err)
	_, err = hs.ListByRange(context.Background(), store.All())
	assert.NoError(t, err)
}

func TestHTTPStoreRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	alice, err := store.NewHTTP(f.srv.URL, store.WithHTTPClient(f.srv.Client()), store.WithActor("alice"))
	require.NoError(t, err)

	start := time.Date(2025, 9, 10, 14, 0, 0, 0, time.UTC)
	m, err := alice.Create(ctx, model.Draft{Title: "Planning", Start: start, End: start.Add(time.Hour), Teams: []string{"Platform"}})
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, int64(1), m.Version)
	assert.Equal(t, "alice", m.Owner)

	got, err := alice.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Planning", got.Title)

	title := "Planning v2"
	upd, err := alice.Update(ctx, m.ID, model.Patch{Title: &title, IfMatch: store.Version(1)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), upd.Version)

	_, err = alice.Update(ctx, m.ID, model.Patch{Title: &title, IfMatch: store.Version(1)})
	assert.ErrorIs(t, err, store.ErrConflict)

	res, err := alice.ListByRange(ctx, store.RangeQuery{From: start.Add(-time.Hour), To: start, Query: "v2"})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, m.ID, res.Items[0].ID)

	err = alice.Delete(ctx, m.ID, store.DeleteOptions{Actor: "bob"})
	assert.ErrorIs(t, err, store.ErrForbidden)
	require.NoError(t, alice.Delete(ctx, m.ID, store.DeleteOptions{IfMatch: store.Version(2)}))

	_, err = alice.Get(ctx, m.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateRejectsBadBody(t *testing.T) {
	f := newFixture(t, nil)
	resp, err := f.srv.Client().Post(f.srv.URL+"/api/meetings", "application/json", strings.NewReader(`{"title":""}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp2, err := f.srv.Client().Post(f.srv.URL+"/api/meetings", "application/json", strings.NewReader(`{"bogus":1}`))
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestCreateNormalizesStatus(t *testing.T) {
	f := newFixture(t, nil)
	body := `{"title":"Sync","start":"2025-09-18T09:00:00Z","end":"2025-09-18T10:00:00Z","status":"foo"}`
	resp, err := f.srv.Client().Post(f.srv.URL+"/api/meetings", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	m := decode[model.Meeting](t, resp)
	assert.Equal(t, model.StatusNone, m.Status)
	got, err := f.store.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNone, got.Status)
}

func TestBadParams(t *testing.T) {
	f := newFixture(t, nil)
	for _, path := range []string{
		"/api/calendar?view=year",
		"/api/calendar?date=17-09-2025",
		"/api/calendar?selected=nope",
		"/api/meetings?from=yesterday",
		"/api/meetings?from=2025-09-02T00:00:00Z&to=2025-09-01T00:00:00Z",
	} {
		assert.Equal(t, http.StatusBadRequest, f.get(t, path).StatusCode, path)
	}
}

type calendarJSON struct {
	Mode  string `json:"mode"`
	From  time.Time
	State string `json:"state"`
	Error string `json:"error"`
	Month *[6][7]struct {
		Date           time.Time       `json:"date"`
		InCurrentMonth bool            `json:"in_current_month"`
		Items          []model.Meeting `json:"items"`
	} `json:"month"`
	SelectedItems []model.Meeting `json:"selected_items"`
}

func TestCalendarMonth(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, "Offsite", time.Date(2025, 9, 29, 0, 0, 0, 0, time.UTC), time.Date(2025, 10, 2, 23, 59, 59, 0, time.UTC), true)
	f.seed(t, "Review", time.Date(2025, 9, 10, 14, 0, 0, 0, time.UTC), time.Date(2025, 9, 10, 15, 0, 0, 0, time.UTC), false)
	f.seed(t, "Far away", time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC), time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC), false)

	resp := f.get(t, "/api/calendar?view=month&date=2025-09-15&selected=2025-09-30")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cal := decode[calendarJSON](t, resp)

	assert.Equal(t, "month", cal.Mode)
	assert.Equal(t, "ready", cal.State)
	assert.Empty(t, cal.Error)
	assert.Equal(t, time.Date(2025, 8, 31, 0, 0, 0, 0, time.UTC), cal.From.UTC())
	require.NotNil(t, cal.Month)

	counts := map[string]int{}
	for _, row := range cal.Month {
		for _, c := range row {
			for _, m := range c.Items {
				counts[m.Title]++
			}
		}
	}
	assert.Equal(t, 4, counts["Offsite"])
	assert.Equal(t, 1, counts["Review"])
	assert.Zero(t, counts["Far away"])

	require.Len(t, cal.SelectedItems, 1)
	assert.Equal(t, "Offsite", cal.SelectedItems[0].Title)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SessionFetches.WithLabelValues(metrics.ResultOK)))
}

type failingStore struct{ store.MeetingStore }

func (failingStore) ListByRange(context.Context, store.RangeQuery) (store.ListResult, error) {
	return store.ListResult{}, fmt.Errorf("%w: backend down", store.ErrNetwork)
}

func TestCalendarDegradesOnFetchFailure(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Store = failingStore{o.Store} })

	resp := f.get(t, "/api/calendar?view=week&date=2025-09-17")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cal := decode[calendarJSON](t, resp)
	assert.Equal(t, "ready", cal.State)
	assert.Contains(t, cal.Error, "backend down")
	assert.Empty(t, cal.SelectedItems)

	assert.Equal(t, http.StatusBadGateway, f.get(t, "/api/list").StatusCode)
}

func TestListClampsPage(t *testing.T) {
	f := newFixture(t, nil)
	base := time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)
	for i := range 12 {
		s := base.AddDate(0, 0, i*2)
		f.seed(t, fmt.Sprintf("m%02d", i), s, s.Add(time.Hour), false)
	}

	page := decode[listview.Page](t, f.get(t, "/api/list?page=5"))
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 12, page.TotalItems)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "m01", page.Items[0].Meeting.Title)
	assert.Equal(t, listview.StatusDone, page.Items[0].Status)

	first := decode[listview.Page](t, f.get(t, "/api/list"))
	assert.Equal(t, "m11", first.Items[0].Meeting.Title)
	assert.Equal(t, listview.StatusBefore, first.Items[0].Status)
}

func TestExport(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, "Review", time.Date(2025, 9, 10, 14, 0, 0, 0, time.UTC), time.Date(2025, 9, 10, 15, 0, 0, 0, time.UTC), false)

	resp := f.get(t, "/api/export.ics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/calendar")
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "SUMMARY:Review")
}

func TestNotes(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, http.StatusNotFound, f.get(t, "/api/notes/agenda").StatusCode)

	req, _ := http.NewRequest(http.MethodPut, f.srv.URL+"/api/notes/agenda", strings.NewReader(`{"value":"bring slides"}`))
	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[noteBody](t, f.get(t, "/api/notes/agenda"))
	assert.Equal(t, "bring slides", got.Value)
}

func TestRefresh(t *testing.T) {
	f := newFixture(t, nil)
	resp, err := f.srv.Client().Post(f.srv.URL+"/api/refresh", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var calls atomic.Int32
	g := newFixture(t, func(o *Options) {
		o.Refresh = func(context.Context) error {
			switch calls.Add(1) {
			case 1:
				return nil
			case 2:
				return refresh.ErrBusy
			default:
				return errors.New("feed down")
			}
		}
	})
	resp, err = g.srv.Client().Post(g.srv.URL+"/api/refresh", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = g.srv.Client().Post(g.srv.URL+"/api/refresh", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, err = g.srv.Client().Post(g.srv.URL+"/api/refresh", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	f.get(t, "/health")
	f.get(t, "/nope")

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.HTTPRequests.WithLabelValues("GET /health", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.HTTPRequests.WithLabelValues("unmatched", "404")))

	body, _ := io.ReadAll(f.get(t, "/metrics").Body)
	assert.Contains(t, string(body), "meetcal_http_requests_total")
}
