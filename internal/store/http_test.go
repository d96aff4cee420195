package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetcal/internal/model"
)

func TestNewHTTPRejectsRelativeURL(t *testing.T) {
	_, err := NewHTTP("localhost:8080")
	assert.Error(t, err)
}

func TestHTTPErrorMapping(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{http.StatusBadRequest, ErrValidation},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusPreconditionFailed, ErrConflict},
		{http.StatusConflict, ErrConflict},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusServiceUnavailable, ErrNetwork},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.code)
			_ = json.NewEncoder(w).Encode(ErrorBody{Error: "nope"})
		}))
		h, err := NewHTTP(srv.URL)
		require.NoError(t, err)

		err = h.Delete(context.Background(), "x", DeleteOptions{})
		assert.ErrorIs(t, err, tt.want, "status %d", tt.code)
		srv.Close()
	}
}

func TestHTTPTransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	h, err := NewHTTP(url)
	require.NoError(t, err)
	_, err = h.ListByRange(context.Background(), All())
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestHTTPSendsHeadersAndQuery(t *testing.T) {
	reqs := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqs <- r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(model.Meeting{ID: "m1", Title: "x", Version: 3})
	}))
	defer srv.Close()

	h, err := NewHTTP(srv.URL, WithActor("alice"), WithBasicAuth("u", "p"))
	require.NoError(t, err)

	title := "renamed"
	m, err := h.Update(context.Background(), "m1", model.Patch{Title: &title, IfMatch: Version(2)})
	require.NoError(t, err)
	assert.Equal(t, int64(3), m.Version)

	got := <-reqs
	assert.Equal(t, http.MethodPatch, got.Method)
	assert.Equal(t, "/api/meetings/m1", got.URL.Path)
	assert.Equal(t, "2", got.Header.Get(HeaderIfMatch))
	assert.Equal(t, "alice", got.Header.Get(HeaderActor))
	user, pass, ok := got.BasicAuth()
	assert.True(t, ok)
	assert.Equal(t, "u", user)
	assert.Equal(t, "p", pass)
}

func TestHTTPValidatesLocally(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	h, err := NewHTTP(srv.URL)
	require.NoError(t, err)
	_, err = h.Create(context.Background(), model.Draft{Title: "", Start: time.Now(), End: time.Now()})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, int32(0), calls.Load())
}

func TestStatusForErrorRoundTrip(t *testing.T) {
	for _, e := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrForbidden, ErrNetwork} {
		assert.ErrorIs(t, ErrorForStatus(StatusForError(e)), e)
	}
}
