package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"meetcal/internal/model"
)

// Header names shared by the HTTP API and its client.
const (
	HeaderIfMatch = "If-Match"
	HeaderActor   = "X-Meetcal-Actor"
)

// ErrorBody is the JSON error shape of the HTTP API.
type ErrorBody struct {
	Error string `json:"error"`
}

// HTTP is a MeetingStore backed by a remote meetcal server.
type HTTP struct {
	base     *url.URL
	client   *http.Client
	actor    string
	username string
	password string
}

// HTTPOption configures an HTTP store.
type HTTPOption func(*HTTP)

// WithHTTPClient replaces the default client (15s timeout).
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) { h.client = c }
}

// WithActor sends actor as the acting user on mutations.
func WithActor(actor string) HTTPOption {
	return func(h *HTTP) { h.actor = actor }
}

// WithBasicAuth sets HTTP basic credentials on every request.
func WithBasicAuth(username, password string) HTTPOption {
	return func(h *HTTP) {
		h.username = username
		h.password = password
	}
}

// NewHTTP returns a store talking to the server at baseURL.
func NewHTTP(baseURL string, opts ...HTTPOption) (*HTTP, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("server url %q must be absolute", baseURL)
	}
	h := &HTTP{
		base:   u,
		client: &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(h)
	}
	return h, nil
}

func (h *HTTP) ListByRange(ctx context.Context, q RangeQuery) (ListResult, error) {
	v := url.Values{}
	v.Set("from", q.From.Format(time.RFC3339Nano))
	v.Set("to", q.To.Format(time.RFC3339Nano))
	if q.Query != "" {
		v.Set("q", q.Query)
	}
	if q.PerPage > 0 {
		v.Set("page", strconv.Itoa(q.Page))
		v.Set("per_page", strconv.Itoa(q.PerPage))
	}
	var res ListResult
	err := h.do(ctx, http.MethodGet, "/api/meetings?"+v.Encode(), nil, nil, &res)
	if res.Items == nil {
		res.Items = []model.Meeting{}
	}
	return res, err
}

func (h *HTTP) Get(ctx context.Context, id string) (model.Meeting, error) {
	var m model.Meeting
	err := h.do(ctx, http.MethodGet, "/api/meetings/"+url.PathEscape(id), nil, nil, &m)
	return m, err
}

func (h *HTTP) Create(ctx context.Context, d model.Draft) (model.Meeting, error) {
	if err := d.Validate(); err != nil {
		return model.Meeting{}, err
	}
	var m model.Meeting
	err := h.do(ctx, http.MethodPost, "/api/meetings", nil, d, &m)
	return m, err
}

func (h *HTTP) Update(ctx context.Context, id string, p model.Patch) (model.Meeting, error) {
	if err := p.Validate(); err != nil {
		return model.Meeting{}, err
	}
	var m model.Meeting
	err := h.do(ctx, http.MethodPatch, "/api/meetings/"+url.PathEscape(id), p.IfMatch, p, &m)
	return m, err
}

func (h *HTTP) Delete(ctx context.Context, id string, opts DeleteOptions) error {
	actor := h.actor
	if opts.Actor != "" {
		actor = opts.Actor
	}
	return h.doAs(ctx, actor, http.MethodDelete, "/api/meetings/"+url.PathEscape(id), opts.IfMatch, nil, nil)
}

func (h *HTTP) do(ctx context.Context, method, path string, ifMatch *int64, in, out any) error {
	return h.doAs(ctx, h.actor, method, path, ifMatch, in, out)
}

func (h *HTTP) doAs(ctx context.Context, actor, method, path string, ifMatch *int64, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.base.String()+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if ifMatch != nil {
		req.Header.Set(HeaderIfMatch, strconv.FormatInt(*ifMatch, 10))
	}
	if actor != "" {
		req.Header.Set(HeaderActor, actor)
	}
	if h.username != "" {
		req.SetBasicAuth(h.username, h.password)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode %s %s: %v", ErrNetwork, method, path, err)
		}
		return nil
	}

	var eb ErrorBody
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&eb)
	if eb.Error == "" {
		eb.Error = resp.Status
	}
	return fmt.Errorf("%w: %s", ErrorForStatus(resp.StatusCode), eb.Error)
}

// ErrorForStatus maps an HTTP status code back to the error taxonomy.
func ErrorForStatus(code int) error {
	switch code {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrValidation
	case http.StatusNotFound, http.StatusGone:
		return ErrNotFound
	case http.StatusConflict, http.StatusPreconditionFailed:
		return ErrConflict
	case http.StatusForbidden, http.StatusUnauthorized:
		return ErrForbidden
	default:
		return ErrNetwork
	}
}

// StatusForError is the inverse of ErrorForStatus used by the server.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusPreconditionFailed
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNetwork):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
