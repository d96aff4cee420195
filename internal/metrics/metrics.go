// Package metrics owns the Prometheus collectors. A nil *Metrics is valid
// and records nothing, so components can run without a registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "meetcal"

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
	ResultStale = "stale"
)

// Metrics holds every collector the service exports.
type Metrics struct {
	gatherer prometheus.Gatherer

	StoreOperations *prometheus.CounterVec
	StoreDuration   *prometheus.HistogramVec
	SessionFetches  *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec
	FeedImports     *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		StoreOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Meeting store calls by operation and result.",
		}, []string{"op", "result"}),
		StoreDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Meeting store call latency.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"op"}),
		SessionFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_fetches_total",
			Help:      "Calendar session fetch outcomes (ok, error, stale).",
		}, []string{"result"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		FeedImports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_imports_total",
			Help:      "ICS feed import runs by feed and result.",
		}, []string{"feed", "result"}),
	}
	reg.MustRegister(m.StoreOperations, m.StoreDuration, m.SessionFetches, m.HTTPRequests, m.FeedImports)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveStore(op, result string, seconds float64) {
	if m == nil {
		return
	}
	m.StoreOperations.WithLabelValues(op, result).Inc()
	m.StoreDuration.WithLabelValues(op).Observe(seconds)
}

func (m *Metrics) ObserveFetch(result string) {
	if m == nil {
		return
	}
	m.SessionFetches.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveHTTP(route, code string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, code).Inc()
}

func (m *Metrics) ObserveImport(feed, result string) {
	if m == nil {
		return
	}
	m.FeedImports.WithLabelValues(feed, result).Inc()
}
