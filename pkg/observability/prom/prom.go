// Package prom implements the observability hooks with Prometheus metrics.
package prom

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/dbdev/pkg/observability"
)

// Metrics implements [observability.QueryHooks], [observability.CacheHooks]
// and [observability.HTTPHooks].
type Metrics struct {
	fetches       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	dedupes       *prometheus.CounterVec
	cancels       *prometheus.CounterVec
	cacheHits     *prometheus.CounterVec
	cacheMisses   *prometheus.CounterVec
	cacheBytes    *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	httpErrors    *prometheus.CounterVec
}

// New creates the metric vectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dbdev", Subsystem: "query", Name: "fetches_total",
			Help: "Remote fetches by resource and outcome.",
		}, []string{"resource", "outcome"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dbdev", Subsystem: "query", Name: "fetch_duration_seconds",
			Help:    "Remote fetch latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"resource"}),
		dedupes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dbdev", Subsystem: "query", Name: "dedupes_total",
			Help: "Callers that joined an in-flight fetch.",
		}, []string{"resource"}),
		cancels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dbdev", Subsystem: "query", Name: "cancels_total",
			Help: "Fetches aborted after every observer left.",
		}, []string{"resource"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dbdev", Subsystem: "cache", Name: "hits_total",
			Help: "Cache hits by tier.",
		}, []string{"tier"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dbdev", Subsystem: "cache", Name: "misses_total",
			Help: "Cache misses by tier.",
		}, []string{"tier"}),
		cacheBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dbdev", Subsystem: "cache", Name: "written_bytes_total",
			Help: "Bytes written by tier.",
		}, []string{"tier"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dbdev", Subsystem: "http_client", Name: "responses_total",
			Help: "Outgoing HTTP responses by host and status.",
		}, []string{"method", "host", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dbdev", Subsystem: "http_client", Name: "duration_seconds",
			Help:    "Outgoing HTTP latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "host"}),
		httpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dbdev", Subsystem: "http_client", Name: "errors_total",
			Help: "Outgoing HTTP transport failures.",
		}, []string{"method", "host"}),
	}
	reg.MustRegister(
		m.fetches, m.fetchDuration, m.dedupes, m.cancels,
		m.cacheHits, m.cacheMisses, m.cacheBytes,
		m.httpRequests, m.httpDuration, m.httpErrors,
	)
	return m
}

// Register installs m as the global query, cache and HTTP hooks.
func (m *Metrics) Register() {
	observability.Register(m)
}

// Handler serves the default gatherer in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

func (m *Metrics) OnFetchStart(context.Context, string) {}

func (m *Metrics) OnFetchComplete(_ context.Context, resource string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.fetches.WithLabelValues(resource, outcome).Inc()
	m.fetchDuration.WithLabelValues(resource).Observe(d.Seconds())
}

func (m *Metrics) OnDedupe(_ context.Context, resource string) {
	m.dedupes.WithLabelValues(resource).Inc()
}

func (m *Metrics) OnCancel(_ context.Context, resource string) {
	m.cancels.WithLabelValues(resource).Inc()
}

func (m *Metrics) OnCacheHit(_ context.Context, tier string) {
	m.cacheHits.WithLabelValues(tier).Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, tier string) {
	m.cacheMisses.WithLabelValues(tier).Inc()
}

func (m *Metrics) OnCacheSet(_ context.Context, tier string, size int) {
	m.cacheBytes.WithLabelValues(tier).Add(float64(size))
}

func (m *Metrics) OnRequest(context.Context, string, string, string) {}

func (m *Metrics) OnResponse(_ context.Context, method, host, _ string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, host, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, host).Observe(d.Seconds())
}

func (m *Metrics) OnError(_ context.Context, method, host, _ string, _ error) {
	m.httpErrors.WithLabelValues(method, host).Inc()
}

var (
	_ observability.QueryHooks = (*Metrics)(nil)
	_ observability.CacheHooks = (*Metrics)(nil)
	_ observability.HTTPHooks  = (*Metrics)(nil)
)
