// Package metrics exposes enrichment and HTTP metrics in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gastromap/location-enricher/pkg/enrich"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors on a private registry. It satisfies engine.Observer.
type Metrics struct {
	registry *prometheus.Registry

	results      *prometheus.CounterVec
	fields       *prometheus.CounterVec
	errors       *prometheus.CounterVec
	enrichDur    prometheus.Histogram
	batchItems   *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpDur      *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.results = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "enricher",
		Name:      "results_total",
		Help:      "Enrichment results by outcome and cache use",
	}, []string{"outcome", "cache"})
	m.fields = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "enricher",
		Name:      "fields_enriched_total",
		Help:      "Fields filled by enrichment",
	}, []string{"field"})
	m.errors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "enricher",
		Name:      "result_errors_total",
		Help:      "Error messages recorded on enrichment results, by coarse class",
	}, []string{"class"})
	m.enrichDur = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "enricher",
		Name:      "enrich_duration_seconds",
		Help:      "Time spent enriching one record, cache misses only",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	})
	m.batchItems = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "enricher",
		Name:      "batch_items_total",
		Help:      "Records processed by the batch coordinator",
	}, []string{"mode"})
	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "enricher",
		Name:      "http_requests_total",
		Help:      "HTTP requests served by route and status code",
	}, []string{"method", "route", "code"})
	m.httpDur = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "enricher",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	m.registry.MustRegister(
		m.results, m.fields, m.errors, m.enrichDur,
		m.batchItems, m.httpRequests, m.httpDur,
	)
	return m
}

// ObserveResult records one enrichment result.
func (m *Metrics) ObserveResult(res *enrich.Result, cached bool, elapsed time.Duration) {
	if res == nil {
		return
	}
	outcome := "failure"
	if res.Metadata.Success {
		outcome = "success"
	}
	cache := "miss"
	if cached {
		cache = "hit"
	}
	m.results.WithLabelValues(outcome, cache).Inc()
	if cached {
		return
	}

	m.enrichDur.Observe(elapsed.Seconds())
	for _, f := range res.Metadata.FieldsEnriched {
		m.fields.WithLabelValues(f).Inc()
	}
	for _, msg := range res.Metadata.Errors {
		m.errors.WithLabelValues(ErrorClass(msg)).Inc()
	}
}

// ObserveBatch counts records processed in the given mode ("sequential" or "grouped").
func (m *Metrics) ObserveBatch(mode string, items int) {
	m.batchItems.WithLabelValues(mode).Add(float64(items))
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDur.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, e.g. for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
