// Package metrics records client-side Prometheus metrics on a private registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "loadmap"

// Calculation outcomes.
const (
	OutcomeFull       = "full"
	OutcomeDegraded   = "degraded"
	OutcomeFailed     = "failed"
	OutcomeRejected   = "rejected"
	OutcomeSuperseded = "superseded"
)

// Enrichment fetch results.
const (
	FetchOK          = "ok"
	FetchCached      = "cached"
	FetchUnavailable = "unavailable"
	FetchStale       = "stale"
)

// Recorder owns the registry and every collector. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	calculations   *prometheus.CounterVec
	backendLatency *prometheus.HistogramVec
	enrichFetches  *prometheus.CounterVec
	reverseGeocode *prometheus.CounterVec
	sessions       prometheus.Gauge
}

// New creates a Recorder with Go and process collectors registered.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
	)

	r := &Recorder{
		registry: reg,
		calculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calculations_total",
			Help:      "Meeting-point calculations by outcome.",
		}, []string{"outcome"}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Backend request latency by endpoint and status.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"endpoint", "status"}),
		enrichFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_fetches_total",
			Help:      "Nearby-place fetches by result.",
		}, []string{"result"}),
		reverseGeocode: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reverse_geocode_total",
			Help:      "Reverse geocoding lookups by provider and result.",
		}, []string{"provider", "result"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Open map sessions.",
		}),
	}
	reg.MustRegister(r.calculations, r.backendLatency, r.enrichFetches, r.reverseGeocode, r.sessions)
	return r
}

// Registry exposes the underlying registry for tests and custom handlers.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Calculation counts one calculation outcome.
func (r *Recorder) Calculation(outcome string) {
	if r == nil {
		return
	}
	r.calculations.WithLabelValues(outcome).Inc()
}

// BackendRequest observes one backend round trip. status is the HTTP status
// code as text, or "error" when no response arrived.
func (r *Recorder) BackendRequest(endpoint, status string, d time.Duration) {
	if r == nil {
		return
	}
	r.backendLatency.WithLabelValues(endpoint, status).Observe(d.Seconds())
}

// EnrichmentFetch counts one nearby-place fetch result.
func (r *Recorder) EnrichmentFetch(result string) {
	if r == nil {
		return
	}
	r.enrichFetches.WithLabelValues(result).Inc()
}

// ReverseGeocode counts one reverse geocoding attempt.
func (r *Recorder) ReverseGeocode(provider, result string) {
	if r == nil {
		return
	}
	r.reverseGeocode.WithLabelValues(provider, result).Inc()
}

// SessionOpened increments the active session gauge.
func (r *Recorder) SessionOpened() {
	if r == nil {
		return
	}
	r.sessions.Inc()
}

// SessionClosed decrements the active session gauge.
func (r *Recorder) SessionClosed() {
	if r == nil {
		return
	}
	r.sessions.Dec()
}
