// Package metrics exposes engine telemetry in Prometheus format. It
// implements session.Observer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lraide"

// Metrics owns its registry so several engines (and tests) can coexist in
// one process.
type Metrics struct {
	registry *prometheus.Registry

	recomputeTotal    *prometheus.CounterVec
	recomputeDuration prometheus.Histogram
	noticeTotal       *prometheus.CounterVec
	openSessions      prometheus.Gauge
	droppedEvents     prometheus.Counter
	httpRequests      *prometheus.CounterVec
}

// New registers every collector on a fresh registry. withRuntime adds the Go
// and process collectors.
func New(withRuntime bool) *Metrics {
	reg := prometheus.NewRegistry()
	if withRuntime {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		recomputeTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recompute_total",
			Help:      "Recomputations by outcome (committed, unchanged, failed, skipped).",
		}, []string{"outcome"}),
		recomputeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recompute_duration_seconds",
			Help:      "Time spent in one recomputation, kernel included.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		noticeTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notices_total",
			Help:      "Rejected mutations by error code.",
		}, []string{"code"}),
		openSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_sessions",
			Help:      "Sessions currently held by the registry, forks included.",
		}),
		droppedEvents: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_events_total",
			Help:      "Change events dropped because a subscriber buffer was full.",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by route and status class.",
		}, []string{"route", "status"}),
	}
}

func (m *Metrics) RecordRecompute(outcome string, elapsed time.Duration) {
	m.recomputeTotal.WithLabelValues(outcome).Inc()
	m.recomputeDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) SetOpenSessions(n int) {
	m.openSessions.Set(float64(n))
}

func (m *Metrics) RecordNotice(code string) {
	m.noticeTotal.WithLabelValues(code).Inc()
}

func (m *Metrics) RecordDroppedEvent() {
	m.droppedEvents.Inc()
}

// RecordRequest counts one API request. status is collapsed to its class
// ("2xx", "4xx", ...) to keep cardinality low.
func (m *Metrics) RecordRequest(route string, status int) {
	m.httpRequests.WithLabelValues(route, statusClass(status)).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
