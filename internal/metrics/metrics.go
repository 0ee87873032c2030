// Package metrics exposes Prometheus instrumentation for the donor map.
//
// A nil *Manager is valid and records nothing, so components can be built
// without metrics in tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcomes.
const (
	FetchOK    = "ok"
	FetchError = "error"
	FetchStale = "stale"
)

type Manager struct {
	namespace        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	fetches       *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	locates       *prometheus.CounterVec

	markersSkipped prometheus.Counter
	registrations  *prometheus.CounterVec
	activeViews    prometheus.Gauge
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "donormap",
		histogramBuckets: prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and method.",
		Buckets:   m.histogramBuckets,
	}, []string{"route", "method"})

	m.fetches = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "directory",
		Name:      "fetches_total",
		Help:      "Donor directory fetches by outcome (ok, error, stale).",
	}, []string{"outcome"})

	m.fetchDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "directory",
		Name:      "fetch_duration_seconds",
		Help:      "Latency of donor directory queries.",
		Buckets:   m.histogramBuckets,
	})

	m.locates = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "directory",
		Name:      "locates_total",
		Help:      "Map center lookups by outcome (ok, unavailable).",
	}, []string{"outcome"})

	m.markersSkipped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "directory",
		Name:      "markers_skipped_total",
		Help:      "Donor records left off the map because a coordinate was missing or invalid.",
	})

	m.registrations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "donor_registrations_total",
		Help:      "Donor registrations by outcome (ok, invalid, error).",
	}, []string{"outcome"})

	m.activeViews = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "directory",
		Name:      "active_views",
		Help:      "Directory views currently held in memory.",
	})
}

func (m *Manager) RecordHTTPRequest(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

func (m *Manager) RecordFetch(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(outcome).Inc()
	if outcome != FetchStale {
		m.fetchDuration.Observe(d.Seconds())
	}
}

func (m *Manager) RecordLocate(ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "unavailable"
	}
	m.locates.WithLabelValues(outcome).Inc()
}

func (m *Manager) AddMarkersSkipped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.markersSkipped.Add(float64(n))
}

func (m *Manager) RecordRegistration(outcome string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(outcome).Inc()
}

func (m *Manager) SetActiveViews(n int) {
	if m == nil {
		return
	}
	m.activeViews.Set(float64(n))
}

// Registry returns the registry the metrics are registered on.
func (m *Manager) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format. A nil
// manager serves 404.
func (m *Manager) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
