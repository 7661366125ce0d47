// Package metrics exposes prometheus collectors for resolutions, renders and
// registry reloads. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "intentui"

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics holds every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	resolutions        *prometheus.CounterVec
	resolutionDuration *prometheus.HistogramVec
	renders            *prometheus.CounterVec
	ssrFallbacks       *prometheus.CounterVec
	reloads            *prometheus.CounterVec
	catalogSize        *prometheus.GaugeVec
	cacheLookups       *prometheus.CounterVec
	liveClients        prometheus.Gauge
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

// New creates and registers the collectors, including the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Intent resolutions by intent and error code.",
		}, []string{"intent", "code"}),
		resolutionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolution_duration_seconds",
			Help:      "Time spent resolving an intent.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"outcome"}),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renders_total",
			Help:      "Render requests by framework, mode and final state.",
		}, []string{"framework", "mode", "state"}),
		ssrFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ssr_fallbacks_total",
			Help:      "Server-side renders that failed and fell back to client-only rendering.",
		}, []string{"framework"}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_reloads_total",
			Help:      "Registry reloads by registry and outcome.",
		}, []string{"registry", "outcome"}),
		catalogSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_entries",
			Help:      "Number of definitions currently served by each registry.",
		}, []string{"registry"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolution_cache_lookups_total",
			Help:      "Resolution cache lookups by result.",
		}, []string{"result"}),
		liveClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_reload_clients",
			Help:      "Connected live-reload websocket clients.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.resolutions,
		m.resolutionDuration,
		m.renders,
		m.ssrFallbacks,
		m.reloads,
		m.catalogSize,
		m.cacheLookups,
		m.liveClients,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Registry returns the underlying prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the collected metrics in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveResolution records one resolution. code is empty on success.
func (m *Metrics) ObserveResolution(intent, code string, d time.Duration) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if code != "" {
		outcome = OutcomeError
	} else {
		code = "none"
	}
	m.resolutions.WithLabelValues(intent, code).Inc()
	m.resolutionDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveRender records the final state of a render request.
func (m *Metrics) ObserveRender(framework, mode, state string) {
	if m == nil {
		return
	}
	m.renders.WithLabelValues(framework, mode, state).Inc()
}

// SSRFallback records an SSR failure that was downgraded to client-only rendering.
func (m *Metrics) SSRFallback(framework string) {
	if m == nil {
		return
	}
	m.ssrFallbacks.WithLabelValues(framework).Inc()
}

// ObserveReload records a registry reload.
func (m *Metrics) ObserveReload(registry string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.reloads.WithLabelValues(registry, outcome).Inc()
}

// SetCatalogSize records the number of entries a registry serves.
func (m *Metrics) SetCatalogSize(registry string, n int) {
	if m == nil {
		return
	}
	m.catalogSize.WithLabelValues(registry).Set(float64(n))
}

// CacheLookup records a resolution cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// SetLiveClients records the number of connected live-reload clients.
func (m *Metrics) SetLiveClients(n int) {
	if m == nil {
		return
	}
	m.liveClients.Set(float64(n))
}

// ObserveHTTP records one served HTTP request.
func (m *Metrics) ObserveHTTP(route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}
