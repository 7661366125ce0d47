package resolver

import (
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/intentui/internal/dataprovider"
	"github.com/zjrosen/intentui/internal/metrics"
)

// DefaultTTL is the cache lifetime in seconds for components that declare none.
const DefaultTTL = 300

// Options are per-request switches, decoded from the request's "options" object.
type Options struct {
	// NoCache forces a fresh resolution.
	NoCache bool `json:"noCache,omitempty"`
	// Cache opts in to caching even when a data provider is configured.
	Cache bool `json:"cache,omitempty"`
	// Context is passed to the data provider untouched.
	Context map[string]any `json:"context,omitempty"`
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithDataProvider merges provider data into props.
func WithDataProvider(p dataprovider.DataProvider) Option {
	return func(r *Resolver) { r.provider = p }
}

// WithDefaultTTL sets the TTL for components without performance.cacheTtl.
func WithDefaultTTL(seconds int) Option {
	return func(r *Resolver) {
		if seconds > 0 {
			r.defaultTTL = seconds
		}
	}
}

// WithCache enables the resolution cache.
func WithCache(cleanupInterval time.Duration) Option {
	return func(r *Resolver) {
		r.cacheEnabled = true
		r.cacheCleanup = cleanupInterval
	}
}

// WithTracer records spans for each resolution.
func WithTracer(t trace.Tracer) Option {
	return func(r *Resolver) { r.tracer = t }
}

// WithMetrics records resolution counts and latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}
