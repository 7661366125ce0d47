package registry

import (
	"github.com/zjrosen/intentui/internal/metrics"
)

// Registry names used in change events and metrics.
const (
	NameIntents    = "intents"
	NameComponents = "components"
)

type options struct {
	metrics *metrics.Metrics
}

// Option configures a registry.
type Option func(*options)

// WithMetrics records reloads and catalog sizes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
