package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
const (
	AttrIntentName      = "intent.name"
	AttrComponentName   = "component.name"
	AttrFramework       = "component.framework"
	AttrCacheHit        = "resolution.cache_hit"
	AttrTTL             = "resolution.ttl"
	AttrRenderMode      = "render.mode"
	AttrRenderState     = "render.state"
	AttrSSRFallback     = "render.ssr_fallback"
	AttrErrorCode       = "error.code"
	AttrHTTPRoute       = "http.route"
	AttrHTTPStatus      = "http.status_code"
	AttrRequestID       = "request.id"
	AttrViolationsCount = "validation.violations"
)

// Span names.
const (
	SpanResolveIntent   = "resolver.resolve_intent"
	SpanDataProvider    = "resolver.data_provider"
	SpanRender          = "render.pipeline"
	SpanRenderComponent = "render.component"
	SpanSSR             = "render.ssr"
	SpanHTTPPrefix      = "http "
)

// Event names.
const (
	EventStateTransition = "render.state_transition"
	EventDeprecated      = "catalog.deprecated"
)

// Fail records err on span and marks it failed with the given error code.
func Fail(span trace.Span, err error, code string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if code != "" {
		span.SetAttributes(attribute.String(AttrErrorCode, code))
	}
}
