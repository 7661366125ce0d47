package render

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/intentui/internal/domain/catalog"
	"github.com/zjrosen/intentui/internal/domain/schema"
	"github.com/zjrosen/intentui/internal/flags"
	"github.com/zjrosen/intentui/internal/log"
	"github.com/zjrosen/intentui/internal/metrics"
	"github.com/zjrosen/intentui/internal/resolver"
	"github.com/zjrosen/intentui/internal/tracing"
)

// IntentResolver resolves an intent request.
type IntentResolver interface {
	ResolveIntent(ctx context.Context, req catalog.IntentRequest, opts resolver.Options) (*catalog.ResolutionResult, error)
}

// ComponentLookup finds component definitions.
type ComponentLookup interface {
	Get(name string) (*catalog.ComponentDefinition, bool)
}

// Request is one intent render.
type Request struct {
	Intent  catalog.IntentRequest
	Options resolver.Options
	Mode    Mode
}

// Pipeline drives a render request from resolution to artifact.
type Pipeline struct {
	resolver   IntentResolver
	components ComponentLookup
	renderers  *Registry
	flags      *flags.Registry
	ssrTimeout time.Duration
	defaultTTL int
	tracer     trace.Tracer
	metrics    *metrics.Metrics
	now        func() time.Time
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithFlags reads the ssr flag from f. Without flags SSR is on.
func WithFlags(f *flags.Registry) PipelineOption {
	return func(p *Pipeline) { p.flags = f }
}

// WithSSRTimeout bounds each server render. Zero means no bound beyond the
// request context.
func WithSSRTimeout(d time.Duration) PipelineOption {
	return func(p *Pipeline) { p.ssrTimeout = d }
}

// WithDefaultTTL sets the TTL for direct component renders.
func WithDefaultTTL(seconds int) PipelineOption {
	return func(p *Pipeline) {
		if seconds > 0 {
			p.defaultTTL = seconds
		}
	}
}

// WithPipelineTracer records a span per render.
func WithPipelineTracer(t trace.Tracer) PipelineOption {
	return func(p *Pipeline) { p.tracer = t }
}

// WithPipelineMetrics records render outcomes.
func WithPipelineMetrics(m *metrics.Metrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

// NewPipeline creates a render pipeline.
func NewPipeline(res IntentResolver, components ComponentLookup, renderers *Registry, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		resolver:   res,
		components: components,
		renderers:  renderers,
		defaultTTL: resolver.DefaultTTL,
		tracer:     noop.NewTracerProvider().Tracer("render"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Render resolves req and produces an artifact in req.Mode. Resolution
// errors are returned unchanged. SSR failures never fail the request.
func (p *Pipeline) Render(ctx context.Context, req Request) (*Artifact, error) {
	mode := req.Mode
	if mode == "" {
		mode = ModeJSON
	}
	ctx, span := p.tracer.Start(ctx, tracing.SpanRender, trace.WithAttributes(
		attribute.String(tracing.AttrIntentName, req.Intent.Name),
		attribute.String(tracing.AttrRenderMode, string(mode)),
	))
	defer span.End()

	tr := &tracker{span: span, art: &Artifact{Mode: mode}, label: req.Intent.Name}
	tr.to(StateReceived)
	start := p.now()

	res, err := p.resolver.ResolveIntent(ctx, req.Intent, req.Options)
	if err != nil {
		// The intent exists; only its parameters were rejected.
		if errors.Is(err, catalog.ErrParameterValidation) {
			tr.to(StateResolved)
		}
		return nil, p.fail(tr, "", err)
	}
	tr.art.Result = res
	tr.to(StateResolved)

	return p.produce(ctx, tr, res, p.now().Sub(start))
}

// RenderComponent renders a component directly with explicit props. Props are
// validated against the component's propsSchema and defaults applied.
func (p *Pipeline) RenderComponent(ctx context.Context, name string, props map[string]any, mode Mode) (*Artifact, error) {
	if mode == "" {
		mode = ModeHTML
	}
	ctx, span := p.tracer.Start(ctx, tracing.SpanRenderComponent, trace.WithAttributes(
		attribute.String(tracing.AttrComponentName, name),
		attribute.String(tracing.AttrRenderMode, string(mode)),
	))
	defer span.End()

	tr := &tracker{span: span, art: &Artifact{Mode: mode}, label: name}
	tr.to(StateReceived)
	start := p.now()

	comp, ok := p.components.Get(name)
	if !ok {
		return nil, p.fail(tr, "", catalog.NewError(catalog.ErrComponentNotFound,
			map[string]any{"component": name}, "component %q is not registered", name))
	}
	if props == nil {
		props = map[string]any{}
	}
	if violations := comp.PropsSchema.ValidateObject(props); len(violations) > 0 {
		msgs := make([]string, 0, len(violations))
		for _, v := range violations {
			msgs = append(msgs, v.Message)
		}
		tr.to(StateResolved)
		return nil, p.fail(tr, comp.Framework, catalog.NewError(catalog.ErrParameterValidation, violations,
			"component %q props: %s", name, strings.Join(msgs, "; ")))
	}
	props = comp.PropsSchema.ApplyDefaults(props)

	ttl := comp.CacheTTL()
	if ttl <= 0 {
		ttl = p.defaultTTL
	}
	res := &catalog.ResolutionResult{
		Record: catalog.ResolutionRecord{
			ModuleURL:  comp.RemoteURL,
			ExportName: comp.ExportName,
			Props:      props,
		},
		Component:  comp,
		TTL:        ttl,
		Parameters: schema.DeepCopy(props).(map[string]any),
		ResolvedAt: p.now(),
	}
	tr.art.Result = res
	tr.to(StateResolved)

	return p.produce(ctx, tr, res, p.now().Sub(start))
}

func (p *Pipeline) produce(ctx context.Context, tr *tracker, res *catalog.ResolutionResult, elapsed time.Duration) (*Artifact, error) {
	comp := res.Component
	tr.span.SetAttributes(
		attribute.String(tracing.AttrComponentName, comp.Name),
		attribute.String(tracing.AttrFramework, string(comp.Framework)),
	)
	if res.Deprecated() {
		tr.span.AddEvent(tracing.EventDeprecated)
	}

	if tr.art.Mode == ModeJSON {
		tr.art.JSON = newJSONArtifact(res, elapsed)
		return p.sent(tr, comp.Framework), nil
	}

	renderer, ok := p.renderers.Get(comp.Framework)
	if !ok {
		return nil, p.fail(tr, comp.Framework, catalog.NewError(catalog.ErrRendererUnavailable,
			map[string]any{"component": comp.Name, "framework": string(comp.Framework)},
			"no renderer registered for framework %q", comp.Framework))
	}

	content := ""
	if p.flags == nil || p.flags.Enabled(flags.FlagSSR) {
		tr.to(StateSSRAttempted)
		out, err := p.serverRender(ctx, renderer, comp, res.Record.Props)
		if err != nil {
			log.Warn(log.CatRender, "Server render failed, falling back to client rendering",
				"component", comp.Name, "framework", string(comp.Framework), "error", err.Error())
			p.metrics.SSRFallback(string(comp.Framework))
			tr.art.SSRFallback = true
			tr.span.SetAttributes(attribute.Bool(tracing.AttrSSRFallback, true))
			tr.to(StateSSRSkipped)
		} else {
			content = out
		}
	} else {
		tr.to(StateSSRSkipped)
	}

	doc, err := renderer.GenerateTemplate(content, comp, res.Record.Props, res.Intent, res.Parameters)
	if err != nil {
		return nil, p.fail(tr, comp.Framework, fmt.Errorf("render %s: %w", comp.Name, err))
	}
	tr.art.HTML = doc
	tr.to(StateTemplated)
	return p.sent(tr, comp.Framework), nil
}

// serverRender runs RenderToString, turning a panic into an error.
func (p *Pipeline) serverRender(ctx context.Context, r Renderer, comp *catalog.ComponentDefinition, props map[string]any) (out string, err error) {
	ctx, span := p.tracer.Start(ctx, tracing.SpanSSR, trace.WithAttributes(
		attribute.String(tracing.AttrFramework, string(comp.Framework)),
	))
	defer span.End()
	if p.ssrTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.ssrTimeout)
		defer cancel()
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("renderer panicked: %v", rec)
		}
		if err != nil {
			tracing.Fail(span, err, "")
		}
	}()
	return r.RenderToString(ctx, comp, schema.DeepCopy(props).(map[string]any))
}

func (p *Pipeline) sent(tr *tracker, framework catalog.Framework) *Artifact {
	tr.to(StateSent)
	p.metrics.ObserveRender(string(framework), string(tr.art.Mode), string(StateSent))
	return tr.art
}

func (p *Pipeline) fail(tr *tracker, framework catalog.Framework, err error) error {
	tr.to(StateFailed)
	code := string(catalog.CodeOf(err))
	tracing.Fail(tr.span, err, code)
	p.metrics.ObserveRender(string(framework), string(tr.art.Mode), string(StateFailed))
	log.Debug(log.CatRender, "Render failed", "target", tr.label, "code", code, "error", err.Error())
	return &FailedError{States: tr.art.States, Err: err}
}

// FailedError carries the states a failed render went through.
type FailedError struct {
	States []State
	Err    error
}

func (e *FailedError) Error() string { return e.Err.Error() }

func (e *FailedError) Unwrap() error { return e.Err }

// tracker records state transitions on the artifact and the span.
type tracker struct {
	span  trace.Span
	art   *Artifact
	label string
}

func (t *tracker) to(s State) {
	t.art.States = append(t.art.States, s)
	t.span.AddEvent(tracing.EventStateTransition, trace.WithAttributes(attribute.String(tracing.AttrRenderState, string(s))))
	log.Debug(log.CatRender, "Render state", "target", t.label, "state", string(s))
}
