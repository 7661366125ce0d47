// Package resolver turns an intent request into a validated component reference
// and prop set.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/intentui/internal/cachemanager"
	"github.com/zjrosen/intentui/internal/dataprovider"
	"github.com/zjrosen/intentui/internal/domain/catalog"
	"github.com/zjrosen/intentui/internal/domain/schema"
	"github.com/zjrosen/intentui/internal/log"
	"github.com/zjrosen/intentui/internal/metrics"
	"github.com/zjrosen/intentui/internal/pubsub"
	"github.com/zjrosen/intentui/internal/tracing"
)

// IntentLookup finds intent definitions.
type IntentLookup interface {
	Get(name string) (*catalog.IntentDefinition, bool)
}

// ComponentLookup finds component definitions.
type ComponentLookup interface {
	Get(name string) (*catalog.ComponentDefinition, bool)
}

// Versioned is implemented by lookups that count published catalogs.
type Versioned interface {
	Generation() uint64
}

// ChangeSource publishes catalog changes.
type ChangeSource interface {
	Subscribe(ctx context.Context) <-chan pubsub.Event[catalog.Change]
}

type cacheKey string

type resolveInput struct {
	req  catalog.IntentRequest
	opts Options
}

// Resolver resolves intents against the registries.
type Resolver struct {
	intents      IntentLookup
	components   ComponentLookup
	provider     dataprovider.DataProvider
	defaultTTL   int
	cacheEnabled bool
	cacheCleanup time.Duration
	cache        *cachemanager.ReadThroughCache[cacheKey, *catalog.ResolutionResult, resolveInput]
	tracer       trace.Tracer
	metrics      *metrics.Metrics
	now          func() time.Time
}

// New creates a resolver.
func New(intents IntentLookup, components ComponentLookup, opts ...Option) *Resolver {
	r := &Resolver{
		intents:    intents,
		components: components,
		defaultTTL: DefaultTTL,
		tracer:     noop.NewTracerProvider().Tracer("resolver"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cacheEnabled {
		cleanup := r.cacheCleanup
		if cleanup <= 0 {
			cleanup = cachemanager.DefaultCleanupInterval
		}
		manager := cachemanager.NewInMemoryCacheManager[cacheKey, *catalog.ResolutionResult](
			"resolutions", time.Duration(r.defaultTTL)*time.Second, cleanup)
		r.cache = cachemanager.NewReadThroughCache(manager, r.resolveInput, func(res *catalog.ResolutionResult) time.Duration {
			return time.Duration(res.TTL) * time.Second
		})
		r.cache.OnLookup(r.metrics.CacheLookup)
		r.cache.TrackGeneration(r.generation)
	}
	return r
}

// ResolveIntent runs the resolution steps: intent lookup, parameter validation,
// defaults, component lookup, data provider merge and TTL computation.
func (r *Resolver) ResolveIntent(ctx context.Context, req catalog.IntentRequest, opts Options) (*catalog.ResolutionResult, error) {
	ctx, span := r.tracer.Start(ctx, tracing.SpanResolveIntent, trace.WithAttributes(
		attribute.String(tracing.AttrIntentName, req.Name),
	))
	defer span.End()
	start := r.now()

	var (
		res *catalog.ResolutionResult
		hit bool
		err error
	)
	if r.cacheable(opts) {
		var key cacheKey
		key, err = keyFor(r.generation(), req, opts)
		if err == nil {
			res, hit, err = r.cache.Get(ctx, key, resolveInput{req: req, opts: opts}, opts.NoCache)
			if err == nil {
				res = cloneResult(res)
			}
		}
	} else {
		res, err = r.resolve(ctx, req, opts)
	}

	code := ""
	if err != nil {
		code = string(catalog.CodeOf(err))
		tracing.Fail(span, err, code)
		log.Debug(log.CatResolver, "Resolution failed", "intent", req.Name, "code", code, "error", err.Error())
	} else {
		span.SetAttributes(
			attribute.String(tracing.AttrComponentName, res.Component.Name),
			attribute.Bool(tracing.AttrCacheHit, hit),
			attribute.Int(tracing.AttrTTL, res.TTL),
		)
		log.Debug(log.CatResolver, "Resolved intent", "intent", req.Name, "component", res.Component.Name, "cache_hit", hit)
	}
	r.metrics.ObserveResolution(req.Name, code, r.now().Sub(start))
	return res, err
}

func (r *Resolver) cacheable(opts Options) bool {
	if r.cache == nil {
		return false
	}
	return r.provider == nil || opts.Cache
}

func (r *Resolver) resolveInput(ctx context.Context, in resolveInput) (*catalog.ResolutionResult, error) {
	return r.resolve(ctx, in.req, in.opts)
}

func (r *Resolver) resolve(ctx context.Context, req catalog.IntentRequest, opts Options) (*catalog.ResolutionResult, error) {
	intent, ok := r.intents.Get(req.Name)
	if !ok {
		return nil, catalog.NewError(catalog.ErrIntentNotSupported, map[string]any{"intent": req.Name},
			"intent %q is not registered", req.Name)
	}

	params, err := r.ValidateParameters(intent, req.Parameters)
	if err != nil {
		return nil, err
	}

	component, ok := r.components.Get(intent.Component)
	if !ok {
		log.Error(log.CatResolver, "Intent references a missing component", "intent", intent.Name, "component", intent.Component)
		return nil, catalog.NewError(catalog.ErrComponentNotFound,
			map[string]any{"intent": intent.Name, "component": intent.Component},
			"component %q for intent %q is not registered", intent.Component, intent.Name)
	}

	if intent.Deprecated {
		log.Warn(log.CatResolver, "Resolving deprecated intent", "intent", intent.Name)
	}
	if component.Deprecated {
		log.Warn(log.CatResolver, "Resolving deprecated component", "intent", intent.Name, "component", component.Name)
	}

	var data map[string]any
	if r.provider != nil {
		data, err = r.fetchData(ctx, intent, component, params, opts)
		if err != nil {
			return nil, err
		}
	}

	return &catalog.ResolutionResult{
		Record: catalog.ResolutionRecord{
			ModuleURL:  component.RemoteURL,
			ExportName: component.ExportName,
			Props:      mergeProps(data, params),
		},
		Component:  component,
		TTL:        r.ttlFor(component),
		Intent:     intent,
		Parameters: params,
		Data:       data,
		ResolvedAt: r.now(),
	}, nil
}

func (r *Resolver) fetchData(ctx context.Context, intent *catalog.IntentDefinition, component *catalog.ComponentDefinition, params map[string]any, opts Options) (map[string]any, error) {
	ctx, span := r.tracer.Start(ctx, tracing.SpanDataProvider, trace.WithAttributes(
		attribute.String(tracing.AttrIntentName, intent.Name),
	))
	defer span.End()

	data, err := r.provider.ResolveIntentData(ctx, dataprovider.IntentDataRequest{
		Intent:     intent.Name,
		Component:  component.Name,
		Parameters: schema.DeepCopy(params).(map[string]any),
		Context:    opts.Context,
	})
	if err != nil {
		wrapped := catalog.WrapError(catalog.ErrDataProvider, err, "intent %q", intent.Name)
		tracing.Fail(span, wrapped, string(catalog.CodeDataProvider))
		log.ErrorErr(log.CatProvider, "Data provider failed", err, "intent", intent.Name)
		return nil, wrapped
	}
	return data, nil
}

// ValidateParameters checks params against the intent's schema, collecting every
// violation, then fills declared defaults. The input map is not modified.
// Values are never coerced: "5" does not satisfy a number.
func (r *Resolver) ValidateParameters(intent *catalog.IntentDefinition, params map[string]any) (map[string]any, error) {
	if params == nil {
		params = map[string]any{}
	}
	if violations := intent.Parameters.ValidateObject(params); len(violations) > 0 {
		msgs := make([]string, 0, len(violations))
		for _, v := range violations {
			msgs = append(msgs, v.Message)
		}
		return nil, catalog.NewError(catalog.ErrParameterValidation, violations,
			"intent %q: %s", intent.Name, strings.Join(msgs, "; "))
	}
	if intent.Parameters == nil {
		return schema.DeepCopy(params).(map[string]any), nil
	}
	return intent.Parameters.ApplyDefaults(params), nil
}

func (r *Resolver) ttlFor(c *catalog.ComponentDefinition) int {
	if ttl := c.CacheTTL(); ttl > 0 {
		return ttl
	}
	return r.defaultTTL
}

// Invalidate drops every cached resolution.
func (r *Resolver) Invalidate(ctx context.Context) {
	if r.cache != nil {
		r.cache.Invalidate(ctx)
	}
}

// WatchChanges flushes the cache whenever any source publishes a change, until
// ctx is cancelled.
func (r *Resolver) WatchChanges(ctx context.Context, sources ...ChangeSource) {
	if r.cache == nil {
		return
	}
	for _, src := range sources {
		events := src.Subscribe(ctx)
		go func() {
			for ev := range events {
				r.Invalidate(ctx)
				log.Debug(log.CatCache, "Resolution cache flushed", "registry", ev.Payload.Registry, "kind", string(ev.Payload.Kind))
			}
		}()
	}
}

// mergeProps overlays params on data. Parameters win on key collisions.
func mergeProps(data, params map[string]any) map[string]any {
	props := make(map[string]any, len(data)+len(params))
	for k, v := range data {
		props[k] = v
	}
	for k, v := range params {
		props[k] = schema.DeepCopy(v)
	}
	return props
}

// generation identifies the catalogs a resolution reads. It changes as soon as
// either registry publishes, before the flush triggered by the change event.
func (r *Resolver) generation() uint64 {
	var gen uint64
	if v, ok := r.intents.(Versioned); ok {
		gen += v.Generation()
	}
	if v, ok := r.components.(Versioned); ok {
		gen += v.Generation()
	}
	return gen
}

// keyFor builds the cache key from the catalog generation, the intent name, the
// parameters and the provider context. encoding/json sorts map keys, so equal
// maps give equal keys.
func keyFor(gen uint64, req catalog.IntentRequest, opts Options) (cacheKey, error) {
	params, err := json.Marshal(req.Parameters)
	if err != nil {
		return "", fmt.Errorf("encode parameters: %w", err)
	}
	key := strconv.FormatUint(gen, 10) + "|" + req.Name + "|" + string(params)
	if len(opts.Context) > 0 {
		ctxJSON, err := json.Marshal(opts.Context)
		if err != nil {
			return "", fmt.Errorf("encode context: %w", err)
		}
		key += "|" + string(ctxJSON)
	}
	return cacheKey(key), nil
}

func cloneResult(res *catalog.ResolutionResult) *catalog.ResolutionResult {
	if res == nil {
		return nil
	}
	out := *res
	out.Record.Props = schema.DeepCopy(res.Record.Props).(map[string]any)
	out.Component = res.Component.Clone()
	out.Intent = res.Intent.Clone()
	if res.Parameters != nil {
		out.Parameters = schema.DeepCopy(res.Parameters).(map[string]any)
	}
	if res.Data != nil {
		out.Data = schema.DeepCopy(res.Data).(map[string]any)
	}
	return &out
}
