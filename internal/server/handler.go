// Package server exposes the resolver and render pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/intentui/internal/dataprovider"
	"github.com/zjrosen/intentui/internal/domain/catalog"
	"github.com/zjrosen/intentui/internal/flags"
	"github.com/zjrosen/intentui/internal/metrics"
	"github.com/zjrosen/intentui/internal/registry"
	"github.com/zjrosen/intentui/internal/render"
	"github.com/zjrosen/intentui/internal/resolver"
	"github.com/zjrosen/intentui/internal/tracing"
)

const maxBodyBytes = 1 << 20

// IntentResolver resolves intent requests.
type IntentResolver interface {
	ResolveIntent(ctx context.Context, req catalog.IntentRequest, opts resolver.Options) (*catalog.ResolutionResult, error)
}

// Renderer runs the render pipeline.
type Renderer interface {
	Render(ctx context.Context, req render.Request) (*render.Artifact, error)
	RenderComponent(ctx context.Context, name string, props map[string]any, mode render.Mode) (*render.Artifact, error)
}

// HandlerConfig configures the HTTP handler.
type HandlerConfig struct {
	Intents    *registry.IntentRegistry
	Components *registry.ComponentRegistry
	Resolver   IntentResolver
	Pipeline   Renderer
	// Crawler serves /crawler/content. When nil the listing is built from
	// crawlable intents.
	Crawler dataprovider.CrawlerProvider
	// Hub serves /ws/registry when the live-reload flag is on.
	Hub         *Hub
	Flags       *flags.Registry
	Metrics     *metrics.Metrics
	Tracer      trace.Tracer
	DefaultMode render.Mode
	// Version is reported by /health.
	Version string
}

// Handler provides the HTTP endpoints.
type Handler struct {
	cfg HandlerConfig
	now func() time.Time
}

// NewHandler creates a handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.DefaultMode == "" {
		cfg.DefaultMode = render.ModeJSON
	}
	return &Handler{cfg: cfg, now: time.Now}
}

// Routes returns an http.Handler with all routes and middleware registered.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /intent/resolve", h.Resolve)
	mux.HandleFunc("POST /render", h.Render)
	mux.HandleFunc("GET /components/{name}/render", h.RenderComponent)

	mux.HandleFunc("GET /intents", h.ListIntents)
	mux.HandleFunc("GET /intents/{name}", h.GetIntent)
	mux.HandleFunc("GET /components", h.ListComponents)
	mux.HandleFunc("GET /components/{name}", h.GetComponent)
	mux.HandleFunc("GET /stats", h.Stats)
	mux.HandleFunc("POST /admin/reload", h.Reload)
	mux.HandleFunc("GET /crawler/content", h.CrawlerContent)
	mux.HandleFunc("GET /ws/registry", h.LiveReload)
	mux.HandleFunc("GET /health", h.Health)
	if h.cfg.Metrics != nil {
		mux.Handle("GET /metrics", h.cfg.Metrics.Handler())
	}

	var handler http.Handler = withMetrics(h.cfg.Metrics, mux)
	if h.cfg.Tracer != nil {
		handler = tracing.Middleware(h.cfg.Tracer, handler)
	}
	return withRequestID(handler)
}

// ResolveRequest is the body of /intent/resolve and /render.
type ResolveRequest struct {
	Intent  catalog.IntentRequest `json:"intent"`
	Options RequestOptions        `json:"options"`
}

// RequestOptions are resolver options plus the render mode.
type RequestOptions struct {
	resolver.Options
	Mode string `json:"mode,omitempty"`
}

// Resolve handles POST /intent/resolve.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeResolve(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.checkIntentOrigin(r, req.Intent.Name); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.cfg.Resolver.ResolveIntent(r.Context(), req.Intent, req.Options.Options)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// Render handles POST /render.
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeResolve(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	mode, err := render.ParseMode(req.Options.Mode, h.cfg.DefaultMode)
	if err != nil {
		h.writeError(w, r, invalidRequest(err.Error(), nil))
		return
	}
	if err := h.checkIntentOrigin(r, req.Intent.Name); err != nil {
		h.writeError(w, r, err)
		return
	}
	art, err := h.cfg.Pipeline.Render(r.Context(), render.Request{Intent: req.Intent, Options: req.Options.Options, Mode: mode})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeArtifact(w, art)
}

// RenderComponent handles GET /components/{name}/render?props=<json>&mode=.
func (h *Handler) RenderComponent(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	mode, err := render.ParseMode(r.URL.Query().Get("mode"), render.ModeHTML)
	if err != nil {
		h.writeError(w, r, invalidRequest(err.Error(), nil))
		return
	}
	var props map[string]any
	if raw := r.URL.Query().Get("props"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &props); err != nil {
			h.writeError(w, r, invalidRequest("props must be a JSON object", err))
			return
		}
	}
	if err := h.checkOrigin(r, name); err != nil {
		h.writeError(w, r, err)
		return
	}
	art, err := h.cfg.Pipeline.RenderComponent(r.Context(), name, props, mode)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeArtifact(w, art)
}

func (h *Handler) writeArtifact(w http.ResponseWriter, art *render.Artifact) {
	if art.Result != nil && art.Result.TTL > 0 {
		w.Header().Set("Cache-Control", "private, max-age="+strconv.Itoa(art.Result.TTL))
	}
	if art.Mode == render.ModeHTML {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, art.HTML)
		return
	}
	h.writeJSON(w, http.StatusOK, art.JSON)
}

func (h *Handler) decodeResolve(r *http.Request) (ResolveRequest, error) {
	var req ResolveRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		return req, invalidRequest("request body must be {intent:{name,parameters},options?}", err)
	}
	if req.Intent.Name == "" {
		return req, invalidRequest("intent.name is required", nil)
	}
	return req, nil
}

// checkIntentOrigin applies the origin check to the intent's component. Unknown
// intents and missing components pass through so the resolver reports them.
func (h *Handler) checkIntentOrigin(r *http.Request, intentName string) error {
	if r.Header.Get("Origin") == "" {
		return nil
	}
	intent, ok := h.cfg.Intents.Get(intentName)
	if !ok {
		return nil
	}
	return h.checkOrigin(r, intent.Component)
}

func (h *Handler) checkOrigin(r *http.Request, componentName string) error {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return nil
	}
	if _, ok := h.cfg.Components.Get(componentName); !ok {
		return nil
	}
	if !h.cfg.Components.IsOriginAllowed(componentName, origin) {
		return catalog.NewError(catalog.ErrOriginNotAllowed,
			map[string]any{"origin": origin, "component": componentName},
			"origin %q may not request component %q", origin, componentName)
	}
	return nil
}

// ListIntents handles GET /intents?crawlable=&deprecated=&component=.
func (h *Handler) ListIntents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	criteria := catalog.IntentCriteria{Component: q.Get("component")}
	var err error
	if criteria.Crawlable, err = boolQuery(q.Get("crawlable")); err != nil {
		h.writeError(w, r, invalidRequest("crawlable must be a boolean", err))
		return
	}
	if criteria.Deprecated, err = boolQuery(q.Get("deprecated")); err != nil {
		h.writeError(w, r, invalidRequest("deprecated must be a boolean", err))
		return
	}
	intents := h.cfg.Intents.FindByCriteria(criteria)
	h.writeJSON(w, http.StatusOK, map[string]any{"intents": intents, "total": len(intents)})
}

// GetIntent handles GET /intents/{name}.
func (h *Handler) GetIntent(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	intent, ok := h.cfg.Intents.Get(name)
	if !ok {
		h.writeError(w, r, catalog.NewError(catalog.ErrIntentNotSupported, map[string]any{"intent": name}, "intent %q is not registered", name))
		return
	}
	h.writeJSON(w, http.StatusOK, intent)
}

// ListComponents handles GET /components?framework=&deprecated=&sandboxed=.
func (h *Handler) ListComponents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	criteria := catalog.ComponentCriteria{Framework: catalog.Framework(q.Get("framework"))}
	var err error
	if criteria.Deprecated, err = boolQuery(q.Get("deprecated")); err != nil {
		h.writeError(w, r, invalidRequest("deprecated must be a boolean", err))
		return
	}
	if criteria.Sandboxed, err = boolQuery(q.Get("sandboxed")); err != nil {
		h.writeError(w, r, invalidRequest("sandboxed must be a boolean", err))
		return
	}
	components := h.cfg.Components.FindByCriteria(criteria)
	h.writeJSON(w, http.StatusOK, map[string]any{"components": components, "total": len(components)})
}

// GetComponent handles GET /components/{name}. A missing component is the
// caller's lookup miss here, so it answers 404.
func (h *Handler) GetComponent(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	comp, ok := h.cfg.Components.Get(name)
	if !ok {
		h.writeErrorStatus(w, r, http.StatusNotFound,
			catalog.NewError(catalog.ErrComponentNotFound, map[string]any{"component": name}, "component %q is not registered", name))
		return
	}
	h.writeJSON(w, http.StatusOK, comp)
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Intents    catalog.IntentStats    `json:"intents"`
	Components catalog.ComponentStats `json:"components"`
}

// Stats handles GET /stats.
func (h *Handler) Stats(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, StatsResponse{
		Intents:    h.cfg.Intents.Stats(),
		Components: h.cfg.Components.Stats(),
	})
}

// Reload handles POST /admin/reload. Components load first so intents never
// reference a catalog older than themselves.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.cfg.Components.Reload(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.cfg.Intents.Reload(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	rejected := make([]string, 0)
	for _, err := range h.cfg.Components.Rejections() {
		rejected = append(rejected, err.Error())
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"intents":    h.cfg.Intents.Len(),
		"components": h.cfg.Components.Len(),
		"rejected":   rejected,
	})
}

// CrawlerContent handles GET /crawler/content?page=&limit=&intent=.
func (h *Handler) CrawlerContent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := dataprovider.CrawlerOptions{Intent: q.Get("intent")}
	var err error
	if opts.Page, err = intQuery(q.Get("page")); err != nil {
		h.writeError(w, r, invalidRequest("page must be an integer", err))
		return
	}
	if opts.Limit, err = intQuery(q.Get("limit")); err != nil {
		h.writeError(w, r, invalidRequest("limit must be an integer", err))
		return
	}
	opts = opts.Normalize()

	if h.cfg.Crawler != nil {
		content, err := h.cfg.Crawler.GetCrawlerContent(r.Context(), opts)
		if err != nil {
			h.writeError(w, r, catalog.WrapError(catalog.ErrDataProvider, err, "crawler content"))
			return
		}
		h.writeJSON(w, http.StatusOK, content)
		return
	}

	yes, no := true, false
	var items []dataprovider.ContentItem
	for _, intent := range h.cfg.Intents.FindByCriteria(catalog.IntentCriteria{Crawlable: &yes, Deprecated: &no}) {
		if opts.Intent != "" && intent.Name != opts.Intent {
			continue
		}
		items = append(items, dataprovider.ContentItem{
			Intent: intent.Name,
			Title:  intent.Description,
			URL:    "/intents/" + intent.Name,
		})
	}
	h.writeJSON(w, http.StatusOK, dataprovider.Paginate(items, opts, h.now().UTC()))
}

// LiveReload handles GET /ws/registry.
func (h *Handler) LiveReload(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Hub == nil || !h.cfg.Flags.Enabled(flags.FlagLiveReload) {
		h.writeErrorStatus(w, r, http.StatusNotFound, invalidRequest("live reload is disabled", nil))
		return
	}
	h.cfg.Hub.ServeHTTP(w, r)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string    `json:"status"`
	Version    string    `json:"version,omitempty"`
	Intents    int       `json:"intents"`
	Components int       `json:"components"`
	Time       time.Time `json:"time"`
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{
		Status:     "ok",
		Version:    h.cfg.Version,
		Intents:    h.cfg.Intents.Len(),
		Components: h.cfg.Components.Len(),
		Time:       h.now().UTC(),
	})
}

func boolQuery(raw string) (*bool, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func intQuery(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", raw, err)
	}
	return v, nil
}
