// Package app wires configuration into the registries, resolver, render
// pipeline and HTTP boundary, and owns their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/zjrosen/intentui/internal/config"
	"github.com/zjrosen/intentui/internal/dataprovider"
	"github.com/zjrosen/intentui/internal/domain/catalog"
	"github.com/zjrosen/intentui/internal/flags"
	"github.com/zjrosen/intentui/internal/log"
	"github.com/zjrosen/intentui/internal/metrics"
	"github.com/zjrosen/intentui/internal/registry"
	"github.com/zjrosen/intentui/internal/render"
	"github.com/zjrosen/intentui/internal/resolver"
	"github.com/zjrosen/intentui/internal/server"
	"github.com/zjrosen/intentui/internal/source"
	"github.com/zjrosen/intentui/internal/tracing"
)

// App is the assembled service.
type App struct {
	Config     config.Config
	Flags      *flags.Registry
	Metrics    *metrics.Metrics
	Tracing    *tracing.Provider
	Intents    *registry.IntentRegistry
	Components *registry.ComponentRegistry
	Resolver   *resolver.Resolver
	Pipeline   *render.Pipeline
	Hub        *server.Hub
	Handler    *server.Handler

	provider dataprovider.DataProvider

	mu      sync.Mutex
	cancel  context.CancelFunc
	hubDone chan struct{}
}

// Option customises New.
type Option func(*settings)

type settings struct {
	version         string
	intentSource    source.IntentSource
	componentSource source.ComponentSource
	provider        dataprovider.DataProvider
	ssr             map[catalog.Framework]render.SSRClient
	skipInitialLoad bool
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(s *settings) { s.version = v }
}

// WithSources replaces the file sources named in the configuration.
func WithSources(intents source.IntentSource, components source.ComponentSource) Option {
	return func(s *settings) {
		s.intentSource = intents
		s.componentSource = components
	}
}

// WithDataProvider replaces the HTTP data provider built from configuration.
func WithDataProvider(p dataprovider.DataProvider) Option {
	return func(s *settings) { s.provider = p }
}

// WithSSRClient sets the server renderer for one framework, overriding
// render.ssr_endpoints.
func WithSSRClient(f catalog.Framework, c render.SSRClient) Option {
	return func(s *settings) {
		if s.ssr == nil {
			s.ssr = make(map[catalog.Framework]render.SSRClient)
		}
		s.ssr[f] = c
	}
}

// WithoutInitialLoad leaves both registries empty until Reload is called.
func WithoutInitialLoad() Option {
	return func(s *settings) { s.skipInitialLoad = true }
}

// New builds every component from cfg and loads the catalogs, components first.
// The returned App is not yet watching or serving; see Start and Serve.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := settings{version: "dev"}
	for _, opt := range opts {
		opt(&s)
	}

	tp, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("creating tracing provider: %w", err)
	}

	a := &App{
		Config:  cfg,
		Flags:   flags.New(cfg.Flags),
		Metrics: metrics.New(),
		Tracing: tp,
	}

	if s.intentSource == nil {
		s.intentSource = source.NewFiles(cfg.Sources.Intents)
	}
	if s.componentSource == nil {
		s.componentSource = source.NewFiles(cfg.Sources.Components)
	}
	a.Intents = registry.NewIntentRegistry(s.intentSource, registry.WithMetrics(a.Metrics))
	a.Components = registry.NewComponentRegistry(s.componentSource, registry.WithMetrics(a.Metrics))

	a.provider = s.provider
	if a.provider == nil && cfg.DataProvider.URL != "" {
		httpProvider, err := dataprovider.NewHTTP(dataprovider.HTTPConfig{
			BaseURL:     cfg.DataProvider.URL,
			Timeout:     cfg.DataProvider.Timeout,
			MaxAttempts: cfg.DataProvider.MaxAttempts,
			Headers:     cfg.DataProvider.Headers,
		})
		if err != nil {
			return nil, catalog.WrapError(catalog.ErrConfiguration, err, "data provider")
		}
		a.provider = httpProvider
	}

	resolverOpts := []resolver.Option{
		resolver.WithDefaultTTL(cfg.Resolver.DefaultTTL),
		resolver.WithTracer(tp.Tracer()),
		resolver.WithMetrics(a.Metrics),
	}
	if a.provider != nil {
		resolverOpts = append(resolverOpts, resolver.WithDataProvider(a.provider))
	}
	if a.Flags.Enabled(flags.FlagResolutionCache) {
		resolverOpts = append(resolverOpts, resolver.WithCache(cfg.Resolver.CacheCleanup))
	}
	a.Resolver = resolver.New(a.Intents, a.Components, resolverOpts...)

	renderers := render.DefaultRegistry(ssrClients(cfg.Render, s.ssr),
		render.WithPage(render.PageOptions{Title: cfg.Render.Title, Lang: cfg.Render.Lang}))
	a.Pipeline = render.NewPipeline(a.Resolver, a.Components, renderers,
		render.WithFlags(a.Flags),
		render.WithSSRTimeout(cfg.Render.SSRTimeout),
		render.WithDefaultTTL(cfg.Resolver.DefaultTTL),
		render.WithPipelineTracer(tp.Tracer()),
		render.WithPipelineMetrics(a.Metrics),
	)

	mode, err := render.ParseMode(cfg.Server.DefaultMode, render.ModeJSON)
	if err != nil {
		return nil, catalog.WrapError(catalog.ErrConfiguration, err, "server.default_mode")
	}
	a.Hub = server.NewHub(a.Metrics)
	crawler, _ := a.provider.(dataprovider.CrawlerProvider)
	a.Handler = server.NewHandler(server.HandlerConfig{
		Intents:     a.Intents,
		Components:  a.Components,
		Resolver:    a.Resolver,
		Pipeline:    a.Pipeline,
		Crawler:     crawler,
		Hub:         a.Hub,
		Flags:       a.Flags,
		Metrics:     a.Metrics,
		Tracer:      tp.Tracer(),
		DefaultMode: mode,
		Version:     s.version,
	})

	if !s.skipInitialLoad {
		if err := a.Reload(ctx); err != nil {
			_ = tp.Shutdown(context.Background())
			return nil, err
		}
	}
	return a, nil
}

func ssrClients(cfg config.RenderConfig, overrides map[catalog.Framework]render.SSRClient) map[catalog.Framework]render.SSRClient {
	clients := make(map[catalog.Framework]render.SSRClient, len(cfg.SSREndpoints)+len(overrides))
	for name, endpoint := range cfg.SSREndpoints {
		clients[catalog.Framework(name)] = render.NewHTTPSSR(endpoint, cfg.SSRTimeout)
	}
	for f, c := range overrides {
		clients[f] = c
	}
	return clients
}

// Reload re-reads both sources. Components load first so a newly added intent
// never points at a component that is still missing.
func (a *App) Reload(ctx context.Context) error {
	if err := a.Components.Reload(ctx); err != nil {
		return fmt.Errorf("loading components: %w", err)
	}
	if err := a.Intents.Reload(ctx); err != nil {
		return fmt.Errorf("loading intents: %w", err)
	}
	for _, err := range a.Components.Rejections() {
		log.Warn(log.CatComponent, "Component rejected", "error", err.Error())
	}
	log.Info(log.CatConfig, "Catalog loaded", "intents", a.Intents.Len(), "components", a.Components.Len())
	return nil
}

// Start begins background work: the live reload hub, cache invalidation on
// registry changes and, when sources.watch is set, file watching.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return errors.New("app already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	done := make(chan struct{})
	a.hubDone = done
	go func() {
		defer close(done)
		a.Hub.Run(runCtx, a.Intents, a.Components)
	}()
	a.Resolver.WatchChanges(runCtx, a.Intents, a.Components)

	if a.Config.Sources.Watch {
		if err := a.Components.EnableFileWatching(a.Config.Sources.Debounce); err != nil {
			return fmt.Errorf("watching components: %w", err)
		}
		if err := a.Intents.EnableFileWatching(a.Config.Sources.Debounce); err != nil {
			return fmt.Errorf("watching intents: %w", err)
		}
	}
	return nil
}

// Serve listens on server.addr until ctx is cancelled or the server fails,
// then shuts the listener down within server.shutdown_timeout.
func (a *App) Serve(ctx context.Context, ready func(port int)) error {
	srv, err := server.NewServer(server.ServerConfig{
		Addr:         a.Config.Server.Addr,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}, a.Handler)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()
	if ready != nil {
		ready(srv.Port())
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.ErrorErr(log.CatHTTP, "Error stopping HTTP server", err)
		return fmt.Errorf("stopping server: %w", err)
	}
	return nil
}

// Close stops background work and flushes traces. It is safe to call more than once.
func (a *App) Close(ctx context.Context) error {
	a.mu.Lock()
	cancel, done := a.cancel, a.hubDone
	a.cancel, a.hubDone = nil, nil
	a.mu.Unlock()

	var errs []error
	if err := a.Intents.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing intents: %w", err))
	}
	if err := a.Components.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing components: %w", err))
	}
	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
		}
	}
	if err := a.Tracing.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutting down tracing: %w", err))
	}
	return errors.Join(errs...)
}
