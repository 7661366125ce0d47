package render

import (
	"slices"
	"sync"

	"github.com/zjrosen/intentui/internal/domain/catalog"
)

// Registry maps a framework to its renderer.
type Registry struct {
	mu        sync.RWMutex
	renderers map[catalog.Framework]Renderer
}

// NewRegistry creates a registry holding rs.
func NewRegistry(rs ...Renderer) *Registry {
	r := &Registry{renderers: make(map[catalog.Framework]Renderer, len(rs))}
	for _, rr := range rs {
		r.Register(rr)
	}
	return r
}

// DefaultRegistry registers all six framework renderers. ssr supplies a server
// rendering client per framework; frameworks without one render client-side only.
func DefaultRegistry(ssr map[catalog.Framework]SSRClient, opts ...Option) *Registry {
	with := func(f catalog.Framework) []Option {
		if client, ok := ssr[f]; ok && client != nil {
			return append(slices.Clone(opts), WithSSR(client))
		}
		return opts
	}
	return NewRegistry(
		NewReact(with(catalog.FrameworkReact)...),
		NewVue(with(catalog.FrameworkVue)...),
		NewSvelte(with(catalog.FrameworkSvelte)...),
		NewAngular(with(catalog.FrameworkAngular)...),
		NewVanilla(with(catalog.FrameworkVanilla)...),
		NewWebComponent(with(catalog.FrameworkWebComponent)...),
	)
}

// Register adds or replaces the renderer for its framework.
func (r *Registry) Register(rr Renderer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renderers[rr.Framework()] = rr
}

// Unregister removes the renderer for f.
func (r *Registry) Unregister(f catalog.Framework) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.renderers, f)
}

// Get returns the renderer for f.
func (r *Registry) Get(f catalog.Framework) (Renderer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rr, ok := r.renderers[f]
	return rr, ok
}

// Frameworks returns the registered frameworks, sorted.
func (r *Registry) Frameworks() []catalog.Framework {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]catalog.Framework, 0, len(r.renderers))
	for f := range r.renderers {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}
