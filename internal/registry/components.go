package registry

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/zjrosen/intentui/internal/domain/catalog"
	"github.com/zjrosen/intentui/internal/log"
	"github.com/zjrosen/intentui/internal/pubsub"
	"github.com/zjrosen/intentui/internal/source"
)

// ComponentRegistry serves the component catalog and owns the per-component
// origin allow-lists.
type ComponentRegistry struct {
	source   source.ComponentSource
	store    *store[*catalog.ComponentDefinition]
	broker   *pubsub.Broker[catalog.Change]
	reloadMu sync.Mutex
	watch    fileWatch
	opts     options
}

// NewComponentRegistry creates an empty registry backed by src. src may be nil.
func NewComponentRegistry(src source.ComponentSource, opts ...Option) *ComponentRegistry {
	return &ComponentRegistry{
		source: src,
		store:  newStore[*catalog.ComponentDefinition](),
		broker: pubsub.NewBroker[catalog.Change](),
		opts:   buildOptions(opts),
	}
}

// Reload re-reads the source and atomically replaces the catalog. An entry that
// fails validation is skipped and logged; the rest of the catalog loads. A source
// that cannot be read or parsed fails the reload and keeps the previous catalog.
func (r *ComponentRegistry) Reload(ctx context.Context) error {
	if r.source == nil {
		return catalog.NewError(catalog.ErrConfiguration, nil, "component registry has no source")
	}
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	start := time.Now()
	defs, err := r.source.LoadComponents(ctx)
	r.opts.metrics.ObserveReload(NameComponents, err)
	if err != nil {
		return fmt.Errorf("reload components: %w", err)
	}
	snap := r.install(defs)
	log.Info(log.CatComponent, "Component catalog loaded",
		"count", len(snap.names), "rejected", len(snap.rejected), "duration", time.Since(start))
	return nil
}

// Replace installs defs as the whole catalog, with the same checks as Reload.
func (r *ComponentRegistry) Replace(defs map[string]*catalog.ComponentDefinition) {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()
	r.install(defs)
}

func (r *ComponentRegistry) install(defs map[string]*catalog.ComponentDefinition) *snapshot[*catalog.ComponentDefinition] {
	items := make(map[string]*catalog.ComponentDefinition, len(defs))
	var rejected []error
	for _, key := range slices.Sorted(maps.Keys(defs)) {
		def := defs[key]
		if err := checkEntry(key, def); err != nil {
			log.Warn(log.CatComponent, "Skipping invalid component", "name", key, "error", err.Error())
			rejected = append(rejected, err)
			continue
		}
		items[key] = def.Clone()
	}

	snap := r.store.replace(items, rejected)
	r.opts.metrics.SetCatalogSize(NameComponents, len(snap.names))
	r.broker.Publish(pubsub.ReloadedEvent, catalog.Change{
		Registry: NameComponents,
		Kind:     catalog.ChangeReloaded,
		Names:    slices.Clone(snap.names),
		Total:    len(snap.names),
	})
	return snap
}

func checkEntry(key string, def *catalog.ComponentDefinition) error {
	if def == nil {
		return catalog.NewError(catalog.ErrComponentValidation, []string{"definition is empty"}, "component %q: definition is empty", key)
	}
	if def.Name != key {
		return catalog.NewError(catalog.ErrComponentValidation, []string{"name does not match key"},
			"component %q: name %q does not match its key", key, def.Name)
	}
	return def.Validate()
}

// Rejections returns the validation errors of entries skipped by the last load.
func (r *ComponentRegistry) Rejections() []error {
	return slices.Clone(r.store.view().rejected)
}

// GetAll returns every component sorted by name.
func (r *ComponentRegistry) GetAll() []*catalog.ComponentDefinition {
	snap := r.store.view()
	out := make([]*catalog.ComponentDefinition, 0, len(snap.names))
	for _, name := range snap.names {
		out = append(out, snap.items[name].Clone())
	}
	return out
}

// Get returns a copy of the named component.
func (r *ComponentRegistry) Get(name string) (*catalog.ComponentDefinition, bool) {
	def, ok := r.store.view().items[name]
	if !ok {
		return nil, false
	}
	return def.Clone(), true
}

// Len returns the number of components.
func (r *ComponentRegistry) Len() int {
	return len(r.store.view().names)
}

// Generation increases every time a new catalog is published. It moves before
// the change event is delivered to subscribers.
func (r *ComponentRegistry) Generation() uint64 {
	return r.store.generation.Load()
}

// Add validates and inserts or overwrites one component.
func (r *ComponentRegistry) Add(def *catalog.ComponentDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	stored := def.Clone()
	snap, _ := r.store.update(func(items map[string]*catalog.ComponentDefinition) bool {
		items[stored.Name] = stored
		return true
	})
	r.opts.metrics.SetCatalogSize(NameComponents, len(snap.names))
	r.broker.Publish(pubsub.AddedEvent, catalog.Change{
		Registry: NameComponents,
		Kind:     catalog.ChangeAdded,
		Names:    []string{stored.Name},
		Total:    len(snap.names),
	})
	log.Debug(log.CatComponent, "Component added", "name", stored.Name, "framework", stored.Framework)
	return nil
}

// Remove deletes the named component and reports whether it existed.
func (r *ComponentRegistry) Remove(name string) bool {
	snap, removed := r.store.update(func(items map[string]*catalog.ComponentDefinition) bool {
		if _, ok := items[name]; !ok {
			return false
		}
		delete(items, name)
		return true
	})
	if !removed {
		return false
	}
	r.opts.metrics.SetCatalogSize(NameComponents, len(snap.names))
	r.broker.Publish(pubsub.RemovedEvent, catalog.Change{
		Registry: NameComponents,
		Kind:     catalog.ChangeRemoved,
		Names:    []string{name},
		Total:    len(snap.names),
	})
	log.Debug(log.CatComponent, "Component removed", "name", name)
	return true
}

// IsOriginAllowed reports whether origin may request the named component. Unknown
// components allow nothing.
func (r *ComponentRegistry) IsOriginAllowed(name, origin string) bool {
	def, ok := r.store.view().items[name]
	return ok && def.IsOriginAllowed(origin)
}

// FindByCriteria returns the components matching c, sorted by name.
func (r *ComponentRegistry) FindByCriteria(c catalog.ComponentCriteria) []*catalog.ComponentDefinition {
	snap := r.store.view()
	var out []*catalog.ComponentDefinition
	for _, name := range snap.names {
		if def := snap.items[name]; c.Matches(def) {
			out = append(out, def.Clone())
		}
	}
	return out
}

// Stats summarises the catalog. The average bundle size counts only components
// that declare one.
func (r *ComponentRegistry) Stats() catalog.ComponentStats {
	snap := r.store.view()
	stats := catalog.ComponentStats{
		Total:       len(snap.names),
		ByFramework: make(map[catalog.Framework]int),
		Rejected:    len(snap.rejected),
	}
	var sized int
	var total int64
	for _, def := range snap.items {
		stats.ByFramework[def.Framework]++
		if def.Deprecated {
			stats.Deprecated++
		}
		if def.Sandboxed() {
			stats.Sandboxed++
		}
		if def.BundleSize > 0 {
			sized++
			total += def.BundleSize
		}
	}
	if sized > 0 {
		stats.AverageBundleSize = float64(total) / float64(sized)
	}
	return stats
}

// Subscribe streams catalog changes until ctx is cancelled.
func (r *ComponentRegistry) Subscribe(ctx context.Context) <-chan pubsub.Event[catalog.Change] {
	return r.broker.Subscribe(ctx)
}

// EnableFileWatching reloads the catalog, debounced, whenever a source file changes.
func (r *ComponentRegistry) EnableFileWatching(debounce time.Duration) error {
	return r.watch.enable(r.source, debounce, log.CatComponent, r.Reload)
}

// DisableFileWatching stops watching. It is a no-op when watching is off.
func (r *ComponentRegistry) DisableFileWatching() error {
	return r.watch.disable()
}

// Watching reports whether file watching is enabled.
func (r *ComponentRegistry) Watching() bool {
	return r.watch.active()
}

// Close stops file watching and closes every subscription.
func (r *ComponentRegistry) Close() error {
	err := r.DisableFileWatching()
	r.broker.Close()
	return err
}
