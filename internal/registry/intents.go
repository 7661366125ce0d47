package registry

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/zjrosen/intentui/internal/domain/catalog"
	"github.com/zjrosen/intentui/internal/log"
	"github.com/zjrosen/intentui/internal/pubsub"
	"github.com/zjrosen/intentui/internal/source"
)

// IntentRegistry serves the intent catalog.
type IntentRegistry struct {
	source   source.IntentSource
	store    *store[*catalog.IntentDefinition]
	broker   *pubsub.Broker[catalog.Change]
	reloadMu sync.Mutex
	watch    fileWatch
	opts     options
}

// NewIntentRegistry creates an empty registry backed by src. src may be nil when
// the catalog is only supplied programmatically.
func NewIntentRegistry(src source.IntentSource, opts ...Option) *IntentRegistry {
	return &IntentRegistry{
		source: src,
		store:  newStore[*catalog.IntentDefinition](),
		broker: pubsub.NewBroker[catalog.Change](),
		opts:   buildOptions(opts),
	}
}

// Reload re-reads the source and atomically replaces the catalog. Duplicate
// names or a malformed entry reject the whole load with a configuration error,
// and the previous catalog stays in place.
func (r *IntentRegistry) Reload(ctx context.Context) error {
	if r.source == nil {
		return catalog.NewError(catalog.ErrConfiguration, nil, "intent registry has no source")
	}
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	start := time.Now()
	defs, err := r.source.LoadIntents(ctx)
	if err == nil {
		err = r.install(defs)
	}
	r.opts.metrics.ObserveReload(NameIntents, err)
	if err != nil {
		return fmt.Errorf("reload intents: %w", err)
	}
	log.Info(log.CatIntent, "Intent catalog loaded", "count", len(r.store.view().items), "duration", time.Since(start))
	return nil
}

// Replace installs defs as the whole catalog, with the same checks as Reload.
func (r *IntentRegistry) Replace(defs []*catalog.IntentDefinition) error {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()
	return r.install(defs)
}

func (r *IntentRegistry) install(defs []*catalog.IntentDefinition) error {
	items, err := buildIntentCatalog(defs)
	if err != nil {
		return err
	}
	snap := r.store.replace(items, nil)
	r.opts.metrics.SetCatalogSize(NameIntents, len(snap.names))
	r.broker.Publish(pubsub.ReloadedEvent, catalog.Change{
		Registry: NameIntents,
		Kind:     catalog.ChangeReloaded,
		Names:    slices.Clone(snap.names),
		Total:    len(snap.names),
	})
	return nil
}

func buildIntentCatalog(defs []*catalog.IntentDefinition) (map[string]*catalog.IntentDefinition, error) {
	items := make(map[string]*catalog.IntentDefinition, len(defs))
	var problems []string
	for i, def := range defs {
		if err := def.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("entry %d: %v", i, err))
			continue
		}
		if _, dup := items[def.Name]; dup {
			problems = append(problems, fmt.Sprintf("entry %d: duplicate intent name %q", i, def.Name))
			continue
		}
		items[def.Name] = def.Clone()
	}
	if len(problems) > 0 {
		return nil, catalog.NewError(catalog.ErrConfiguration, problems,
			"intent catalog rejected: %s", strings.Join(problems, "; "))
	}
	return items, nil
}

// GetAll returns every intent sorted by name.
func (r *IntentRegistry) GetAll() []*catalog.IntentDefinition {
	snap := r.store.view()
	out := make([]*catalog.IntentDefinition, 0, len(snap.names))
	for _, name := range snap.names {
		out = append(out, snap.items[name].Clone())
	}
	return out
}

// Get returns a copy of the named intent.
func (r *IntentRegistry) Get(name string) (*catalog.IntentDefinition, bool) {
	def, ok := r.store.view().items[name]
	if !ok {
		return nil, false
	}
	return def.Clone(), true
}

// Len returns the number of intents.
func (r *IntentRegistry) Len() int {
	return len(r.store.view().names)
}

// Generation increases every time a new catalog is published. It moves before
// the change event is delivered to subscribers.
func (r *IntentRegistry) Generation() uint64 {
	return r.store.generation.Load()
}

// Add inserts or overwrites one intent.
func (r *IntentRegistry) Add(def *catalog.IntentDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	stored := def.Clone()
	snap, _ := r.store.update(func(items map[string]*catalog.IntentDefinition) bool {
		items[stored.Name] = stored
		return true
	})
	r.opts.metrics.SetCatalogSize(NameIntents, len(snap.names))
	r.broker.Publish(pubsub.AddedEvent, catalog.Change{
		Registry: NameIntents,
		Kind:     catalog.ChangeAdded,
		Names:    []string{stored.Name},
		Total:    len(snap.names),
	})
	log.Debug(log.CatIntent, "Intent added", "name", stored.Name)
	return nil
}

// Remove deletes the named intent and reports whether it existed.
func (r *IntentRegistry) Remove(name string) bool {
	snap, removed := r.store.update(func(items map[string]*catalog.IntentDefinition) bool {
		if _, ok := items[name]; !ok {
			return false
		}
		delete(items, name)
		return true
	})
	if !removed {
		return false
	}
	r.opts.metrics.SetCatalogSize(NameIntents, len(snap.names))
	r.broker.Publish(pubsub.RemovedEvent, catalog.Change{
		Registry: NameIntents,
		Kind:     catalog.ChangeRemoved,
		Names:    []string{name},
		Total:    len(snap.names),
	})
	log.Debug(log.CatIntent, "Intent removed", "name", name)
	return true
}

// FindByCriteria returns the intents matching c, sorted by name.
func (r *IntentRegistry) FindByCriteria(c catalog.IntentCriteria) []*catalog.IntentDefinition {
	snap := r.store.view()
	var out []*catalog.IntentDefinition
	for _, name := range snap.names {
		if def := snap.items[name]; c.Matches(def) {
			out = append(out, def.Clone())
		}
	}
	return out
}

// Stats summarises the catalog.
func (r *IntentRegistry) Stats() catalog.IntentStats {
	snap := r.store.view()
	stats := catalog.IntentStats{Total: len(snap.names), ByComponent: make(map[string]int)}
	for _, def := range snap.items {
		if def.Crawlable {
			stats.Crawlable++
		}
		if def.Deprecated {
			stats.Deprecated++
		}
		stats.ByComponent[def.Component]++
	}
	return stats
}

// Subscribe streams catalog changes until ctx is cancelled.
func (r *IntentRegistry) Subscribe(ctx context.Context) <-chan pubsub.Event[catalog.Change] {
	return r.broker.Subscribe(ctx)
}

// EnableFileWatching reloads the catalog, debounced, whenever a source file changes.
func (r *IntentRegistry) EnableFileWatching(debounce time.Duration) error {
	return r.watch.enable(r.source, debounce, log.CatIntent, r.Reload)
}

// DisableFileWatching stops watching. It is a no-op when watching is off.
func (r *IntentRegistry) DisableFileWatching() error {
	return r.watch.disable()
}

// Watching reports whether file watching is enabled.
func (r *IntentRegistry) Watching() bool {
	return r.watch.active()
}

// Close stops file watching and closes every subscription.
func (r *IntentRegistry) Close() error {
	err := r.DisableFileWatching()
	r.broker.Close()
	return err
}
