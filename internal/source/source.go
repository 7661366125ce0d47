// Package source loads intent and component catalogs from disk or memory.
//
// The canonical on-disk form is an array of intent definitions and a map of
// component name to definition. JSON and YAML files are both accepted; a glob
// pattern merges every matching file.
package source

import (
	"context"
	"maps"
	"slices"

	"github.com/zjrosen/intentui/internal/domain/catalog"
)

// IntentSource supplies the intent catalog.
type IntentSource interface {
	LoadIntents(ctx context.Context) ([]*catalog.IntentDefinition, error)
}

// ComponentSource supplies the component catalog keyed by name.
type ComponentSource interface {
	LoadComponents(ctx context.Context) (map[string]*catalog.ComponentDefinition, error)
}

// Watchable is implemented by sources backed by files.
type Watchable interface {
	WatchPatterns() []string
}

// Static serves fixed, programmatically supplied catalogs.
type Static struct {
	Intents    []*catalog.IntentDefinition
	Components map[string]*catalog.ComponentDefinition
}

// LoadIntents returns copies of the configured intents.
func (s *Static) LoadIntents(_ context.Context) ([]*catalog.IntentDefinition, error) {
	out := make([]*catalog.IntentDefinition, 0, len(s.Intents))
	for _, def := range s.Intents {
		out = append(out, def.Clone())
	}
	return out, nil
}

// LoadComponents returns copies of the configured components.
func (s *Static) LoadComponents(_ context.Context) (map[string]*catalog.ComponentDefinition, error) {
	out := make(map[string]*catalog.ComponentDefinition, len(s.Components))
	for _, name := range slices.Sorted(maps.Keys(s.Components)) {
		out[name] = s.Components[name].Clone()
	}
	return out, nil
}
