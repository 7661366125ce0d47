// Package testutil builds intent and component catalogs for tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/intentui/internal/domain/catalog"
	"github.com/zjrosen/intentui/internal/source"
)

// Builder accumulates fixture definitions.
type Builder struct {
	t          *testing.T
	intents    []*catalog.IntentDefinition
	components map[string]*catalog.ComponentDefinition
}

// NewBuilder creates an empty builder.
func NewBuilder(t *testing.T) *Builder {
	t.Helper()
	return &Builder{t: t, components: make(map[string]*catalog.ComponentDefinition)}
}

// WithIntent adds an intent targeting component.
func (b *Builder) WithIntent(name, component string, opts ...IntentOption) *Builder {
	def := defaultIntent(name, component)
	for _, opt := range opts {
		opt(def)
	}
	b.intents = append(b.intents, def)
	return b
}

// WithComponent adds a component.
func (b *Builder) WithComponent(name string, opts ...ComponentOption) *Builder {
	def := defaultComponent(name)
	for _, opt := range opts {
		opt(def)
	}
	b.components[name] = def
	return b
}

// Intents returns copies of the accumulated intents.
func (b *Builder) Intents() []*catalog.IntentDefinition {
	out := make([]*catalog.IntentDefinition, 0, len(b.intents))
	for _, def := range b.intents {
		out = append(out, def.Clone())
	}
	return out
}

// Components returns copies of the accumulated components.
func (b *Builder) Components() map[string]*catalog.ComponentDefinition {
	out := make(map[string]*catalog.ComponentDefinition, len(b.components))
	for name, def := range b.components {
		out[name] = def.Clone()
	}
	return out
}

// Static returns an in-memory source serving the fixtures.
func (b *Builder) Static() *source.Static {
	return &source.Static{Intents: b.Intents(), Components: b.Components()}
}

// WriteFiles writes intents.json and components.json under dir and returns their paths.
func (b *Builder) WriteFiles(dir string) (intentsPath, componentsPath string) {
	b.t.Helper()
	intentsPath = filepath.Join(dir, "intents.json")
	componentsPath = filepath.Join(dir, "components.json")
	require.NoError(b.t, source.WriteJSON(intentsPath, b.intents))
	require.NoError(b.t, source.WriteJSON(componentsPath, b.components))
	return intentsPath, componentsPath
}
