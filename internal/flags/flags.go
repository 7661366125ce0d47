// Package flags holds feature toggles read from configuration. Known flags fall
// back to their defaults; unknown flags are off.
package flags

import (
	"maps"
	"slices"

	"github.com/zjrosen/intentui/internal/log"
)

const (
	// FlagSSR enables server-side rendering in HTML mode. Off means client-only hydration.
	FlagSSR = "ssr"

	// FlagResolutionCache enables the in-process resolution cache.
	FlagResolutionCache = "resolution-cache"

	// FlagLiveReload streams registry changes to websocket clients.
	FlagLiveReload = "live-reload"
)

// Defaults returns the value of every known flag when configuration is silent.
func Defaults() map[string]bool {
	return map[string]bool{
		FlagSSR:             true,
		FlagResolutionCache: true,
		FlagLiveReload:      false,
	}
}

// Registry is an immutable flag set.
type Registry struct {
	flags map[string]bool
}

// New overlays overrides on the defaults.
func New(overrides map[string]bool) *Registry {
	merged := Defaults()
	maps.Copy(merged, overrides)
	r := &Registry{flags: merged}
	log.Debug(log.CatConfig, "Feature flags initialized", "flags", r.All())
	return r
}

// Enabled reports whether name is on. Unknown names and a nil registry report false.
func (r *Registry) Enabled(name string) bool {
	if r == nil {
		return false
	}
	value, ok := r.flags[name]
	if !ok {
		log.Debug(log.CatConfig, "Unknown flag accessed", "flag", name)
	}
	return value
}

// All returns a copy of every flag.
func (r *Registry) All() map[string]bool {
	if r == nil {
		return map[string]bool{}
	}
	return maps.Clone(r.flags)
}

// Names returns the flag names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(r.flags))
}
