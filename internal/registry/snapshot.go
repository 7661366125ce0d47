// Package registry holds the intent and component catalogs.
//
// Each registry serves an immutable snapshot through an atomic pointer. Loads and
// mutations build a new map and swap the pointer, so readers never lock and never
// see a partially replaced catalog.
package registry

import (
	"maps"
	"slices"
	"sync"
	"sync/atomic"
)

type snapshot[T any] struct {
	items    map[string]T
	names    []string
	rejected []error
}

func newSnapshot[T any](items map[string]T, rejected []error) *snapshot[T] {
	return &snapshot[T]{
		items:    items,
		names:    slices.Sorted(maps.Keys(items)),
		rejected: rejected,
	}
}

// store serializes writers with a mutex; readers only load the pointer.
// generation is bumped after every publish, once the new snapshot is visible.
type store[T any] struct {
	mu         sync.Mutex
	current    atomic.Pointer[snapshot[T]]
	generation atomic.Uint64
}

func newStore[T any]() *store[T] {
	s := &store[T]{}
	s.current.Store(newSnapshot(map[string]T{}, nil))
	return s
}

func (s *store[T]) view() *snapshot[T] {
	return s.current.Load()
}

func (s *store[T]) replace(items map[string]T, rejected []error) *snapshot[T] {
	next := newSnapshot(items, rejected)
	s.mu.Lock()
	s.current.Store(next)
	s.generation.Add(1)
	s.mu.Unlock()
	return next
}

// update applies fn to a copy of the current items and publishes the copy when fn
// reports a change.
func (s *store[T]) update(fn func(items map[string]T) bool) (*snapshot[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.current.Load()
	items := maps.Clone(cur.items)
	if !fn(items) {
		return cur, false
	}
	next := newSnapshot(items, cur.rejected)
	s.current.Store(next)
	s.generation.Add(1)
	return next, true
}
