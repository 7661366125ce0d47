package cachemanager

import (
	"context"
	"time"
)

// ReadThroughCache memoizes fn. Each stored value lives for the duration ttlOf
// derives from it.
type ReadThroughCache[K comparable, V any, I any] struct {
	cache    CacheManager[K, V]
	fn       func(ctx context.Context, input I) (V, error)
	ttlOf      func(V) time.Duration
	onLookup   func(hit bool)
	generation func() uint64
}

// NewReadThroughCache wraps fn with cache.
func NewReadThroughCache[K comparable, V any, I any](
	cache CacheManager[K, V],
	fn func(ctx context.Context, input I) (V, error),
	ttlOf func(V) time.Duration,
) *ReadThroughCache[K, V, I] {
	return &ReadThroughCache[K, V, I]{
		cache: cache,
		fn:    fn,
		ttlOf: ttlOf,
	}
}

// OnLookup registers a hook called with the outcome of every cache lookup.
func (r *ReadThroughCache[K, V, I]) OnLookup(fn func(hit bool)) {
	r.onLookup = fn
}

// TrackGeneration registers the version of the data fn reads. A value computed
// while the generation moved is returned but not stored.
func (r *ReadThroughCache[K, V, I]) TrackGeneration(fn func() uint64) {
	r.generation = fn
}

// Get returns the cached value for key or computes, stores and returns it.
// bypass skips the lookup but still stores the fresh value. Errors are never cached.
func (r *ReadThroughCache[K, V, I]) Get(ctx context.Context, key K, input I, bypass bool) (V, bool, error) {
	if !bypass {
		value, ok := r.cache.Get(ctx, key)
		if r.onLookup != nil {
			r.onLookup(ok)
		}
		if ok {
			return value, true, nil
		}
	}

	var gen uint64
	if r.generation != nil {
		gen = r.generation()
	}
	value, err := r.fn(ctx, input)
	if err != nil {
		return value, false, err
	}
	if r.generation != nil && r.generation() != gen {
		return value, false, nil
	}

	if ttl := r.ttlOf(value); ttl > 0 {
		r.cache.Set(ctx, key, value, ttl)
	}
	return value, false, nil
}

// Invalidate drops every cached value.
func (r *ReadThroughCache[K, V, I]) Invalidate(ctx context.Context) {
	r.cache.Flush(ctx)
}
