// Package assets owns every GPU-backed asset of a device context and hands
// out generation-checked handles to them.
package assets

import (
	"fmt"
	"sync"
)

// Handle refers to an asset in a Registry. The zero Handle refers to
// nothing, and a handle goes stale once its asset is removed.
type Handle[T any] struct {
	index uint32
	gen   uint32
}

// IsZero reports whether h was never assigned.
func (h Handle[T]) IsZero() bool {
	return h.gen == 0
}

func (h Handle[T]) String() string {
	return fmt.Sprintf("%d@%d", h.index, h.gen)
}

type slot[T any] struct {
	name  string
	value T
	gen   uint32
	live  bool
}

// Registry is a named arena of assets. It is safe for concurrent use.
type Registry[T any] struct {
	mu     sync.RWMutex
	slots  []slot[T]
	free   []uint32
	byName map[string]Handle[T]

	// Stats
	hits   int
	misses int
}

// NewRegistry returns an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{byName: make(map[string]Handle[T])}
}

// Add stores v under name. If name is taken the existing handle is
// returned with added false and v is dropped.
func (r *Registry[T]) Add(name string, v T) (h Handle[T], added bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.byName[name]; ok {
		return h, false
	}

	var idx uint32
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		idx = uint32(len(r.slots))
		r.slots = append(r.slots, slot[T]{})
	}
	s := &r.slots[idx]
	s.gen++
	s.name, s.value, s.live = name, v, true

	h = Handle[T]{index: idx, gen: s.gen}
	r.byName[name] = h
	return h, true
}

// Get returns the asset h refers to.
func (r *Registry[T]) Get(h Handle[T]) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.slot(h); ok {
		return s.value, true
	}
	var zero T
	return zero, false
}

// slot resolves h. Callers hold r.mu.
func (r *Registry[T]) slot(h Handle[T]) (*slot[T], bool) {
	if h.IsZero() || int(h.index) >= len(r.slots) {
		return nil, false
	}
	s := &r.slots[h.index]
	if !s.live || s.gen != h.gen {
		return nil, false
	}
	return s, true
}

// Lookup returns the handle of the named asset.
func (r *Registry[T]) Lookup(name string) (Handle[T], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.byName[name]
	if ok {
		r.hits++
	} else {
		r.misses++
	}
	return h, ok
}

// Name returns the name h was added under.
func (r *Registry[T]) Name(h Handle[T]) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.slot(h); ok {
		return s.name, true
	}
	return "", false
}

// Remove drops the asset and invalidates h.
func (r *Registry[T]) Remove(h Handle[T]) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	s, ok := r.slot(h)
	if !ok {
		return zero, false
	}
	v := s.value
	delete(r.byName, s.name)
	s.value, s.name, s.live = zero, "", false
	r.free = append(r.free, h.index)
	return v, true
}

// Len returns the number of live assets.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// Each calls fn for every live asset in slot order. fn runs without the
// registry lock held, so it may call back into the registry.
func (r *Registry[T]) Each(fn func(Handle[T], T)) {
	type entry struct {
		h Handle[T]
		v T
	}
	r.mu.RLock()
	entries := make([]entry, 0, len(r.byName))
	for i, s := range r.slots {
		if s.live {
			entries = append(entries, entry{Handle[T]{index: uint32(i), gen: s.gen}, s.value})
		}
	}
	r.mu.RUnlock()

	for _, e := range entries {
		fn(e.h, e.v)
	}
}

// Stats returns name lookup statistics.
func (r *Registry[T]) Stats() (hits, misses int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hits, r.misses
}
