// Package provider implements the generic plugin-extension-set
// capability spec.md §9 calls out: "For the build-provider
// extensibility, use an explicit trait/interface object with methods
// load, unload, can_install(id), bootstrap_async(pipeline)." Grounded
// on ide-runtime-provider.c/ide-toolchain-provider.c's loader pattern
// and the teacher's internal/adapter/registry.go register/lookup/
// iterate shape.
package provider

import "sync"

// Extension is the minimal lifecycle every provider-set member
// exposes: a stable identity plus load/unload hooks invoked as the
// set is populated and torn down.
type Extension interface {
	ID() string
	Load() error
	Unload() error
}

// Set holds an ordered collection of loaded extensions of type T.
// Registration order is preserved; Unload failures are logged by the
// caller but never prevent removal (spec.md §7: "Provider load
// failures are logged but never fatal to the manager").
type Set[T Extension] struct {
	mu    sync.RWMutex
	items []T
	byID  map[string]T
}

// NewSet returns an empty provider set.
func NewSet[T Extension]() *Set[T] {
	return &Set[T]{byID: make(map[string]T)}
}

// Add loads ext and adds it to the set. An error from Load is
// returned to the caller without adding the extension (the remaining
// set is unaffected).
func (s *Set[T]) Add(ext T) error {
	if err := ext.Load(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, ext)
	s.byID[ext.ID()] = ext
	return nil
}

// Remove unloads and removes the extension with the given id, if
// present. The unload error (if any) is returned; the extension is
// removed from the set regardless.
func (s *Set[T]) Remove(id string) error {
	s.mu.Lock()
	ext, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.byID, id)
	for i, it := range s.items {
		if it.ID() == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	return ext.Unload()
}

// All returns a snapshot of the set's members in registration order.
func (s *Set[T]) All() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// Get returns the extension with the given id, if present.
func (s *Set[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ext, ok := s.byID[id]
	return ext, ok
}

// Len reports the number of loaded extensions.
func (s *Set[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
