// Package registry maps type discriminators to factories that build default
// instances of a polymorphic family (nodes, conditions, actions).
package registry

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrDuplicateRegistration = errors.New("duplicate type registration")
	ErrUnknownTypeKind       = errors.New("unknown type kind")
	ErrInvalidRegistration   = errors.New("invalid type registration")
)

// Factory returns a new default instance of one variant.
type Factory[T any] func() T

// Registry binds discriminator tags of one family to factories.
type Registry[T any] struct {
	family string

	mu        sync.RWMutex
	factories map[string]Factory[T]
	order     []string
}

// New creates an empty registry for family ("node", "condition", ...).
func New[T any](family string) *Registry[T] {
	return &Registry[T]{
		family:    family,
		factories: make(map[string]Factory[T]),
	}
}

// Family returns the family label used in error messages.
func (r *Registry[T]) Family() string { return r.family }

// Register binds tag to factory. The first registration of a tag wins;
// later ones fail with ErrDuplicateRegistration.
func (r *Registry[T]) Register(tag string, factory Factory[T]) error {
	if tag == "" {
		return fmt.Errorf("%w: empty %s tag", ErrInvalidRegistration, r.family)
	}
	if factory == nil {
		return fmt.Errorf("%w: nil factory for %s %q", ErrInvalidRegistration, r.family, tag)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[tag]; ok {
		return fmt.Errorf("%w: %s %q", ErrDuplicateRegistration, r.family, tag)
	}
	r.factories[tag] = factory
	r.order = append(r.order, tag)
	return nil
}

// MustRegister is Register for static tables; it panics on failure.
func (r *Registry[T]) MustRegister(tag string, factory Factory[T]) *Registry[T] {
	if err := r.Register(tag, factory); err != nil {
		panic(err)
	}
	return r
}

// Create returns a new default instance for tag.
func (r *Registry[T]) Create(tag string) (T, error) {
	r.mu.RLock()
	factory, ok := r.factories[tag]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s %q", ErrUnknownTypeKind, r.family, tag)
	}
	return factory(), nil
}

// Has reports whether tag is bound.
func (r *Registry[T]) Has(tag string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[tag]
	return ok
}

// AllTags returns the bound tags in registration order.
func (r *Registry[T]) AllTags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string{}, r.order...)
}

// Len returns the number of bound tags.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
