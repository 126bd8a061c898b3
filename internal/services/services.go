// Package services is the lookup boundary between story content and the
// host game. Conditions and actions reach concrete services (inventory, ...)
// only through a Locator.
package services

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

var (
	ErrServiceNotFound     = errors.New("service not found")
	ErrServiceTypeMismatch = errors.New("service type mismatch")
	ErrDuplicateService    = errors.New("duplicate service")
)

// Entry is one named service.
type Entry struct {
	Name    string
	Service any
}

// Locator resolves services by name.
type Locator interface {
	Lookup(name string) (any, bool)
	Services() []Entry
}

// Registry is a Locator backed by an ordered, named set of services.
type Registry struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds svc under name.
func (r *Registry) Register(name string, svc any) error {
	if name == "" {
		return errors.New("service name is empty")
	}
	if svc == nil {
		return fmt.Errorf("service %q is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.Name == name {
			return fmt.Errorf("%w: %q", ErrDuplicateService, name)
		}
	}
	r.entries = append(r.entries, Entry{Name: name, Service: svc})
	return nil
}

// Remove drops the named service. It reports whether one was present.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.Name == name {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Registry) Lookup(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.Name == name {
			return e.Service, true
		}
	}
	return nil, false
}

func (r *Registry) Services() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Entry{}, r.entries...)
}

// GetService resolves a service of type T. With a name it returns that
// service, failing ErrServiceTypeMismatch when it is not a T. With an empty
// name it returns the first registered service that is a T.
func GetService[T any](loc Locator, name string) (T, error) {
	var zero T
	if loc == nil {
		return zero, fmt.Errorf("%w: no service locator", ErrServiceNotFound)
	}
	want := reflect.TypeFor[T]()

	if name != "" {
		svc, ok := loc.Lookup(name)
		if !ok {
			return zero, fmt.Errorf("%w: %q", ErrServiceNotFound, name)
		}
		typed, ok := svc.(T)
		if !ok {
			return zero, fmt.Errorf("%w: %q is %T, not %v", ErrServiceTypeMismatch, name, svc, want)
		}
		return typed, nil
	}

	for _, e := range loc.Services() {
		if typed, ok := e.Service.(T); ok {
			return typed, nil
		}
	}
	return zero, fmt.Errorf("%w: no %v registered", ErrServiceNotFound, want)
}
