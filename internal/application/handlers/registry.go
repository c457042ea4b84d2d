package handlers

import (
	"sort"
	"sync"
	"sync/atomic"

	"filestore/internal/domain/ports"

	"github.com/pkg/errors"
)

type factories = map[string]ports.HandlerFactory

// Registry maps specs to handler factories. Lookups are lock free; writers copy the map.
// Entries are never removed.
type Registry struct {
	mu      sync.Mutex
	entries atomic.Pointer[factories]
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	r := &Registry{}
	empty := make(factories)
	r.entries.Store(&empty)
	return r
}

// Register installs factory for spec; a later registration of the same spec wins
func (r *Registry) Register(spec string, factory ports.HandlerFactory) error {
	if spec == "" {
		return errors.New("spec is empty")
	}
	if factory == nil {
		return errors.Errorf("nil factory for spec %q", spec)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := *r.entries.Load()
	next := make(factories, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	next[spec] = factory
	r.entries.Store(&next)
	return nil
}

// Lookup returns the factory for spec or an UnregisteredSpecError
func (r *Registry) Lookup(spec string) (ports.HandlerFactory, error) {
	if f, ok := (*r.entries.Load())[spec]; ok {
		return f, nil
	}
	return nil, &ports.UnregisteredSpecError{Spec: spec}
}

// Specs returns registered specs sorted
func (r *Registry) Specs() []string {
	cur := *r.entries.Load()
	ret := make([]string, 0, len(cur))
	for spec := range cur {
		ret = append(ret, spec)
	}
	sort.Strings(ret)
	return ret
}

// Each calls fn for every registration in spec order
func (r *Registry) Each(fn func(spec string, factory ports.HandlerFactory)) {
	cur := *r.entries.Load()
	for _, spec := range r.Specs() {
		if f, ok := cur[spec]; ok {
			fn(spec, f)
		}
	}
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry
func Default() *Registry {
	return defaultRegistry
}
