package workflow

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// Registry holds the workflow definitions known to the process.
// It is written during startup and read-only once sealed; sealed lookups
// go through an immutable snapshot without taking the mutex.
type Registry struct {
	mu          sync.RWMutex
	definitions map[string]*Definition
	sealed      bool
	snapshot    atomic.Pointer[map[string]*Definition]
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		definitions: make(map[string]*Definition),
	}
}

// Register validates and stores a definition
func (r *Registry) Register(def Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("%w: cannot register %q", ErrRegistrySealed, def.RequestType)
	}
	if _, exists := r.definitions[def.RequestType]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateDefinition, def.RequestType)
	}

	r.definitions[def.RequestType] = def.Clone()
	return nil
}

// Get returns the definition for a request type
func (r *Registry) Get(requestType string) (*Definition, error) {
	var (
		def *Definition
		ok  bool
	)
	if snap := r.snapshot.Load(); snap != nil {
		def, ok = (*snap)[requestType]
	} else {
		r.mu.RLock()
		def, ok = r.definitions[requestType]
		r.mu.RUnlock()
	}

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRequestType, requestType)
	}
	return def.Clone(), nil
}

// Seal stops further registration
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return
	}
	r.sealed = true
	snap := make(map[string]*Definition, len(r.definitions))
	for k, v := range r.definitions {
		snap[k] = v
	}
	r.snapshot.Store(&snap)
}

// Sealed reports whether Seal has been called
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Types lists the registered request types in sorted order
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.definitions))
	for t := range r.definitions {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// All returns copies of every definition, sorted by request type
func (r *Registry) All() []*Definition {
	types := r.Types()
	out := make([]*Definition, 0, len(types))
	for _, t := range types {
		if def, err := r.Get(t); err == nil {
			out = append(out, def)
		}
	}
	return out
}
