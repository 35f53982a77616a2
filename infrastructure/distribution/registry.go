package distribution

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ahrav/go-cooke/internal/ports"
)

// Registry maps family names to factories. The zero value is not usable;
// use NewRegistry.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ports.DistributionFactory
}

// NewRegistry returns a registry with the piecewise linear family registered.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]ports.DistributionFactory)}
	r.Register(PWLFactory{})
	return r
}

// Register adds or replaces a factory under its Name.
func (r *Registry) Register(f ports.DistributionFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[f.Name()] = f
}

// Get returns the factory for name. An empty name selects "pwl".
func (r *Registry) Get(name string) (ports.DistributionFactory, error) {
	if name == "" {
		name = NamePWL
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown distribution %q, available: %v", name, r.namesLocked())
	}
	return f, nil
}

// Names returns the registered family names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
