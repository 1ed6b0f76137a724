package breaker

import (
	"sort"
	"sync"
)

// Registry is a named lookup and creation store for circuit breakers.
//
// A Registry is explicitly constructed and injected rather than held in
// package-level state, so independent registries can coexist (one per
// test, one per tenant). All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{breakers: make(map[string]*Breaker)}
}

// NewRegistryFromConfigs creates a registry pre-populated with one
// breaker per config, typically at process start for the known critical
// dependencies. Config names must be non-empty; duplicate names keep the
// first config.
func NewRegistryFromConfigs(cfgs []Config) *Registry {
	r := NewRegistry()
	for _, cfg := range cfgs {
		if cfg.Name == "" {
			continue
		}
		r.GetOrCreate(cfg.Name, cfg)
	}
	return r
}

// GetOrCreate returns the breaker registered under name, creating it
// with cfg if it does not exist yet. The call is idempotent: if the
// breaker already exists, cfg is ignored.
func (r *Registry) GetOrCreate(name string, cfg Config) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check under the write lock; another caller may have won.
	if b, ok := r.breakers[name]; ok {
		return b
	}

	cfg.Name = name
	b = New(cfg)
	r.breakers[name] = b
	return b
}

// Get returns the breaker registered under name, if any.
func (r *Registry) Get(name string) (*Breaker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.breakers[name]
	return b, ok
}

// Names returns the registered breaker names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns the current status of every registered breaker.
func (r *Registry) Snapshot() map[string]Status {
	r.mu.RLock()
	breakers := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		breakers = append(breakers, b)
	}
	r.mu.RUnlock()

	// Status takes each breaker's own lock; do that outside the
	// registry lock so a slow breaker cannot block registration.
	snapshot := make(map[string]Status, len(breakers))
	for _, b := range breakers {
		snapshot[b.Name()] = b.Status()
	}
	return snapshot
}
