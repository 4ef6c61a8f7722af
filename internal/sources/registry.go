package sources

import (
	"slices"
	"sync"
)

type registryEntry struct {
	adapter Adapter
	config  ReliabilityConfig
}

// Registry holds adapters and their reliability configs in registration
// order. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*registryEntry
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*registryEntry),
	}
}

// Register adds or replaces an adapter. Replacing keeps the original position.
func (r *Registry) Register(a Adapter, cfg ReliabilityConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := a.Name()
	if _, exists := r.entries[name]; !exists {
		r.order = append(r.order, name)
	}
	r.entries[name] = &registryEntry{adapter: a, config: cfg.clone()}
}

// Unregister removes an adapter and its config; unknown names are ignored
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; !exists {
		return
	}
	delete(r.entries, name)
	r.order = slices.DeleteFunc(r.order, func(n string) bool { return n == name })
}

// Update mutates a config under the write lock. Returns false for unknown names.
func (r *Registry) Update(name string, fn func(cfg *ReliabilityConfig)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[name]
	if !ok {
		return false
	}
	cfg := entry.config.clone()
	fn(&cfg)
	entry.config = cfg
	return true
}

// Config returns a copy of the named config
func (r *Registry) Config(name string) (ReliabilityConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[name]
	if !ok {
		return ReliabilityConfig{}, false
	}
	return entry.config.clone(), true
}

// Names returns adapter names in registration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Len returns the number of registered adapters
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Snapshot copies adapters and configs so one consolidation sees a single
// consistent weight table regardless of concurrent feedback
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{
		Adapters: make([]Adapter, 0, len(r.order)),
		configs:  make(map[string]ReliabilityConfig, len(r.order)),
	}
	for _, name := range r.order {
		entry := r.entries[name]
		snap.Adapters = append(snap.Adapters, entry.adapter)
		snap.configs[name] = entry.config.clone()
	}
	return snap
}

// Snapshot is an immutable view of the registry at one instant
type Snapshot struct {
	Adapters []Adapter
	configs  map[string]ReliabilityConfig
}

// Config returns the reliability config captured for the named adapter
func (s Snapshot) Config(name string) (ReliabilityConfig, bool) {
	cfg, ok := s.configs[name]
	return cfg, ok
}

// Weight is the effective weight of the named adapter for a domain:
// domain override, else base weight, else UnconfiguredWeight
func (s Snapshot) Weight(name, domain string) float64 {
	cfg, ok := s.configs[name]
	if !ok {
		return UnconfiguredWeight
	}
	return cfg.WeightFor(domain)
}

// Enabled reports whether the named adapter may be queried
func (s Snapshot) Enabled(name string) bool {
	cfg, ok := s.configs[name]
	return !ok || cfg.Enabled
}
