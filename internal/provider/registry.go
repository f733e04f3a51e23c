package provider

import (
	"fmt"
	"os/exec"
	"sync"

	"github.com/dagent-ai/dagent/pkg/types"
)

// Registry manages the configured providers in registration order.
type Registry struct {
	mu          sync.RWMutex
	adapters    map[types.ProviderID]Adapter
	descriptors map[types.ProviderID]Descriptor
	order       []types.ProviderID
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters:    make(map[types.ProviderID]Adapter),
		descriptors: make(map[types.ProviderID]Descriptor),
	}
}

// Register adds a provider to the registry. Re-registering an ID
// replaces its adapter but keeps its position in the order.
func (r *Registry) Register(desc Descriptor, adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.adapters[desc.ID]; !ok {
		r.order = append(r.order, desc.ID)
	}
	r.adapters[desc.ID] = adapter
	r.descriptors[desc.ID] = desc
}

// Get retrieves an adapter by provider ID.
func (r *Registry) Get(id types.ProviderID) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, ok := r.adapters[id]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", id)
	}
	return adapter, nil
}

// Descriptor retrieves the descriptor for a provider ID.
func (r *Registry) Descriptor(id types.ProviderID) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	desc, ok := r.descriptors[id]
	if !ok {
		return Descriptor{}, fmt.Errorf("provider not found: %s", id)
	}
	return desc, nil
}

// IDs returns all registered provider IDs in registration order.
func (r *Registry) IDs() []types.ProviderID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]types.ProviderID, len(r.order))
	copy(ids, r.order)
	return ids
}

// Available returns the registered providers whose executables resolve
// on PATH, preserving registration order.
func (r *Registry) Available() []types.ProviderID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var available []types.ProviderID
	for _, id := range r.order {
		if _, err := exec.LookPath(r.descriptors[id].Executable); err == nil {
			available = append(available, id)
		}
	}
	return available
}

// FromConfig builds and registers adapters for every known provider
// enabled in the config, guarding each with the given approval gate.
func FromConfig(cfg *types.Config, guard func(Descriptor) Guard) *Registry {
	registry := NewRegistry()
	for _, id := range types.KnownProviders() {
		pc := cfg.Provider[string(id)]
		if pc.Disable {
			continue
		}
		desc := NewDescriptor(id, pc)

		var g Guard
		if guard != nil {
			g = guard(desc)
		}

		switch id {
		case types.ProviderCodex:
			registry.Register(desc, NewCodexAdapter(desc, g))
		default:
			registry.Register(desc, NewClaudeAdapter(desc, g))
		}
	}
	return registry
}
