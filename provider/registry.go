package provider

import (
	"sync"

	"github.com/mstgnz/sanalpos/infra/config"
)

// Factory builds a provider from the loaded configuration and an account id.
// An empty account id selects the provider's configured default account.
type Factory func(cfg *config.VirtualPos, accountID string) (VirtualPos, error)

// Registry maps provider names to their factories.
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a provider factory to the registry.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get retrieves a provider factory by name.
func (r *Registry) Get(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, exists := r.factories[name]
	if !exists {
		return nil, NewConfigurationError("bilinmeyen provider: %s", name)
	}
	return factory, nil
}

// Create constructs a provider instance by name.
func (r *Registry) Create(name string, cfg *config.VirtualPos, accountID string) (VirtualPos, error) {
	factory, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return factory(cfg, accountID)
}

// Names returns all registered provider names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}

// DefaultRegistry is the global registry the provider packages register into.
var DefaultRegistry = NewRegistry()

// Register registers a provider with the default registry.
func Register(name string, factory Factory) {
	DefaultRegistry.Register(name, factory)
}

// Create constructs a provider instance from the default registry.
func Create(name string, cfg *config.VirtualPos, accountID string) (VirtualPos, error) {
	return DefaultRegistry.Create(name, cfg, accountID)
}
