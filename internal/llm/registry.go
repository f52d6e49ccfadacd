package llm

import (
	"fmt"
	"sync"

	"github.com/Qredence/skill-fleet/internal/types"
)

// Registry manages provider registration and lookup. It provides a
// centralized, thread-safe registry so the CLI can register the configured
// backend alongside the mock provider used by dry runs.
type Registry interface {
	// Register registers a provider with the registry
	Register(provider Provider) error

	// Unregister removes a provider from the registry by name
	Unregister(name string) error

	// Get retrieves a provider by name
	Get(name string) (Provider, error)

	// List returns the names of all registered providers
	List() []string
}

// DefaultRegistry implements Registry with a mutex-guarded provider map.
type DefaultRegistry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates a new empty DefaultRegistry.
func NewRegistry() *DefaultRegistry {
	return &DefaultRegistry{
		providers: make(map[string]Provider),
	}
}

// Register registers a provider with the registry.
// Returns ErrProviderAlreadyExists if the name is already taken and
// ErrProviderInvalidInput for a nil or unnamed provider.
func (r *DefaultRegistry) Register(provider Provider) error {
	if provider == nil {
		return types.NewError(ErrProviderInvalidInput, "provider cannot be nil")
	}

	name := provider.Name()
	if name == "" {
		return types.NewError(ErrProviderInvalidInput, "provider name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return types.NewError(ErrProviderAlreadyExists, fmt.Sprintf("provider %q already registered", name))
	}

	r.providers[name] = provider
	return nil
}

// Unregister removes a provider from the registry by name.
func (r *DefaultRegistry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; !exists {
		return NewProviderNotFoundError(name)
	}

	delete(r.providers, name)
	return nil
}

// Get retrieves a provider by name.
func (r *DefaultRegistry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[name]
	if !exists {
		return nil, NewProviderNotFoundError(name)
	}

	return provider, nil
}

// List returns the names of all registered providers.
func (r *DefaultRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}

	return names
}

// Ensure DefaultRegistry implements Registry at compile time.
var _ Registry = (*DefaultRegistry)(nil)
