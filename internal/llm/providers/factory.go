package providers

import (
	"fmt"

	"github.com/Qredence/skill-fleet/internal/llm"
)

// NewProvider creates a provider from configuration.
func NewProvider(cfg llm.ProviderConfig) (llm.Provider, error) {
	switch cfg.Type {
	case llm.ProviderAnthropic:
		return NewAnthropicProvider(cfg)

	case llm.ProviderOpenAI:
		return NewOpenAIProvider(cfg)

	case llm.ProviderOllama:
		return NewOllamaProvider(cfg)

	case llm.ProviderMock:
		return NewMockProvider([]string{"{}"}), nil

	default:
		return nil, llm.NewInvalidRequestError(fmt.Sprintf("unknown provider type: %s", cfg.Type))
	}
}

// BuildRegistry builds the provider registry for a process: the configured
// backend plus the mock provider, so tooling can enumerate and select
// providers by name.
func BuildRegistry(cfg llm.ProviderConfig) (llm.Registry, error) {
	provider, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}

	registry := llm.NewRegistry()
	if err := registry.Register(provider); err != nil {
		return nil, err
	}
	if provider.Name() != "mock" {
		if err := registry.Register(NewMockProvider([]string{"{}"})); err != nil {
			return nil, err
		}
	}

	return registry, nil
}
