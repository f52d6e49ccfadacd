package llm

import (
	"fmt"

	"github.com/Qredence/skill-fleet/internal/types"
)

// ProviderType identifies a supported inference backend.
type ProviderType string

const (
	ProviderAnthropic ProviderType = "anthropic"
	ProviderOpenAI    ProviderType = "openai"
	ProviderOllama    ProviderType = "ollama"
	ProviderMock      ProviderType = "mock"
)

// String returns the string representation of the provider type.
func (p ProviderType) String() string {
	return string(p)
}

// IsValid checks if the provider type is a known value.
func (p ProviderType) IsValid() bool {
	switch p {
	case ProviderAnthropic, ProviderOpenAI, ProviderOllama, ProviderMock:
		return true
	default:
		return false
	}
}

// ProviderConfig holds the settings needed to construct a provider.
type ProviderConfig struct {
	Type         ProviderType `mapstructure:"type" yaml:"type" validate:"required,oneof=anthropic openai ollama mock"`
	APIKey       string       `mapstructure:"api_key" yaml:"api_key"`
	BaseURL      string       `mapstructure:"base_url" yaml:"base_url"`
	DefaultModel string       `mapstructure:"default_model" yaml:"default_model"`
	MaxTokens    int          `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature  float64      `mapstructure:"temperature" yaml:"temperature"`
}

// Validate performs validation on the ProviderConfig.
func (p *ProviderConfig) Validate() error {
	if p.Type == "" {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "provider type cannot be empty")
	}

	if !p.Type.IsValid() {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("unknown provider type: %s", p.Type))
	}

	if p.Temperature < 0 || p.Temperature > 1 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("temperature must be between 0 and 1, got %f", p.Temperature))
	}

	return nil
}
