package llm

import "context"

// Provider is the interface every inference backend must implement.
// It is a unified abstraction over remote APIs (Anthropic, OpenAI) and
// local models (Ollama); the inference gateway is its only caller during
// pipeline execution.
type Provider interface {
	// Name returns the provider name (e.g. "anthropic", "openai", "ollama")
	Name() string

	// Models returns information about the models this provider serves
	Models(ctx context.Context) ([]ModelInfo, error)

	// Complete sends a completion request and blocks for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Stream sends a completion request and streams the response as it is
	// generated. The returned channel emits StreamChunk items until the
	// response completes or fails, then is closed.
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)
}

// ModelInfo contains metadata about a model.
type ModelInfo struct {
	// Name is the model identifier (e.g. "claude-sonnet-4-20250514")
	Name string `json:"name"`

	// ContextWindow is the maximum number of tokens the model can process
	ContextWindow int `json:"context_window"`

	// Features lists the capabilities this model supports
	Features []string `json:"features"`

	// MaxOutput is the maximum number of tokens the model can generate
	MaxOutput int `json:"max_output"`
}

// SupportsFeature checks if the model supports a given feature.
func (m ModelInfo) SupportsFeature(feature string) bool {
	for _, f := range m.Features {
		if f == feature {
			return true
		}
	}
	return false
}

// SupportsStreaming checks if the model supports streaming responses.
func (m ModelInfo) SupportsStreaming() bool {
	return m.SupportsFeature("streaming")
}

// SupportsJSONMode checks if the model supports structured JSON output.
func (m ModelInfo) SupportsJSONMode() bool {
	return m.SupportsFeature("json")
}
