package providers

import (
	"context"

	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/Qredence/skill-fleet/internal/llm"
)

// OllamaProvider implements llm.Provider for local Ollama models.
// Ollama has no native JSON mode; structured calls rely on the gateway's
// ExtractJSON fallback parsing.
type OllamaProvider struct {
	client *ollama.LLM
	config llm.ProviderConfig
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(cfg llm.ProviderConfig) (*OllamaProvider, error) {
	serverURL := cfg.BaseURL
	if serverURL == "" {
		serverURL = "http://localhost:11434"
	}

	opts := []ollama.Option{
		ollama.WithServerURL(serverURL),
	}

	if cfg.DefaultModel != "" {
		opts = append(opts, ollama.WithModel(cfg.DefaultModel))
	}

	client, err := ollama.New(opts...)
	if err != nil {
		return nil, llm.TranslateError("ollama", err)
	}

	return &OllamaProvider{
		client: client,
		config: cfg,
	}, nil
}

// Name returns the provider name.
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// Models returns information about available models. Ollama serves whatever
// is pulled locally, so this reports the configured default only.
func (p *OllamaProvider) Models(ctx context.Context) ([]llm.ModelInfo, error) {
	name := p.config.DefaultModel
	if name == "" {
		name = "llama3"
	}

	return []llm.ModelInfo{
		{
			Name:          name,
			ContextWindow: 8192,
			MaxOutput:     4096,
			Features:      []string{"chat", "streaming"},
		},
	}, nil
}

// Complete sends a completion request.
func (p *OllamaProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	messages := toLangchainMessages(req.Messages)
	callOpts := buildCallOptions(req)

	resp, err := p.client.GenerateContent(ctx, messages, callOpts...)
	if err != nil {
		return nil, llm.TranslateError("ollama", err)
	}

	return fromLangchainResponse(resp, req.Model), nil
}

// Stream sends a streaming completion request.
func (p *OllamaProvider) Stream(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
	chunkChan := make(chan llm.StreamChunk, 10)

	messages := toLangchainMessages(req.Messages)
	callOpts := buildStreamingCallOptions(req, func(ctx context.Context, chunk []byte) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunkChan <- llm.StreamChunk{Content: string(chunk)}:
			return nil
		}
	})

	go func() {
		defer close(chunkChan)
		_, err := p.client.GenerateContent(ctx, messages, callOpts...)
		if err != nil {
			chunkChan <- llm.StreamChunk{
				FinishReason: llm.FinishReasonError,
				Err:          llm.TranslateError("ollama", err),
			}
			return
		}
		chunkChan <- llm.StreamChunk{FinishReason: llm.FinishReasonStop}
	}()

	return chunkChan, nil
}

// Ensure OllamaProvider implements llm.Provider at compile time.
var _ llm.Provider = (*OllamaProvider)(nil)
