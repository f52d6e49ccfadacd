package providers

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Qredence/skill-fleet/internal/llm"
)

// MockCall records a single request made to the mock provider.
type MockCall struct {
	Request llm.CompletionRequest
}

// MockProvider implements llm.Provider for testing. It replays a scripted
// list of responses in order, cycling when exhausted, and records every
// request it receives.
type MockProvider struct {
	mu            sync.RWMutex
	responses     []string
	responseIndex int
	calls         []MockCall
	failures      map[int]error
}

// NewMockProvider creates a new mock provider with scripted responses.
func NewMockProvider(responses []string) *MockProvider {
	return &MockProvider{
		responses: responses,
		calls:     make([]MockCall, 0),
		failures:  make(map[int]error),
	}
}

// FailCall makes the nth call (0-based) return err instead of a response.
// Useful for exercising the gateway's retry path.
func (p *MockProvider) FailCall(n int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[n] = err
}

// Name returns the provider name.
func (p *MockProvider) Name() string {
	return "mock"
}

// Models returns mock model information.
func (p *MockProvider) Models(ctx context.Context) ([]llm.ModelInfo, error) {
	return []llm.ModelInfo{
		{
			Name:          "mock-model",
			ContextWindow: 8192,
			MaxOutput:     4096,
			Features:      []string{"chat", "streaming", "json"},
		},
	}, nil
}

// Complete replays the next scripted response.
func (p *MockProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	callIndex := len(p.calls)
	p.calls = append(p.calls, MockCall{Request: req})

	if err, ok := p.failures[callIndex]; ok {
		p.mu.Unlock()
		return nil, err
	}

	if len(p.responses) == 0 {
		p.mu.Unlock()
		return nil, llm.NewCompletionError("no responses configured", fmt.Errorf("mock provider is empty"))
	}

	response := p.responses[p.responseIndex%len(p.responses)]
	p.responseIndex++
	p.mu.Unlock()

	return &llm.CompletionResponse{
		ID:    uuid.New().String(),
		Model: req.Model,
		Message: llm.Message{
			Role:    llm.RoleAssistant,
			Content: response,
		},
		FinishReason: llm.FinishReasonStop,
		Usage: llm.TokenUsage{
			PromptTokens:     10,
			CompletionTokens: len(response) / 4,
			TotalTokens:      10 + len(response)/4,
		},
	}, nil
}

// Stream replays the next scripted response as a single chunk.
func (p *MockProvider) Stream(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
	resp, err := p.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	chunkChan := make(chan llm.StreamChunk, 2)
	chunkChan <- llm.StreamChunk{Content: resp.Message.Content}
	chunkChan <- llm.StreamChunk{FinishReason: llm.FinishReasonStop}
	close(chunkChan)

	return chunkChan, nil
}

// Calls returns a copy of all recorded calls.
func (p *MockProvider) Calls() []MockCall {
	p.mu.RLock()
	defer p.mu.RUnlock()

	calls := make([]MockCall, len(p.calls))
	copy(calls, p.calls)
	return calls
}

// CallCount returns the number of calls made to the provider.
func (p *MockProvider) CallCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.calls)
}

// Ensure MockProvider implements llm.Provider at compile time.
var _ llm.Provider = (*MockProvider)(nil)
