package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Qredence/skill-fleet/internal/events"
	"github.com/Qredence/skill-fleet/internal/llm"
	"github.com/Qredence/skill-fleet/internal/llm/providers"
	"github.com/Qredence/skill-fleet/internal/types"
)

// fastRetry removes backoff delays so retry paths run instantly.
func fastRetry(maxRetries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries:      maxRetries,
		BackoffStrategy: BackoffConstant,
		InitialDelay:    0,
	}
}

func answerSchema() types.ResponseFormat {
	return types.NewJSONSchemaFormat("answer", &types.JSONSchema{
		Type: "object",
		Properties: map[string]*types.JSONSchema{
			"answer": {Type: "string"},
		},
		Required: []string{"answer"},
	})
}

func TestGatewayInvokeSuccess(t *testing.T) {
	mock := providers.NewMockProvider([]string{`{"answer": "forty-two"}`})
	gateway := NewGateway(mock, WithRetryPolicy(fastRetry(2)), WithModel("mock-model"))

	result, err := gateway.Invoke(context.Background(), Call{
		Module:      "test_module",
		Phase:       "understanding",
		Instruction: "Answer the question.",
		Input:       map[string]string{"question": "what is the answer"},
		Format:      answerSchema(),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Attempts)
	assert.False(t, result.Degraded)
	assert.JSONEq(t, `{"answer": "forty-two"}`, string(result.Output))

	calls := mock.Calls()
	require.Len(t, calls, 1)
	req := calls[0].Request
	assert.Equal(t, "mock-model", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Contains(t, req.Messages[0].Content, "Answer the question.")
	assert.Contains(t, req.Messages[0].Content, `"answer"`, "schema directive should be embedded in the system message")
	assert.Contains(t, req.Messages[1].Content, "what is the answer")
}

func TestGatewayRetriesParseFailure(t *testing.T) {
	mock := providers.NewMockProvider([]string{
		"I cannot answer in JSON, sorry.",
		`{"answer": "second try"}`,
	})
	gateway := NewGateway(mock, WithRetryPolicy(fastRetry(2)))

	result, err := gateway.Invoke(context.Background(), Call{
		Module:      "test_module",
		Instruction: "Answer.",
		Input:       map[string]string{"question": "q"},
		Format:      answerSchema(),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Attempts)
	assert.False(t, result.Degraded)
	assert.JSONEq(t, `{"answer": "second try"}`, string(result.Output))
}

func TestGatewayRetriesMissingRequiredProperty(t *testing.T) {
	mock := providers.NewMockProvider([]string{
		`{"unrelated": true}`,
		`{"answer": "present"}`,
	})
	gateway := NewGateway(mock, WithRetryPolicy(fastRetry(2)))

	result, err := gateway.Invoke(context.Background(), Call{
		Module:      "test_module",
		Instruction: "Answer.",
		Input:       map[string]string{"question": "q"},
		Format:      answerSchema(),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Attempts)
	assert.JSONEq(t, `{"answer": "present"}`, string(result.Output))
}

func TestGatewayDoesNotRetryNonRetryableError(t *testing.T) {
	mock := providers.NewMockProvider([]string{`{"answer": "never reached"}`})
	mock.FailCall(0, llm.NewAuthError("mock", fmt.Errorf("bad key")))
	gateway := NewGateway(mock, WithRetryPolicy(fastRetry(3)))

	_, err := gateway.Invoke(context.Background(), Call{
		Module:      "test_module",
		Instruction: "Answer.",
		Input:       map[string]string{"question": "q"},
		Format:      answerSchema(),
	})
	require.Error(t, err)

	var fleetErr *types.FleetError
	require.ErrorAs(t, err, &fleetErr)
	assert.False(t, fleetErr.Retryable)
	assert.Equal(t, 1, mock.CallCount())
}

func TestGatewayFallbackAfterExhaustion(t *testing.T) {
	mock := providers.NewMockProvider([]string{"never valid JSON"})
	gateway := NewGateway(mock, WithRetryPolicy(fastRetry(2)))

	result, err := gateway.Invoke(context.Background(), Call{
		Module:      "test_module",
		Instruction: "Answer.",
		Input:       map[string]string{"question": "q"},
		Format:      answerSchema(),
		Fallback:    json.RawMessage(`{"answer": "fallback"}`),
	})
	require.NoError(t, err)

	assert.True(t, result.Degraded)
	assert.Equal(t, 3, result.Attempts)
	assert.JSONEq(t, `{"answer": "fallback"}`, string(result.Output))
}

func TestGatewayErrorAfterExhaustionWithoutFallback(t *testing.T) {
	mock := providers.NewMockProvider([]string{"never valid JSON"})
	gateway := NewGateway(mock, WithRetryPolicy(fastRetry(1)))

	result, err := gateway.Invoke(context.Background(), Call{
		Module:      "test_module",
		Instruction: "Answer.",
		Input:       map[string]string{"question": "q"},
		Format:      answerSchema(),
	})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, 2, mock.CallCount())
}

func TestGatewayTextFormat(t *testing.T) {
	mock := providers.NewMockProvider([]string{"plain prose output"})
	gateway := NewGateway(mock)

	result, err := gateway.Invoke(context.Background(), Call{
		Module:      "test_module",
		Instruction: "Write prose.",
		Input:       map[string]string{"topic": "t"},
		Format:      types.NewTextFormat(),
	})
	require.NoError(t, err)

	var content string
	require.NoError(t, json.Unmarshal(result.Output, &content))
	assert.Equal(t, "plain prose output", content)
}

func TestGatewayRejectsInvalidFormat(t *testing.T) {
	mock := providers.NewMockProvider([]string{`{}`})
	gateway := NewGateway(mock)

	_, err := gateway.Invoke(context.Background(), Call{
		Module:      "test_module",
		Instruction: "Answer.",
		Input:       map[string]string{},
		Format:      types.ResponseFormat{Type: types.ResponseFormatJSONSchema},
	})
	require.Error(t, err)
	assert.Equal(t, 0, mock.CallCount(), "invalid format should be rejected before any provider call")
}

func TestGatewayCanceledContext(t *testing.T) {
	mock := providers.NewMockProvider([]string{`{"answer": "x"}`})
	gateway := NewGateway(mock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gateway.Invoke(ctx, Call{
		Module:      "test_module",
		Instruction: "Answer.",
		Input:       map[string]string{},
		Format:      answerSchema(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, mock.CallCount())
}

func TestGatewayStreamEmitsTokenChunks(t *testing.T) {
	mock := providers.NewMockProvider([]string{"streamed content body"})
	gateway := NewGateway(mock)

	bus := events.NewBus()
	defer bus.Close()

	jobID := types.NewID()
	emitter := events.NewEmitter(bus, jobID)

	ctx := context.Background()
	eventCh, unsubscribe := bus.Subscribe(ctx, events.Filter{JobID: jobID}, 16)
	defer unsubscribe()

	result, err := gateway.Invoke(ctx, Call{
		Module:      "generate_content",
		Phase:       "generation",
		Instruction: "Write it.",
		Input:       map[string]string{"topic": "t"},
		Format:      types.NewTextFormat(),
		Stream:      true,
		Emitter:     emitter,
	})
	require.NoError(t, err)

	var content string
	require.NoError(t, json.Unmarshal(result.Output, &content))
	assert.Equal(t, "streamed content body", content)

	seen := make(map[events.EventType]int)
	deadline := time.After(2 * time.Second)
	for len(seen) < 3 {
		select {
		case evt := <-eventCh:
			seen[evt.Type]++
		case <-deadline:
			t.Fatalf("timed out waiting for events, saw %v", seen)
		}
	}

	assert.Equal(t, 1, seen[events.EventModuleStart])
	assert.Equal(t, 1, seen[events.EventTokenChunk])
	assert.Equal(t, 1, seen[events.EventModuleEnd])
}

func TestInvokeAs(t *testing.T) {
	type answer struct {
		Answer string `json:"answer"`
	}

	mock := providers.NewMockProvider([]string{`{"answer": "typed"}`})
	gateway := NewGateway(mock)

	out, result, err := InvokeAs[answer](context.Background(), gateway, Call{
		Module:      "test_module",
		Instruction: "Answer.",
		Input:       map[string]string{"question": "q"},
		Format:      answerSchema(),
	})
	require.NoError(t, err)

	assert.Equal(t, "typed", out.Answer)
	assert.Equal(t, 1, result.Attempts)
}

func TestInvokeAsRetriesTypedDecodeFailure(t *testing.T) {
	type answer struct {
		Answer string `json:"answer"`
	}

	// The first response carries the required property with the wrong
	// type: it clears the shallow schema check but cannot decode into the
	// caller's struct, so it must burn a retry like any parse failure.
	mock := providers.NewMockProvider([]string{
		`{"answer": 42}`,
		`{"answer": "typed"}`,
	})
	gateway := NewGateway(mock, WithRetryPolicy(fastRetry(3)))

	out, result, err := InvokeAs[answer](context.Background(), gateway, Call{
		Module:      "test_module",
		Instruction: "Answer.",
		Input:       map[string]string{"question": "q"},
		Format:      answerSchema(),
	})
	require.NoError(t, err)

	assert.Equal(t, "typed", out.Answer)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, 2, mock.CallCount())
}

func TestInvokeAsFallbackAfterTypedDecodeExhaustion(t *testing.T) {
	type answer struct {
		Answer string `json:"answer"`
	}

	mock := providers.NewMockProvider([]string{`{"answer": 42}`})
	gateway := NewGateway(mock, WithRetryPolicy(fastRetry(2)))

	out, result, err := InvokeAs[answer](context.Background(), gateway, Call{
		Module:      "test_module",
		Instruction: "Answer.",
		Input:       map[string]string{"question": "q"},
		Format:      answerSchema(),
		Fallback:    json.RawMessage(`{"answer": "fallback"}`),
	})
	require.NoError(t, err)

	assert.True(t, result.Degraded)
	assert.Equal(t, "fallback", out.Answer)
	assert.Equal(t, 3, result.Attempts)
}
