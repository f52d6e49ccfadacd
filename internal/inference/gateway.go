// Package inference implements the structured inference gateway: the only
// component that talks to an llm.Provider. A Call pairs an instruction with
// a typed input and a response schema; the gateway returns schema-conforming
// JSON or a classified error. It never interprets field semantics.
package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Qredence/skill-fleet/internal/events"
	"github.com/Qredence/skill-fleet/internal/llm"
	"github.com/Qredence/skill-fleet/internal/types"
)

// Call describes a single structured inference invocation.
type Call struct {
	// Module names the call for progress events and logging
	// (e.g. "gather_requirements", "generate_content").
	Module string

	// Phase names the pipeline phase issuing the call.
	Phase string

	// Instruction is the system instruction for the call.
	Instruction string

	// Input is the typed input, marshalled to JSON as the user message.
	Input any

	// Format is the expected response structure.
	Format types.ResponseFormat

	// Fallback, when non-nil, is substituted after retry exhaustion
	// instead of surfacing the error (degraded mode, logged).
	Fallback json.RawMessage

	// Stream requests a streaming completion; accumulated content is still
	// returned whole, but token chunks are emitted along the way.
	Stream bool

	// Decode, when set, runs the caller's typed decode as part of output
	// conformance, so a typed-decode failure is retried like any other
	// parse failure. It is not applied to the fallback value.
	Decode func(json.RawMessage) error

	// Emitter, when set, receives module_start/module_end and token_chunk
	// events for this call.
	Emitter *events.Emitter
}

// Result is the outcome of a gateway invocation.
type Result struct {
	// Output is the schema-conforming JSON returned by the model,
	// or the fallback value in degraded mode.
	Output json.RawMessage

	// Degraded is true when Output is the caller-supplied fallback.
	Degraded bool

	// Attempts is the number of provider round trips made.
	Attempts int
}

// Gateway is the structured inference gateway. It owns per-call retry with
// backoff, per-call timeouts, schema conformance checking, and fallback
// substitution. All fields are set at construction and never mutated, so a
// single Gateway is safe for concurrent use across jobs.
type Gateway struct {
	provider    llm.Provider
	model       string
	temperature float64
	maxTokens   int
	retry       RetryPolicy
	callTimeout time.Duration
	logger      *slog.Logger
}

// GatewayOption is a functional option for configuring a Gateway.
type GatewayOption func(*Gateway)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(policy RetryPolicy) GatewayOption {
	return func(g *Gateway) {
		g.retry = policy
	}
}

// WithCallTimeout sets the per-call timeout. Timeouts are applied per
// inference call, not per phase, since phase duration is dominated by an
// unbounded number of model round trips when refinement is active.
func WithCallTimeout(timeout time.Duration) GatewayOption {
	return func(g *Gateway) {
		if timeout > 0 {
			g.callTimeout = timeout
		}
	}
}

// WithModel sets the model identifier sent with each request.
func WithModel(model string) GatewayOption {
	return func(g *Gateway) {
		g.model = model
	}
}

// WithSampling sets temperature and max output tokens for each request.
func WithSampling(temperature float64, maxTokens int) GatewayOption {
	return func(g *Gateway) {
		g.temperature = temperature
		g.maxTokens = maxTokens
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGateway creates a Gateway over the given provider.
func NewGateway(provider llm.Provider, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		provider:    provider,
		retry:       DefaultRetryPolicy(),
		callTimeout: 120 * time.Second,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Invoke executes a structured inference call with retry, timeout, and
// fallback handling. The returned Result.Output conforms to call.Format or
// an error is returned.
func (g *Gateway) Invoke(ctx context.Context, call Call) (*Result, error) {
	if err := call.Format.Validate(); err != nil {
		return nil, llm.NewInvalidRequestError(fmt.Sprintf("call %s: %v", call.Module, err))
	}

	req, err := g.buildRequest(call)
	if err != nil {
		return nil, err
	}

	if call.Emitter != nil {
		call.Emitter.ModuleStart(ctx, call.Phase, call.Module)
	}

	started := time.Now()
	result, err := g.invokeWithRetry(ctx, call, req)

	if call.Emitter != nil {
		success := err == nil
		degraded := result != nil && result.Degraded
		call.Emitter.ModuleEnd(ctx, call.Phase, call.Module, time.Since(started), success, degraded)
		if err != nil {
			call.Emitter.Error(ctx, call.Phase, call.Module, err)
		}
	}

	return result, err
}

// invokeWithRetry runs the provider round trips, backing off between
// retryable failures and substituting the fallback on exhaustion.
func (g *Gateway) invokeWithRetry(ctx context.Context, call Call, req llm.CompletionRequest) (*Result, error) {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= g.retry.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, types.WrapError(llm.ErrContextCanceled, "call canceled: "+call.Module, ctx.Err())
		}

		attempts++
		output, err := g.roundTrip(ctx, call, req)
		if err == nil {
			return &Result{Output: output, Attempts: attempts}, nil
		}

		lastErr = err

		if !llm.IsRetryable(err) || attempt == g.retry.MaxRetries {
			break
		}

		delay := g.retry.CalculateDelay(attempt)
		g.logger.Warn("retrying inference call",
			"module", call.Module,
			"attempt", attempt+1,
			"max_retries", g.retry.MaxRetries,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, types.WrapError(llm.ErrContextCanceled, "call canceled during retry delay: "+call.Module, ctx.Err())
		case <-time.After(delay):
		}
	}

	if call.Fallback != nil {
		g.logger.Warn("inference call degraded to fallback value",
			"module", call.Module,
			"attempts", attempts,
			"error", lastErr,
		)
		return &Result{Output: call.Fallback, Degraded: true, Attempts: attempts}, nil
	}

	return nil, lastErr
}

// roundTrip performs one provider call with the per-call timeout applied
// and checks the output against the requested format.
func (g *Gateway) roundTrip(ctx context.Context, call Call, req llm.CompletionRequest) (json.RawMessage, error) {
	callCtx := ctx
	if g.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.callTimeout)
		defer cancel()
	}

	var content string
	var err error

	if call.Stream {
		content, err = g.streamContent(callCtx, call, req)
	} else {
		var resp *llm.CompletionResponse
		resp, err = g.provider.Complete(callCtx, req)
		if err == nil {
			content = resp.Message.Content
		}
	}

	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, llm.NewTimeoutError(fmt.Sprintf("call %s timed out after %v", call.Module, g.callTimeout))
		}
		return nil, err
	}

	return g.conformOutput(call, content)
}

// streamContent runs a streaming completion, emitting token chunks and
// accumulating the full content.
func (g *Gateway) streamContent(ctx context.Context, call Call, req llm.CompletionRequest) (string, error) {
	req.Stream = true

	chunks, err := g.provider.Stream(ctx, req)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	index := 0

	for chunk := range chunks {
		if chunk.Err != nil {
			return "", chunk.Err
		}
		if chunk.Content != "" {
			if call.Emitter != nil {
				call.Emitter.TokenChunk(ctx, call.Phase, call.Module, index, chunk.Content)
			}
			sb.WriteString(chunk.Content)
			index++
		}
	}

	return sb.String(), nil
}

// conformOutput checks the raw model content against the requested format.
// Parse failures are classified retryable: a fresh sample may conform.
func (g *Gateway) conformOutput(call Call, content string) (json.RawMessage, error) {
	if call.Format.Type == types.ResponseFormatText {
		encoded, err := json.Marshal(content)
		if err != nil {
			return nil, llm.NewParseError("failed to encode text output", err)
		}
		return encoded, nil
	}

	jsonStr, err := llm.ExtractJSON(content)
	if err != nil {
		return nil, llm.NewParseError(fmt.Sprintf("call %s returned no parseable JSON", call.Module), err)
	}

	raw := json.RawMessage(jsonStr)

	if call.Format.Type == types.ResponseFormatJSONSchema && call.Format.Schema != nil {
		if err := checkSchema(raw, call.Format.Schema); err != nil {
			return nil, llm.NewParseError(fmt.Sprintf("call %s output failed schema check", call.Module), err)
		}
	}

	if call.Decode != nil {
		if err := call.Decode(raw); err != nil {
			return nil, llm.NewParseError(fmt.Sprintf("call %s output failed typed decode", call.Module), err)
		}
	}

	return raw, nil
}

// buildRequest assembles the completion request for a call: the instruction
// (plus a schema directive for JSON formats) as the system message and the
// JSON-marshalled input as the user message.
func (g *Gateway) buildRequest(call Call) (llm.CompletionRequest, error) {
	inputJSON, err := json.Marshal(call.Input)
	if err != nil {
		return llm.CompletionRequest{}, llm.NewInvalidRequestError(
			fmt.Sprintf("call %s: failed to marshal input: %v", call.Module, err))
	}

	system := call.Instruction
	if call.Format.Type != types.ResponseFormatText {
		system += "\n\nRespond with a single JSON object"
		if call.Format.Schema != nil {
			schemaJSON, err := json.Marshal(call.Format.Schema)
			if err != nil {
				return llm.CompletionRequest{}, llm.NewInvalidRequestError(
					fmt.Sprintf("call %s: failed to marshal schema: %v", call.Module, err))
			}
			system += " conforming to this JSON schema:\n" + string(schemaJSON)
		} else {
			system += "."
		}
	}

	return llm.CompletionRequest{
		Model:       g.model,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
		Messages: []llm.Message{
			llm.NewSystemMessage(system),
			llm.NewUserMessage(string(inputJSON)),
		},
	}, nil
}

// checkSchema performs a shallow conformance check: for object schemas the
// output must be an object carrying every required property. Full JSON
// Schema validation is delegated to the model via the schema directive.
func checkSchema(raw json.RawMessage, schema *types.JSONSchema) error {
	if schema.Type != "object" {
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return fmt.Errorf("output is not a JSON object: %w", err)
	}

	var missing []string
	for _, key := range schema.Required {
		if _, ok := obj[key]; !ok {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("output missing required properties: %s", strings.Join(missing, ", "))
	}

	return nil
}

// InvokeAs executes a structured call and decodes the output into T. The
// decode runs inside the gateway's retried path, so output that clears the
// shallow schema check but cannot decode into T is retried (and falls back)
// like any other parse failure.
func InvokeAs[T any](ctx context.Context, g *Gateway, call Call) (T, *Result, error) {
	var out T
	decoded := false

	call.Decode = func(raw json.RawMessage) error {
		var candidate T
		if err := json.Unmarshal(raw, &candidate); err != nil {
			return err
		}
		out = candidate
		decoded = true
		return nil
	}

	result, err := g.Invoke(ctx, call)
	if err != nil {
		var zero T
		return zero, nil, err
	}

	// Text formats and fallback substitution bypass the conformance hook.
	if !decoded || result.Degraded {
		var candidate T
		if err := json.Unmarshal(result.Output, &candidate); err != nil {
			var zero T
			return zero, nil, llm.NewParseError(
				fmt.Sprintf("call %s: failed to decode output", call.Module), err)
		}
		out = candidate
	}

	return out, result, nil
}
