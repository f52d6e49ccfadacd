package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Qredence/skill-fleet/internal/inference"
	"github.com/Qredence/skill-fleet/internal/llm"
	"github.com/Qredence/skill-fleet/internal/skill"
)

// routingProvider is a test provider that picks its response by matching
// markers against the system message. The understanding phase runs intent and
// taxonomy calls concurrently, so ordered scripted responses would race;
// routing on the embedded schema keys keeps each call deterministic.
type routingProvider struct {
	mu     sync.Mutex
	routes []*providerRoute
}

type providerRoute struct {
	marker    string
	responses []string
	served    int
	delay     time.Duration
}

func newRoutingProvider() *routingProvider {
	return &routingProvider{}
}

// route registers responses for requests whose system message contains
// marker. Responses are served in order; the last one repeats.
func (p *routingProvider) route(marker string, responses ...string) *routingProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes = append(p.routes, &providerRoute{marker: marker, responses: responses})
	return p
}

// reroute replaces the responses registered for marker.
func (p *routingProvider) reroute(marker string, responses ...string) *routingProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range p.routes {
		if r.marker == marker {
			r.responses = responses
			r.served = 0
			return p
		}
	}
	p.routes = append(p.routes, &providerRoute{marker: marker, responses: responses})
	return p
}

// slow adds a response delay to the route registered for marker, letting a
// test force either completion order on concurrent calls.
func (p *routingProvider) slow(marker string, d time.Duration) *routingProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range p.routes {
		if r.marker == marker {
			r.delay = d
			return p
		}
	}
	return p
}

// served returns how many requests matched the given marker.
func (p *routingProvider) served(marker string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range p.routes {
		if r.marker == marker {
			return r.served
		}
	}
	return 0
}

func (p *routingProvider) Name() string {
	return "routing"
}

func (p *routingProvider) Models(ctx context.Context) ([]llm.ModelInfo, error) {
	return []llm.ModelInfo{{Name: "routing-model", ContextWindow: 8192, MaxOutput: 4096}}, nil
}

func (p *routingProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if len(req.Messages) == 0 {
		return nil, llm.NewInvalidRequestError("no messages")
	}
	system := req.Messages[0].Content

	p.mu.Lock()
	var matched *providerRoute
	var content string
	var serial int
	for _, r := range p.routes {
		if !strings.Contains(system, r.marker) {
			continue
		}
		idx := r.served
		if idx >= len(r.responses) {
			idx = len(r.responses) - 1
		}
		r.served++
		matched, content, serial = r, r.responses[idx], r.served
		break
	}
	p.mu.Unlock()

	if matched == nil {
		return nil, llm.NewCompletionError("no route matched request",
			fmt.Errorf("system message matched no registered marker"))
	}

	// The delay runs outside the lock so concurrent calls interleave.
	if matched.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(matched.delay):
		}
	}

	return &llm.CompletionResponse{
		ID:    fmt.Sprintf("routing-%s-%d", matched.marker, serial),
		Model: req.Model,
		Message: llm.Message{
			Role:    llm.RoleAssistant,
			Content: content,
		},
		FinishReason: llm.FinishReasonStop,
	}, nil
}

func (p *routingProvider) Stream(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
	resp, err := p.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	chunks := make(chan llm.StreamChunk, 2)
	chunks <- llm.StreamChunk{Content: resp.Message.Content}
	chunks <- llm.StreamChunk{FinishReason: llm.FinishReasonStop}
	close(chunks)
	return chunks, nil
}

var _ llm.Provider = (*routingProvider)(nil)

// Markers keyed on schema properties unique to each call's response format,
// which the gateway embeds in the system message.
const (
	markRequirements = `"suggested_description"`
	markIntent       = `"primary_intent"`
	markTaxonomy     = `"rationale"`
	markDependencies = `"prerequisites"`
	markPlan         = `"content_outline"`
	markGeneration   = `"code_example_count"`
	markCompliance   = `"frontmatter_valid"`
	markQuality      = `"usefulness"`
	markRefine       = `"changes"`

	// incorporate_feedback shares the generation schema, so it is routed on
	// its instruction text and must be registered before markGeneration.
	markFeedback = "address the user's feedback"
)

func testGateway(provider llm.Provider) *inference.Gateway {
	return inference.NewGateway(provider, inference.WithRetryPolicy(inference.RetryPolicy{
		MaxRetries:      1,
		BackoffStrategy: inference.BackoffConstant,
	}))
}

func respJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

const testContent = `---
name: go-testing
description: Practical Go testing techniques with the standard toolchain.
tags: [go, testing]
---

Practical guidance for writing Go tests with the standard toolchain and testify.

## Overview

Go ships a capable test runner; testify adds assertions.

## Table-Driven Tests

Prefer table-driven tests when cases share structure.
`

const refinedContent = `---
name: go-testing
description: Practical Go testing techniques with the standard toolchain.
tags: [go, testing]
---

Refined guidance for writing Go tests with the standard toolchain and testify.

## Overview

Go ships a capable test runner; testify adds assertions and test suites.

## Table-Driven Tests

Prefer table-driven tests when cases share structure and name every case.
`

func testRequirements(ambiguities ...string) RequirementsResult {
	return RequirementsResult{
		Domain:               "software-engineering",
		Category:             "engineering",
		TargetLevel:          "intermediate",
		Topics:               []string{"unit testing", "table-driven tests"},
		Ambiguities:          ambiguities,
		SuggestedName:        "go-testing",
		SuggestedDescription: "Practical Go testing techniques with the standard toolchain.",
	}
}

func testIntent() IntentResult {
	return IntentResult{
		PrimaryIntent: "teach practical Go testing",
		UseCases:      []string{"writing new tests", "reviewing test coverage"},
	}
}

func testTaxonomy(confidence float64) TaxonomyResult {
	return TaxonomyResult{
		Path:       "engineering/go",
		Confidence: confidence,
		Rationale:  "language-specific engineering skill",
	}
}

func testPlan() skill.Plan {
	return skill.Plan{
		SkillName:       "go-testing",
		Description:     "Practical Go testing techniques with the standard toolchain.",
		TaxonomyPath:    "engineering/go",
		ContentOutline:  []string{"Overview", "Table-Driven Tests"},
		SuccessCriteria: []string{"covers table-driven tests"},
		EstimatedLength: "medium",
		Tags:            []string{"go", "testing"},
		Category:        "engineering",
	}
}

func testGeneration(content string) skill.GenerationResult {
	return skill.GenerationResult{
		Content:  content,
		Sections: []string{"Overview", "Table-Driven Tests"},
	}
}

func testCompliance(score float64) ComplianceResult {
	return ComplianceResult{
		Score:             score,
		FrontmatterValid:  true,
		CriteriaSatisfied: []string{"covers table-driven tests"},
	}
}

func testQuality(score float64) QualityResult {
	return QualityResult{
		Score:          score,
		Completeness:   score,
		Clarity:        score,
		Usefulness:     score,
		VerbosityScore: 0.3,
		TestCases: &skill.TestCases{
			Positive: []string{"how do I write a table-driven test"},
			Negative: []string{"how do I test a React component"},
		},
	}
}

func testRefine(content string) RefineResult {
	return RefineResult{
		Content:  content,
		Sections: []string{"Overview", "Table-Driven Tests"},
		Changes:  []string{"tightened prose"},
	}
}

// happyProvider routes every pipeline call to a passing response. Individual
// tests re-route the calls they want to behave differently.
func happyProvider(t *testing.T) *routingProvider {
	t.Helper()
	return newRoutingProvider().
		route(markRequirements, respJSON(t, testRequirements())).
		route(markIntent, respJSON(t, testIntent())).
		route(markTaxonomy, respJSON(t, testTaxonomy(0.9))).
		route(markDependencies, `{"prerequisites": ["basic Go"]}`).
		route(markPlan, respJSON(t, testPlan())).
		route(markFeedback, respJSON(t, testGeneration(refinedContent))).
		route(markGeneration, respJSON(t, testGeneration(testContent))).
		route(markCompliance, respJSON(t, testCompliance(0.9))).
		route(markQuality, respJSON(t, testQuality(0.85))).
		route(markRefine, respJSON(t, testRefine(refinedContent)))
}
