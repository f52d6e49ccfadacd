package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Qredence/skill-fleet/internal/events"
	"github.com/Qredence/skill-fleet/internal/inference"
	"github.com/Qredence/skill-fleet/internal/quality"
	"github.com/Qredence/skill-fleet/internal/skill"
	"github.com/Qredence/skill-fleet/internal/types"
)

// GenerationInput carries what the generation phase needs for a fresh run or
// a preview resume.
type GenerationInput struct {
	Plan  *skill.Plan
	Style skill.Style

	// EnablePreview requests a preview suspension after content exists.
	EnablePreview bool

	// Current is the previously generated content when resuming.
	Current *skill.GenerationResult

	// Response is the human answer to a preview request; nil on fresh runs.
	Response *HITLResponse

	Emitter *events.Emitter
}

// GenerationOutcome is the phase result.
type GenerationOutcome struct {
	Status  PhaseStatus
	Result  *skill.GenerationResult
	Request *HITLRequest
}

// GenerationEngine turns a plan into a skill document and optionally holds it
// for a preview round before validation.
type GenerationEngine struct {
	gateway    *inference.Gateway
	thresholds quality.Thresholds
	logger     *slog.Logger
}

// NewGenerationEngine creates a generation engine.
func NewGenerationEngine(gateway *inference.Gateway, thresholds quality.Thresholds, logger *slog.Logger) *GenerationEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerationEngine{
		gateway:    gateway,
		thresholds: thresholds,
		logger:     logger.With("phase", PhaseGeneration.String()),
	}
}

// Run executes the phase. On a preview revise the feedback is incorporated
// and a fresh preview is offered; each revision round is its own suspension.
func (e *GenerationEngine) Run(ctx context.Context, in GenerationInput) (*GenerationOutcome, error) {
	if in.Plan == nil {
		return nil, NewPhaseFailedError(PhaseGeneration, fmt.Errorf("no plan to generate from"))
	}

	style := in.Style
	if !style.IsValid() {
		style = skill.StyleComprehensive
	}

	// Preview resume: proceed releases the held content, revise runs a
	// feedback pass and offers a new preview.
	if in.Response != nil && in.Current != nil {
		switch in.Response.Action {
		case ActionProceed:
			return &GenerationOutcome{Status: PhaseCompleted, Result: in.Current}, nil
		case ActionRevise:
			revised, err := e.incorporateFeedback(ctx, in)
			if err != nil {
				return nil, err
			}
			return &GenerationOutcome{
				Status:  PhasePendingHITL,
				Result:  revised,
				Request: previewRequest(revised),
			}, nil
		default:
			return nil, NewInvalidResponseError(fmt.Sprintf("unexpected action %q for preview", in.Response.Action))
		}
	}

	result := in.Current
	if result == nil {
		generated, err := e.generate(ctx, in, style)
		if err != nil {
			return nil, err
		}
		result = generated
	}

	if in.EnablePreview {
		return &GenerationOutcome{
			Status:  PhasePendingHITL,
			Result:  result,
			Request: previewRequest(result),
		}, nil
	}

	return &GenerationOutcome{Status: PhaseCompleted, Result: result}, nil
}

func (e *GenerationEngine) generate(ctx context.Context, in GenerationInput, style skill.Style) (*skill.GenerationResult, error) {
	call := inference.Call{
		Module:      ModuleGenerateContent,
		Phase:       PhaseGeneration.String(),
		Instruction: instructionGenerateContent,
		Input: GenerateInput{
			Plan:  in.Plan,
			Style: style,
		},
		Format:  types.NewJSONSchemaFormat("generation", GenerationSchema()),
		Stream:  true,
		Emitter: in.Emitter,
	}

	result, _, err := inference.InvokeAs[skill.GenerationResult](ctx, e.gateway, call)
	if err != nil {
		return nil, NewPhaseFailedError(PhaseGeneration, err)
	}
	if strings.TrimSpace(result.Content) == "" {
		return nil, NewPhaseFailedError(PhaseGeneration, fmt.Errorf("model returned empty content"))
	}

	e.logger.Info("content generated",
		"skill", in.Plan.SkillName,
		"words", skill.CountWords(result.Content),
		"sections", len(result.Sections))

	return &result, nil
}

func (e *GenerationEngine) incorporateFeedback(ctx context.Context, in GenerationInput) (*skill.GenerationResult, error) {
	call := inference.Call{
		Module:      ModuleIncorporateFeedback,
		Phase:       PhaseGeneration.String(),
		Instruction: instructionIncorporateFeedback,
		Input: FeedbackInput{
			Plan:             in.Plan,
			CurrentContent:   in.Current.Content,
			Feedback:         in.Response.Feedback,
			RequestedChanges: in.Response.RequestedChanges,
		},
		Format:  types.NewJSONSchemaFormat("generation", GenerationSchema()),
		Stream:  true,
		Emitter: in.Emitter,
	}

	result, _, err := inference.InvokeAs[skill.GenerationResult](ctx, e.gateway, call)
	if err != nil {
		return nil, NewPhaseFailedError(PhaseGeneration, err)
	}
	if strings.TrimSpace(result.Content) == "" {
		return nil, NewPhaseFailedError(PhaseGeneration, fmt.Errorf("model returned empty content on revision"))
	}

	e.logger.Info("feedback incorporated",
		"skill", in.Plan.SkillName,
		"requested_changes", len(in.Response.RequestedChanges))

	return &result, nil
}

// previewRequest summarises generated content for the user. The summary is
// the first non-frontmatter paragraph, truncated.
func previewRequest(result *skill.GenerationResult) *HITLRequest {
	return &HITLRequest{
		Kind: HITLPreview,
		Preview: &PreviewPayload{
			Summary:   contentSummary(result.Content, 400),
			Sections:  result.Sections,
			WordCount: skill.CountWords(result.Content),
		},
	}
}

func contentSummary(content string, limit int) string {
	body := content

	// Skip YAML frontmatter when present.
	if strings.HasPrefix(body, "---") {
		if idx := strings.Index(body[3:], "\n---"); idx >= 0 {
			body = body[3+idx+4:]
		}
	}

	for _, paragraph := range strings.Split(body, "\n\n") {
		trimmed := strings.TrimSpace(paragraph)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if len(trimmed) > limit {
			return trimmed[:limit] + "..."
		}
		return trimmed
	}

	if len(body) > limit {
		return strings.TrimSpace(body[:limit]) + "..."
	}
	return strings.TrimSpace(body)
}
