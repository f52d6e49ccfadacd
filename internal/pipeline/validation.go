package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Qredence/skill-fleet/internal/events"
	"github.com/Qredence/skill-fleet/internal/inference"
	"github.com/Qredence/skill-fleet/internal/quality"
	"github.com/Qredence/skill-fleet/internal/skill"
	"github.com/Qredence/skill-fleet/internal/types"
)

// complianceWeight and qualityWeight combine the two assessment scores into
// the overall score. Quality dominates: a document can match its plan to the
// letter and still be a bad skill.
const (
	complianceWeight = 0.4
	qualityWeight    = 0.6
)

// ValidationInput carries what the validation phase needs for a fresh run or
// a review resume.
type ValidationInput struct {
	Plan   *skill.Plan
	Result *skill.GenerationResult

	// EnableReview requests a human review when the score lands in the
	// borderline band around the pass threshold.
	EnableReview bool

	// PriorReport is the report produced before a review suspension.
	PriorReport *skill.ValidationReport

	// Response is the human answer to a pending request; nil on fresh runs.
	Response *HITLResponse

	// ResumeKind identifies which suspension the response answers.
	ResumeKind HITLKind

	Emitter *events.Emitter
}

// ValidationOutcome is the phase result. Content carries the final document,
// which may differ from the input after refinement.
type ValidationOutcome struct {
	Status  PhaseStatus
	Report  *skill.ValidationReport
	Content string
	Request *HITLRequest
}

// ValidationEngine audits generated content against its plan, refines it
// within a bounded loop when it falls short, and assembles the final report.
type ValidationEngine struct {
	gateway    *inference.Gateway
	thresholds quality.Thresholds
	logger     *slog.Logger
}

// NewValidationEngine creates a validation engine.
func NewValidationEngine(gateway *inference.Gateway, thresholds quality.Thresholds, logger *slog.Logger) *ValidationEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &ValidationEngine{
		gateway:    gateway,
		thresholds: thresholds,
		logger:     logger.With("phase", PhaseValidation.String()),
	}
}

// Run executes the phase. A review proceed finalizes the prior report as
// computed; a review revise buys one more refinement pass and a fresh
// assessment. A structure_fix resume applies the user's rewrite directions
// to content that failed the security scan.
func (e *ValidationEngine) Run(ctx context.Context, in ValidationInput) (*ValidationOutcome, error) {
	if in.Plan == nil || in.Result == nil {
		return nil, NewPhaseFailedError(PhaseValidation, fmt.Errorf("nothing to validate"))
	}

	content := in.Result.Content
	priorIterations := 0
	wasRefined := false
	allowBand := in.EnableReview

	if in.Response != nil {
		switch in.ResumeKind {
		case HITLStructureFix:
			refined, err := e.refineWith(ctx, in, content, securityErrors(content), responseFeedback(in.Response))
			if err != nil {
				return nil, err
			}
			content = refined
			wasRefined = true
		case HITLReview:
			if in.PriorReport == nil {
				return nil, NewPhaseFailedError(PhaseValidation, fmt.Errorf("review resume without a prior report"))
			}
			switch in.Response.Action {
			case ActionProceed:
				return &ValidationOutcome{Status: PhaseCompleted, Report: in.PriorReport, Content: content}, nil
			case ActionRevise:
				refined, err := e.refine(ctx, in, content, in.PriorReport)
				if err != nil {
					return nil, err
				}
				content = refined
				wasRefined = true
				priorIterations = in.PriorReport.RefinementIterations + 1
				// The revise round does not re-enter the review band,
				// the recomputed report is final.
				allowBand = false
			default:
				return nil, NewInvalidResponseError(fmt.Sprintf("unexpected action %q for review", in.Response.Action))
			}
		default:
			return nil, NewInvalidResponseError(fmt.Sprintf("unexpected resume kind %q for validation", in.ResumeKind))
		}
	}

	// Security pre-check. Findings are fatal for this attempt: they suspend
	// for human correction instead of entering the refinement loop.
	if req := e.securityGate(content); req != nil {
		return &ValidationOutcome{Status: PhasePendingHITL, Content: content, Request: req}, nil
	}

	report, content, err := e.assess(ctx, in, content, priorIterations, wasRefined)
	if err != nil {
		return nil, err
	}

	// Refinement rewrites the document, so the final content gets the same
	// gate before a report can land.
	if req := e.securityGate(content); req != nil {
		return &ValidationOutcome{Status: PhasePendingHITL, Content: content, Request: req}, nil
	}

	if allowBand && e.thresholds.InReviewBand(report.Score) {
		e.logger.Info("score in review band, requesting human review",
			"score", report.Score,
			"pass_score", e.thresholds.ValidationPassScore)
		return &ValidationOutcome{
			Status:  PhasePendingHITL,
			Report:  report,
			Content: content,
			Request: &HITLRequest{
				Kind:   HITLReview,
				Review: &ReviewPayload{Report: report, Content: content},
			},
		}, nil
	}

	return &ValidationOutcome{Status: PhaseCompleted, Report: report, Content: content}, nil
}

// securityGate scans the document for injection markers and builds the
// structure_fix suspension when any are found.
func (e *ValidationEngine) securityGate(content string) *HITLRequest {
	errs := securityErrors(content)
	if len(errs) == 0 {
		return nil
	}

	e.logger.Warn("content failed security scan", "findings", len(errs))
	return &HITLRequest{
		Kind:         HITLStructureFix,
		StructureFix: &StructureFixPayload{ContentErrors: errs},
	}
}

// securityErrors formats the injection-scan findings for reports and
// suspension payloads.
func securityErrors(content string) []string {
	var errs []string
	for _, finding := range skill.ScanContent(content) {
		errs = append(errs, fmt.Sprintf("suspicious content: %s", finding))
	}
	return errs
}

// responseFeedback folds a response's free-text feedback and requested
// changes into one direction list.
func responseFeedback(resp *HITLResponse) []string {
	feedback := resp.RequestedChanges
	if resp.Feedback != "" {
		feedback = append([]string{resp.Feedback}, feedback...)
	}
	return feedback
}

// assess runs the compliance and quality calls, refines within the iteration
// budget when the content falls short, and builds the report. priorIterations
// seeds the refinement counter on review resumes; wasRefined forces the
// refined flag for content that was rewritten before this assessment.
func (e *ValidationEngine) assess(ctx context.Context, in ValidationInput, content string, priorIterations int, wasRefined bool) (*skill.ValidationReport, string, error) {
	iterations := priorIterations

	compliance, qual, err := e.score(ctx, in, content)
	if err != nil {
		return nil, "", err
	}
	score := combineScores(compliance.Score, qual.Score)
	errors := hardErrors(compliance)

	// Refinement: only content that would not pass gets rewritten, and
	// once started the loop drives toward the target score, not just past
	// the pass line.
	needsWork := score < e.thresholds.ValidationPassScore || len(errors) > 0
	for needsWork && iterations < e.thresholds.MaxRefinementIterations {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		iterations++
		e.logger.Info("refining content",
			"iteration", iterations,
			"score", score,
			"errors", len(errors))

		refined, err := e.refineWith(ctx, in, content, errors, qual.Suggestions)
		if err != nil {
			return nil, "", err
		}
		content = refined

		compliance, qual, err = e.score(ctx, in, content)
		if err != nil {
			return nil, "", err
		}
		score = combineScores(compliance.Score, qual.Score)
		errors = hardErrors(compliance)

		needsWork = (score < e.thresholds.RefinementTargetScore || len(errors) > 0)
	}

	report := e.buildReport(in.Plan, content, compliance, qual, score, errors, iterations, wasRefined || iterations > priorIterations)
	return report, content, nil
}

// score runs the compliance and quality assessment calls.
func (e *ValidationEngine) score(ctx context.Context, in ValidationInput, content string) (*ComplianceResult, *QualityResult, error) {
	complianceCall := inference.Call{
		Module:      ModuleCheckCompliance,
		Phase:       PhaseValidation.String(),
		Instruction: instructionCheckCompliance,
		Input:       ComplianceInput{Content: content, Plan: in.Plan},
		Format:      types.NewJSONSchemaFormat("compliance", ComplianceSchema()),
		Emitter:     in.Emitter,
	}
	compliance, _, err := inference.InvokeAs[ComplianceResult](ctx, e.gateway, complianceCall)
	if err != nil {
		return nil, nil, NewPhaseFailedError(PhaseValidation, err)
	}

	qualityCall := inference.Call{
		Module:      ModuleAssessQuality,
		Phase:       PhaseValidation.String(),
		Instruction: instructionAssessQuality,
		Input:       QualityInput{Content: content, Plan: in.Plan},
		Format:      types.NewJSONSchemaFormat("quality", QualitySchema()),
		Emitter:     in.Emitter,
	}
	qual, _, err := inference.InvokeAs[QualityResult](ctx, e.gateway, qualityCall)
	if err != nil {
		return nil, nil, NewPhaseFailedError(PhaseValidation, err)
	}

	return &compliance, &qual, nil
}

// refineWith runs the refine_content call against the current shortfalls.
func (e *ValidationEngine) refineWith(ctx context.Context, in ValidationInput, content string, errors, suggestions []string) (string, error) {
	call := inference.Call{
		Module:      ModuleRefineContent,
		Phase:       PhaseValidation.String(),
		Instruction: instructionRefineContent,
		Input: RefineInput{
			Content:     content,
			Plan:        in.Plan,
			Errors:      errors,
			Suggestions: suggestions,
			TargetScore: e.thresholds.RefinementTargetScore,
		},
		Format:  types.NewJSONSchemaFormat("refinement", RefineSchema()),
		Emitter: in.Emitter,
	}

	result, _, err := inference.InvokeAs[RefineResult](ctx, e.gateway, call)
	if err != nil {
		return "", NewPhaseFailedError(PhaseValidation, err)
	}
	if result.Content == "" {
		return "", NewPhaseFailedError(PhaseValidation, fmt.Errorf("refinement returned empty content"))
	}
	return result.Content, nil
}

// refine applies review feedback as one refinement pass.
func (e *ValidationEngine) refine(ctx context.Context, in ValidationInput, content string, prior *skill.ValidationReport) (string, error) {
	return e.refineWith(ctx, in, content, prior.Errors, responseFeedback(in.Response))
}

// combineScores folds compliance and quality into the overall score.
func combineScores(compliance, qual float64) float64 {
	return complianceWeight*compliance + qualityWeight*qual
}

// hardErrors collects the failures that block a pass regardless of score:
// missing planned sections and broken frontmatter. Security findings never
// reach here; the gate in Run suspends before any assessment.
func hardErrors(compliance *ComplianceResult) []string {
	var errs []string

	if !compliance.FrontmatterValid {
		errs = append(errs, "frontmatter is missing or malformed")
	}
	for _, section := range compliance.MissingSections {
		errs = append(errs, fmt.Sprintf("missing planned section: %s", section))
	}

	return errs
}

// buildReport assembles the final report. Passed is computed here and nowhere
// else: no errors and a score at or above the pass threshold.
func (e *ValidationEngine) buildReport(plan *skill.Plan, content string, compliance *ComplianceResult, qual *QualityResult, score float64, errors []string, iterations int, wasRefined bool) *skill.ValidationReport {
	wordCount := skill.CountWords(content)
	sizeClass := skill.ClassifySize(wordCount, e.thresholds.MinWordCount, e.thresholds.MaxWordCount)

	var warnings []string
	if sizeClass != skill.SizeOptimal {
		warnings = append(warnings, fmt.Sprintf("document is %s: %d words (acceptable range %d-%d)",
			sizeClass, wordCount, e.thresholds.MinWordCount, e.thresholds.MaxWordCount))
	}
	if qual.VerbosityScore > e.thresholds.VerbosityMax {
		warnings = append(warnings, fmt.Sprintf("verbosity %.2f exceeds the %.2f maximum",
			qual.VerbosityScore, e.thresholds.VerbosityMax))
	}
	if plan.PlacementWarning != "" {
		warnings = append(warnings, plan.PlacementWarning)
	}
	warnings = append(warnings, compliance.Issues...)

	checks := []string{
		fmt.Sprintf("plan compliance: %.2f", compliance.Score),
		fmt.Sprintf("content quality: %.2f (completeness %.2f, clarity %.2f, usefulness %.2f)",
			qual.Score, qual.Completeness, qual.Clarity, qual.Usefulness),
		fmt.Sprintf("word count: %d (%s)", wordCount, sizeClass),
		fmt.Sprintf("verbosity: %.2f", qual.VerbosityScore),
	}
	if len(compliance.CriteriaSatisfied) > 0 {
		checks = append(checks, fmt.Sprintf("success criteria satisfied: %d", len(compliance.CriteriaSatisfied)))
	}

	report := &skill.ValidationReport{
		Passed:               len(errors) == 0 && score >= e.thresholds.ValidationPassScore,
		Score:                score,
		Errors:               errors,
		Warnings:             warnings,
		Checks:               checks,
		WordCount:            wordCount,
		SizeClass:            sizeClass,
		VerbosityScore:       qual.VerbosityScore,
		WasRefined:           wasRefined,
		RefinementIterations: iterations,
	}
	if qual.TestCases != nil {
		report.TestCases = *qual.TestCases
	}

	e.logger.Info("validation complete",
		"passed", report.Passed,
		"score", report.Score,
		"errors", len(report.Errors),
		"refinement_iterations", iterations)

	return report
}
