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

// PhaseStatus is how a phase engine reports its outcome to the Controller.
type PhaseStatus string

const (
	// PhaseCompleted means the phase produced its output.
	PhaseCompleted PhaseStatus = "completed"

	// PhasePendingHITL means the phase needs human input before it can
	// produce its output.
	PhasePendingHITL PhaseStatus = "pending_hitl"
)

// UnderstandingInput carries everything the understanding phase needs for a
// fresh run or a resume.
type UnderstandingInput struct {
	TaskDescription   string
	UserContext       map[string]string
	TaxonomyStructure map[string]any
	ExistingSkills    []string

	// Bundle holds prior outputs when resuming; nil on a fresh run.
	Bundle *UnderstandingBundle

	// Response is the human answer when resuming from a suspension.
	Response *HITLResponse

	// ResumeKind is the kind of the request being answered.
	ResumeKind HITLKind

	Emitter *events.Emitter
}

// UnderstandingOutcome is the phase result: either a completed bundle with a
// validated plan, or a pending request with the partial bundle to persist.
type UnderstandingOutcome struct {
	Status  PhaseStatus
	Bundle  *UnderstandingBundle
	Request *HITLRequest
}

// UnderstandingEngine runs the five-step understanding phase: gather
// requirements, analyze intent and taxonomy placement concurrently, analyze
// dependencies, and synthesize the plan.
type UnderstandingEngine struct {
	gateway    *inference.Gateway
	thresholds quality.Thresholds
	logger     *slog.Logger
}

// NewUnderstandingEngine creates an understanding engine.
func NewUnderstandingEngine(gateway *inference.Gateway, thresholds quality.Thresholds, logger *slog.Logger) *UnderstandingEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &UnderstandingEngine{
		gateway:    gateway,
		thresholds: thresholds,
		logger:     logger.With("phase", PhaseUnderstanding.String()),
	}
}

// Run executes the phase from wherever the bundle left off. A suspension
// returns the partial bundle so the Controller can persist it; resuming with
// the answered response picks up at the step that suspended.
func (e *UnderstandingEngine) Run(ctx context.Context, in UnderstandingInput) (*UnderstandingOutcome, error) {
	bundle := in.Bundle
	if bundle == nil {
		bundle = &UnderstandingBundle{}
	}

	if in.Response != nil {
		e.applyResponse(bundle, in.ResumeKind, in.Response)
	}

	// Step 1: requirements.
	if bundle.Requirements == nil {
		req, degraded, err := e.gatherRequirements(ctx, in)
		if err != nil {
			return nil, err
		}
		bundle.Requirements = req
		bundle.Degraded = bundle.Degraded || degraded
	}

	// Structural pre-check on the suggested identity. Catching a bad name
	// here is one cheap call instead of a full generation round.
	if !bundle.StructureFixed {
		if request := e.structureCheck(bundle.Requirements); request != nil {
			return &UnderstandingOutcome{Status: PhasePendingHITL, Bundle: bundle, Request: request}, nil
		}
	}

	// Ambiguity gate: too many open questions means a wrong skill is more
	// likely than a right one, so ask instead of guessing.
	if !bundle.Clarified && len(bundle.Requirements.Ambiguities) > e.thresholds.MaxAmbiguities {
		return &UnderstandingOutcome{
			Status:  PhasePendingHITL,
			Bundle:  bundle,
			Request: clarifyRequest(bundle.Requirements.Ambiguities),
		}, nil
	}

	// Steps 2+3: intent and taxonomy placement are independent of each
	// other, so they run concurrently.
	if bundle.Intent == nil || bundle.Taxonomy == nil {
		if err := e.analyzeConcurrently(ctx, in, bundle); err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Step 4: dependencies.
	if bundle.Dependencies == nil {
		deps, degraded, err := e.analyzeDependencies(ctx, in, bundle)
		if err != nil {
			return nil, err
		}
		bundle.Dependencies = deps
		bundle.Degraded = bundle.Degraded || degraded
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Step 5: plan synthesis.
	if bundle.Plan == nil {
		plan, err := e.synthesizePlan(ctx, in, bundle)
		if err != nil {
			return nil, err
		}
		bundle.Plan = plan
	}

	return &UnderstandingOutcome{Status: PhaseCompleted, Bundle: bundle}, nil
}

// applyResponse folds a human answer into the bundle before execution
// continues.
func (e *UnderstandingEngine) applyResponse(bundle *UnderstandingBundle, kind HITLKind, resp *HITLResponse) {
	switch kind {
	case HITLClarify:
		if bundle.ClarifyAnswers == nil {
			bundle.ClarifyAnswers = make(map[string]string, len(resp.Answers))
		}
		for id, answer := range resp.Answers {
			bundle.ClarifyAnswers[id] = answer
		}
		bundle.Clarified = true
	case HITLStructureFix:
		if resp.CorrectedName != "" && bundle.Requirements != nil {
			bundle.Requirements.SuggestedName = resp.CorrectedName
		}
		if resp.CorrectedDescription != "" && bundle.Requirements != nil {
			bundle.Requirements.SuggestedDescription = resp.CorrectedDescription
		}
		bundle.StructureFixed = true
	}
}

func (e *UnderstandingEngine) gatherRequirements(ctx context.Context, in UnderstandingInput) (*RequirementsResult, bool, error) {
	call := inference.Call{
		Module:      ModuleGatherRequirements,
		Phase:       PhaseUnderstanding.String(),
		Instruction: instructionGatherRequirements,
		Input: RequirementsInput{
			TaskDescription: in.TaskDescription,
			UserContext:     in.UserContext,
			ExistingSkills:  in.ExistingSkills,
		},
		Format:  types.NewJSONSchemaFormat("requirements", RequirementsSchema()),
		Emitter: in.Emitter,
	}

	req, result, err := inference.InvokeAs[RequirementsResult](ctx, e.gateway, call)
	if err != nil {
		return nil, false, NewPhaseFailedError(PhaseUnderstanding, err)
	}
	return &req, result.Degraded, nil
}

// structureCheck validates the suggested name and description against the
// naming contract. Returns a suspension request when either fails.
func (e *UnderstandingEngine) structureCheck(req *RequirementsResult) *HITLRequest {
	var nameErrors, descErrors []string

	if err := skill.ValidateSkillName(req.SuggestedName); err != nil {
		nameErrors = append(nameErrors, err.Error())
	}
	if err := skill.ValidateDescription(req.SuggestedDescription); err != nil {
		descErrors = append(descErrors, err.Error())
	}

	if len(nameErrors) == 0 && len(descErrors) == 0 {
		return nil
	}

	payload := &StructureFixPayload{
		NameErrors:        nameErrors,
		DescriptionErrors: descErrors,
	}
	if len(nameErrors) > 0 {
		payload.SuggestedName = skill.Slugify(req.SuggestedName)
	}

	e.logger.Warn("structural pre-check failed",
		"name", req.SuggestedName,
		"name_errors", len(nameErrors),
		"description_errors", len(descErrors))

	return &HITLRequest{Kind: HITLStructureFix, StructureFix: payload}
}

// clarifyRequest turns detected ambiguities into questions. Question IDs are
// positional so answers map back deterministically.
func clarifyRequest(ambiguities []string) *HITLRequest {
	questions := make([]ClarifyQuestion, len(ambiguities))
	for i, ambiguity := range ambiguities {
		questions[i] = ClarifyQuestion{
			ID:       fmt.Sprintf("q%d", i+1),
			Question: ambiguity,
		}
	}
	return &HITLRequest{Kind: HITLClarify, Clarify: &ClarifyPayload{Questions: questions}}
}

// analyzeConcurrently runs intent analysis and taxonomy placement in
// parallel. Both results are collected before either error is acted on, so a
// failure in one never abandons a goroutine mid-call.
func (e *UnderstandingEngine) analyzeConcurrently(ctx context.Context, in UnderstandingInput, bundle *UnderstandingBundle) error {
	type intentOut struct {
		result   *IntentResult
		degraded bool
		err      error
	}
	type taxonomyOut struct {
		result   *TaxonomyResult
		degraded bool
		err      error
	}

	intentCh := make(chan intentOut, 1)
	taxonomyCh := make(chan taxonomyOut, 1)

	if bundle.Intent == nil {
		go func() {
			call := inference.Call{
				Module:      ModuleAnalyzeIntent,
				Phase:       PhaseUnderstanding.String(),
				Instruction: instructionAnalyzeIntent,
				Input: IntentInput{
					TaskDescription: in.TaskDescription,
					Requirements:    bundle.Requirements,
				},
				Format:  types.NewJSONSchemaFormat("intent", IntentSchema()),
				Emitter: in.Emitter,
			}
			result, res, err := inference.InvokeAs[IntentResult](ctx, e.gateway, call)
			if err != nil {
				intentCh <- intentOut{err: err}
				return
			}
			intentCh <- intentOut{result: &result, degraded: res.Degraded}
		}()
	} else {
		intentCh <- intentOut{result: bundle.Intent}
	}

	if bundle.Taxonomy == nil {
		go func() {
			call := inference.Call{
				Module:      ModuleFindTaxonomyPath,
				Phase:       PhaseUnderstanding.String(),
				Instruction: instructionFindTaxonomyPath,
				Input: TaxonomyInput{
					Requirements:      bundle.Requirements,
					TaxonomyStructure: in.TaxonomyStructure,
				},
				Format:  types.NewJSONSchemaFormat("taxonomy", TaxonomySchema()),
				Emitter: in.Emitter,
			}
			result, res, err := inference.InvokeAs[TaxonomyResult](ctx, e.gateway, call)
			if err != nil {
				taxonomyCh <- taxonomyOut{err: err}
				return
			}
			taxonomyCh <- taxonomyOut{result: &result, degraded: res.Degraded}
		}()
	} else {
		taxonomyCh <- taxonomyOut{result: bundle.Taxonomy}
	}

	intent := <-intentCh
	taxonomy := <-taxonomyCh

	if intent.err != nil {
		return NewPhaseFailedError(PhaseUnderstanding, intent.err)
	}
	if taxonomy.err != nil {
		return NewPhaseFailedError(PhaseUnderstanding, taxonomy.err)
	}

	bundle.Intent = intent.result
	bundle.Taxonomy = taxonomy.result
	bundle.Degraded = bundle.Degraded || intent.degraded || taxonomy.degraded
	return nil
}

func (e *UnderstandingEngine) analyzeDependencies(ctx context.Context, in UnderstandingInput, bundle *UnderstandingBundle) (*DependenciesResult, bool, error) {
	call := inference.Call{
		Module:      ModuleAnalyzeDependencies,
		Phase:       PhaseUnderstanding.String(),
		Instruction: instructionAnalyzeDependencies,
		Input: DependenciesInput{
			Requirements: bundle.Requirements,
			Intent:       bundle.Intent,
		},
		Format:   types.NewJSONSchemaFormat("dependencies", DependenciesSchema()),
		Fallback: []byte(`{}`),
		Emitter:  in.Emitter,
	}

	deps, result, err := inference.InvokeAs[DependenciesResult](ctx, e.gateway, call)
	if err != nil {
		return nil, false, NewPhaseFailedError(PhaseUnderstanding, err)
	}
	return &deps, result.Degraded, nil
}

func (e *UnderstandingEngine) synthesizePlan(ctx context.Context, in UnderstandingInput, bundle *UnderstandingBundle) (*skill.Plan, error) {
	call := inference.Call{
		Module:      ModuleSynthesizePlan,
		Phase:       PhaseUnderstanding.String(),
		Instruction: instructionSynthesizePlan,
		Input: PlanInput{
			TaskDescription: in.TaskDescription,
			Requirements:    bundle.Requirements,
			Intent:          bundle.Intent,
			Taxonomy:        bundle.Taxonomy,
			Dependencies:    bundle.Dependencies,
			ClarifyAnswers:  bundle.ClarifyAnswers,
		},
		Format:  types.NewJSONSchemaFormat("plan", PlanSchema()),
		Emitter: in.Emitter,
	}

	plan, _, err := inference.InvokeAs[skill.Plan](ctx, e.gateway, call)
	if err != nil {
		return nil, NewPhaseFailedError(PhaseUnderstanding, err)
	}

	// The model may drift from the pre-checked identity; the validated
	// values win.
	if skill.ValidateSkillName(plan.SkillName) != nil {
		e.logger.Warn("plan skill name failed validation, using pre-checked name",
			"plan_name", plan.SkillName,
			"name", bundle.Requirements.SuggestedName)
		plan.SkillName = bundle.Requirements.SuggestedName
	}
	if plan.Description == "" || skill.ValidateDescription(plan.Description) != nil {
		plan.Description = bundle.Requirements.SuggestedDescription
	}
	if plan.TaxonomyPath == "" || skill.ValidateTaxonomyPath(plan.TaxonomyPath) != nil {
		plan.TaxonomyPath = bundle.Taxonomy.Path
	}
	if plan.Category == "" {
		plan.Category = bundle.Requirements.Category
	}

	if bundle.Taxonomy.Confidence < e.thresholds.TaxonomyConfidenceMin {
		plan.PlacementWarning = fmt.Sprintf(
			"taxonomy placement confidence %.2f is below the %.2f minimum; path %q should be reviewed",
			bundle.Taxonomy.Confidence, e.thresholds.TaxonomyConfidenceMin, plan.TaxonomyPath)
		e.logger.Warn("low taxonomy placement confidence",
			"confidence", bundle.Taxonomy.Confidence,
			"path", plan.TaxonomyPath)
	}

	if err := plan.Validate(); err != nil {
		return nil, NewPhaseFailedError(PhaseUnderstanding, err)
	}

	return &plan, nil
}
