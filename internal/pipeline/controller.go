package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Qredence/skill-fleet/internal/events"
	"github.com/Qredence/skill-fleet/internal/inference"
	"github.com/Qredence/skill-fleet/internal/quality"
	"github.com/Qredence/skill-fleet/internal/skill"
	"github.com/Qredence/skill-fleet/internal/taxonomy"
	"github.com/Qredence/skill-fleet/internal/types"
)

// ExecuteRequest starts a new generation job.
type ExecuteRequest struct {
	TaskDescription string
	UserContext     map[string]string
	Style           skill.Style
	EnablePreview   bool
	EnableReview    bool
}

// Validate checks the request before a job is created.
func (r *ExecuteRequest) Validate() error {
	if strings.TrimSpace(r.TaskDescription) == "" {
		return types.NewError(ErrInvalidResponse, "task description cannot be empty")
	}
	if r.Style != "" && !r.Style.IsValid() {
		return types.NewError(ErrInvalidResponse, fmt.Sprintf("unknown style %q", r.Style))
	}
	return nil
}

// Controller owns job lifecycle: it creates jobs, drives the three phase
// engines in order, persists state at every transition, suspends and resumes
// on human input, and writes finished skills into the taxonomy.
type Controller struct {
	understanding *UnderstandingEngine
	generation    *GenerationEngine
	validation    *ValidationEngine
	store         JobStore
	taxonomy      taxonomy.Store
	bus           events.Bus
	logger        *slog.Logger

	mu     sync.Mutex
	active map[types.ID]context.CancelFunc
}

// ControllerOption configures the controller.
type ControllerOption func(*Controller)

// WithBus sets the event bus progress events are published to.
func WithBus(bus events.Bus) ControllerOption {
	return func(c *Controller) { c.bus = bus }
}

// WithTaxonomyStore sets the taxonomy store completed skills are written to.
// Without one, completed jobs return their content but persist nothing.
func WithTaxonomyStore(store taxonomy.Store) ControllerOption {
	return func(c *Controller) { c.taxonomy = store }
}

// WithControllerLogger sets the logger.
func WithControllerLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewController creates a controller with engines sharing one gateway and one
// threshold policy.
func NewController(gateway *inference.Gateway, store JobStore, thresholds quality.Thresholds, opts ...ControllerOption) *Controller {
	c := &Controller{
		store:  store,
		logger: slog.Default(),
		active: make(map[types.ID]context.CancelFunc),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.understanding = NewUnderstandingEngine(gateway, thresholds, c.logger)
	c.generation = NewGenerationEngine(gateway, thresholds, c.logger)
	c.validation = NewValidationEngine(gateway, thresholds, c.logger)

	return c
}

// Execute runs the pipeline for a new task. It returns when the job reaches a
// terminal state or suspends for human input.
func (c *Controller) Execute(ctx context.Context, req ExecuteRequest) (*PipelineResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	job := NewJob(req.TaskDescription, req.UserContext)
	if err := c.store.Create(ctx, job); err != nil {
		return nil, err
	}

	c.logger.Info("job created", "job_id", job.ID, "style", req.Style)

	rc := &ResumptionContext{
		Phase:         PhaseUnderstanding,
		Style:         req.Style,
		EnablePreview: req.EnablePreview,
		EnableReview:  req.EnableReview,
		UserContext:   req.UserContext,
	}

	if c.taxonomy != nil {
		structure, err := c.taxonomy.Structure(ctx)
		if err != nil {
			c.logger.Warn("taxonomy structure unavailable, placement runs blind", "error", err)
		} else {
			rc.TaxonomyStructure = structure
		}
		skills, err := c.taxonomy.ListSkills(ctx)
		if err != nil {
			c.logger.Warn("existing skill list unavailable", "error", err)
		} else {
			rc.ExistingSkills = skills
		}
	}

	if err := c.transition(ctx, job, JobStatusRunning); err != nil {
		return nil, err
	}

	return c.run(ctx, job, rc, nil, "")
}

// Resume continues a suspended job with the user's response. The response is
// validated against the pending request before any state changes; a rejected
// response leaves the job suspended.
func (c *Controller) Resume(ctx context.Context, jobID types.ID, resp HITLResponse) (*PipelineResult, error) {
	job, err := c.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status.IsTerminal() {
		return nil, NewJobTerminalError(job.ID, job.Status)
	}
	if job.Status != JobStatusPendingHITL {
		return nil, NewResumeMismatchError(job.ID, fmt.Sprintf("job is %s, not awaiting input", job.Status))
	}
	if job.Resumption == nil {
		return nil, NewResumptionCorruptError(fmt.Errorf("suspended job has no resumption context"))
	}

	rc := job.Resumption
	if rc.Request == nil {
		return nil, NewResumptionCorruptError(fmt.Errorf("resumption context has no pending request"))
	}
	if err := resp.ValidateFor(rc.Request); err != nil {
		return nil, err
	}

	if resp.Action == ActionCancel {
		c.logger.Info("job cancelled by response", "job_id", job.ID, "kind", rc.Request.Kind)
		return c.cancelJob(ctx, job)
	}

	resumeKind := rc.Request.Kind
	rc.Request = nil
	job.Resumption = nil

	if err := c.transition(ctx, job, JobStatusRunning); err != nil {
		return nil, err
	}

	c.logger.Info("job resumed", "job_id", job.ID, "kind", resumeKind, "action", resp.Action)

	return c.run(ctx, job, rc, &resp, resumeKind)
}

// Cancel stops a job. Suspended and pending jobs are cancelled immediately;
// running jobs have their context cancelled and finish cooperatively.
func (c *Controller) Cancel(ctx context.Context, jobID types.ID) error {
	job, err := c.store.Get(ctx, jobID)
	if err != nil {
		return err
	}

	if job.Status.IsTerminal() {
		return NewJobTerminalError(job.ID, job.Status)
	}

	switch job.Status {
	case JobStatusPending, JobStatusPendingHITL:
		_, err := c.cancelJob(ctx, job)
		return err
	case JobStatusRunning:
		c.mu.Lock()
		cancel, ok := c.active[jobID]
		c.mu.Unlock()
		if !ok {
			// Running in another process, or the process died mid-run.
			// Mark it cancelled directly.
			_, err := c.cancelJob(ctx, job)
			return err
		}
		cancel()
		return nil
	default:
		return NewInvalidStateError(job.Status, JobStatusCancelled)
	}
}

// run drives the phases in order starting at rc.Phase. The response applies
// only to the phase being resumed into.
func (c *Controller) run(ctx context.Context, job *Job, rc *ResumptionContext, resp *HITLResponse, resumeKind HITLKind) (*PipelineResult, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.active[job.ID] = cancel
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.active, job.ID)
		c.mu.Unlock()
	}()

	emitter := events.ResumeEmitter(c.bus, job.ID, rc.LastEventSeq)
	started := time.Now()

	// Understanding.
	if rc.Phase == PhaseUnderstanding {
		job.SetProgress(PhaseUnderstanding, "analyzing task requirements")
		if err := c.store.Update(ctx, job); err != nil {
			return nil, err
		}
		emitter.PhaseStart(runCtx, PhaseUnderstanding.String())
		phaseStart := time.Now()

		in := UnderstandingInput{
			TaskDescription:   job.TaskDescription,
			UserContext:       rc.UserContext,
			TaxonomyStructure: rc.TaxonomyStructure,
			ExistingSkills:    rc.ExistingSkills,
			Bundle:            rc.Understanding,
			Emitter:           emitter,
		}
		if resp != nil {
			in.Response = resp
			in.ResumeKind = resumeKind
			resp = nil
		}

		outcome, err := c.understanding.Run(runCtx, in)
		if err != nil {
			return c.fail(ctx, job, emitter, PhaseUnderstanding, err)
		}

		rc.Understanding = outcome.Bundle
		if outcome.Status == PhasePendingHITL {
			return c.suspend(ctx, job, emitter, rc, PhaseUnderstanding, outcome.Request)
		}

		emitter.PhaseEnd(runCtx, PhaseUnderstanding.String(), "completed", time.Since(phaseStart))
		rc.Phase = PhaseGeneration
	}

	// Generation.
	if rc.Phase == PhaseGeneration {
		job.SetProgress(PhaseGeneration, "generating skill content")
		if err := c.store.Update(ctx, job); err != nil {
			return nil, err
		}
		emitter.PhaseStart(runCtx, PhaseGeneration.String())
		phaseStart := time.Now()

		in := GenerationInput{
			Plan:          rc.Understanding.Plan,
			Style:         rc.Style,
			EnablePreview: rc.EnablePreview,
			Current:       rc.Generation,
			Emitter:       emitter,
		}
		if resp != nil {
			in.Response = resp
			resp = nil
		}

		outcome, err := c.generation.Run(runCtx, in)
		if err != nil {
			return c.fail(ctx, job, emitter, PhaseGeneration, err)
		}

		rc.Generation = outcome.Result
		if outcome.Status == PhasePendingHITL {
			return c.suspend(ctx, job, emitter, rc, PhaseGeneration, outcome.Request)
		}

		emitter.PhaseEnd(runCtx, PhaseGeneration.String(), "completed", time.Since(phaseStart))
		rc.Phase = PhaseValidation
	}

	// Validation.
	job.SetProgress(PhaseValidation, "validating skill content")
	if err := c.store.Update(ctx, job); err != nil {
		return nil, err
	}
	emitter.PhaseStart(runCtx, PhaseValidation.String())
	phaseStart := time.Now()

	in := ValidationInput{
		Plan:         rc.Understanding.Plan,
		Result:       rc.Generation,
		EnableReview: rc.EnableReview,
		PriorReport:  rc.Report,
		Emitter:      emitter,
	}
	if resp != nil {
		in.Response = resp
		in.ResumeKind = resumeKind
	}

	outcome, err := c.validation.Run(runCtx, in)
	if err != nil {
		return c.fail(ctx, job, emitter, PhaseValidation, err)
	}

	if outcome.Status == PhasePendingHITL {
		rc.Report = outcome.Report
		rc.Generation.Content = outcome.Content
		return c.suspend(ctx, job, emitter, rc, PhaseValidation, outcome.Request)
	}

	emitter.PhaseEnd(runCtx, PhaseValidation.String(), "completed", time.Since(phaseStart))

	return c.finalize(ctx, job, emitter, rc, outcome, time.Since(started))
}

// finalize lands a finished validation outcome as completed or
// needs_improvement, writing passing skills into the taxonomy.
func (c *Controller) finalize(ctx context.Context, job *Job, emitter *events.Emitter, rc *ResumptionContext, outcome *ValidationOutcome, elapsed time.Duration) (*PipelineResult, error) {
	plan := rc.Understanding.Plan
	report := outcome.Report

	if report.Passed {
		if c.taxonomy != nil {
			doc := &taxonomy.SkillDocument{
				Name:        plan.SkillName,
				Description: plan.Description,
				Tags:        plan.Tags,
				Category:    plan.Category,
				Score:       report.Score,
				Content:     outcome.Content,
			}
			path := plan.TaxonomyPath + "/" + plan.SkillName
			if err := c.taxonomy.Write(ctx, path, doc); err != nil {
				return c.fail(ctx, job, emitter, PhaseValidation,
					types.WrapError(ErrTaxonomyWriteError, fmt.Sprintf("failed to store skill at %s", path), err))
			}
			c.logger.Info("skill stored", "job_id", job.ID, "path", path)
		}

		if err := c.transition(ctx, job, JobStatusCompleted); err != nil {
			return nil, err
		}
		emitter.Complete(ctx, JobStatusCompleted.String(), report.Score, true, elapsed)

		return &PipelineResult{
			Status:       ResultCompleted,
			JobID:        job.ID,
			Plan:         plan,
			Content:      outcome.Content,
			Report:       report,
			TaxonomyPath: plan.TaxonomyPath,
		}, nil
	}

	if err := c.transition(ctx, job, JobStatusNeedsImprovement); err != nil {
		return nil, err
	}
	emitter.Complete(ctx, JobStatusNeedsImprovement.String(), report.Score, false, elapsed)

	c.logger.Info("job finished below pass threshold",
		"job_id", job.ID,
		"score", report.Score,
		"errors", len(report.Errors))

	return &PipelineResult{
		Status:       ResultNeedsImprovement,
		JobID:        job.ID,
		Plan:         plan,
		Content:      outcome.Content,
		Report:       report,
		TaxonomyPath: plan.TaxonomyPath,
	}, nil
}

// suspend parks the job with its resumption context and pending request.
func (c *Controller) suspend(ctx context.Context, job *Job, emitter *events.Emitter, rc *ResumptionContext, phase PhaseName, request *HITLRequest) (*PipelineResult, error) {
	emitter.PhaseEnd(ctx, phase.String(), JobStatusPendingHITL.String(), 0)

	rc.Phase = phase
	rc.Request = request
	rc.LastEventSeq = emitter.Seq()
	job.Resumption = rc
	job.SetProgress(phase, fmt.Sprintf("awaiting %s input", request.Kind))

	if err := c.transition(ctx, job, JobStatusPendingHITL); err != nil {
		return nil, err
	}
	c.logger.Info("job suspended", "job_id", job.ID, "phase", phase, "kind", request.Kind)

	return &PipelineResult{
		Status: ResultPendingHITL,
		JobID:  job.ID,
		HITL:   request,
	}, nil
}

// fail lands a phase error. Context cancellation becomes a cancelled job, not
// a failed one.
func (c *Controller) fail(ctx context.Context, job *Job, emitter *events.Emitter, phase PhaseName, cause error) (*PipelineResult, error) {
	if errors.Is(cause, context.Canceled) {
		return c.cancelJob(ctx, job)
	}

	job.Error = cause.Error()
	if err := c.transition(ctx, job, JobStatusFailed); err != nil {
		return nil, err
	}

	emitter.Error(ctx, phase.String(), "", cause)
	c.logger.Error("job failed", "job_id", job.ID, "phase", phase, "error", cause)

	return &PipelineResult{
		Status: ResultFailed,
		JobID:  job.ID,
		Err:    cause.Error(),
	}, nil
}

// cancelJob lands a cancellation. The result reports it as a failure variant
// with an explanatory message.
func (c *Controller) cancelJob(ctx context.Context, job *Job) (*PipelineResult, error) {
	// A cancellation may race the run loop; losing the race means the job
	// already went terminal and there is nothing left to do.
	if err := c.transition(ctx, job, JobStatusCancelled); err != nil {
		return nil, err
	}

	c.logger.Info("job cancelled", "job_id", job.ID)

	return &PipelineResult{
		Status: ResultFailed,
		JobID:  job.ID,
		Err:    "job cancelled by user",
	}, nil
}

// transition moves the job through the state machine and persists it. The
// status write and the store write travel together so a restart never finds a
// job whose persisted status disagrees with what the caller observed.
func (c *Controller) transition(ctx context.Context, job *Job, target JobStatus) error {
	if err := job.Transition(target); err != nil {
		return err
	}
	return c.store.Update(ctx, job)
}
