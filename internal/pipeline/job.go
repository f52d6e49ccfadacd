package pipeline

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Qredence/skill-fleet/internal/types"
)

// JobStatus represents the lifecycle state of a generation job.
type JobStatus string

const (
	// JobStatusPending indicates the job is created but not yet started.
	JobStatusPending JobStatus = "pending"

	// JobStatusRunning indicates a phase engine is currently executing.
	JobStatusRunning JobStatus = "running"

	// JobStatusPendingHITL indicates the job is suspended awaiting a human
	// response. The job holds no live execution context in this state,
	// only the serialized resumption blob.
	JobStatusPendingHITL JobStatus = "pending_hitl"

	// JobStatusCompleted indicates the pipeline finished with a passing report.
	JobStatusCompleted JobStatus = "completed"

	// JobStatusNeedsImprovement indicates the pipeline finished but the
	// final score stayed below the pass threshold; best-effort content and
	// the report are still available.
	JobStatusNeedsImprovement JobStatus = "needs_improvement"

	// JobStatusFailed indicates the pipeline aborted on an error.
	JobStatusFailed JobStatus = "failed"

	// JobStatusCancelled indicates the job was cancelled by the user.
	JobStatusCancelled JobStatus = "cancelled"
)

// String returns the string representation of the job status.
func (s JobStatus) String() string {
	return string(s)
}

// IsValid checks if the JobStatus is a known value.
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusPendingHITL,
		JobStatusCompleted, JobStatusNeedsImprovement, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for end states. Terminal states admit no further
// transitions.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusNeedsImprovement, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo validates whether a state transition is allowed.
func (s JobStatus) CanTransitionTo(target JobStatus) bool {
	if s.IsTerminal() {
		return false
	}

	switch s {
	case JobStatusPending:
		return target == JobStatusRunning || target == JobStatusCancelled
	case JobStatusRunning:
		return target == JobStatusPendingHITL ||
			target == JobStatusCompleted ||
			target == JobStatusNeedsImprovement ||
			target == JobStatusFailed ||
			target == JobStatusCancelled
	case JobStatusPendingHITL:
		return target == JobStatusRunning || target == JobStatusCancelled
	default:
		return false
	}
}

// MarshalJSON implements json.Marshaler.
func (s JobStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *JobStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	status := JobStatus(str)
	if !status.IsValid() {
		return fmt.Errorf("invalid job status: %s", str)
	}

	*s = status
	return nil
}

// PhaseName identifies one of the three pipeline phases.
type PhaseName string

const (
	PhaseUnderstanding PhaseName = "understanding"
	PhaseGeneration    PhaseName = "generation"
	PhaseValidation    PhaseName = "validation"
)

// String returns the string representation of the phase name.
func (p PhaseName) String() string {
	return string(p)
}

// IsValid checks if the phase name is a known value.
func (p PhaseName) IsValid() bool {
	switch p {
	case PhaseUnderstanding, PhaseGeneration, PhaseValidation:
		return true
	default:
		return false
	}
}

// Job is the root aggregate for one generation request. It is created once
// per request, mutated only by the Controller, and archived when terminal.
type Job struct {
	// ID is the unique identifier for this job.
	ID types.ID `json:"id"`

	// Status is the current lifecycle state.
	Status JobStatus `json:"status"`

	// TaskDescription is the free-text request the pipeline works from.
	TaskDescription string `json:"task_description"`

	// UserContext carries caller-supplied context for the model calls.
	UserContext map[string]string `json:"user_context,omitempty"`

	// CurrentPhase names the phase being (or about to be) executed.
	CurrentPhase PhaseName `json:"current_phase,omitempty"`

	// ProgressMessage is a human-readable summary of where the job is.
	ProgressMessage string `json:"progress_message,omitempty"`

	// Error captures the failure message for failed jobs.
	Error string `json:"error,omitempty"`

	// Resumption holds every prior phase's typed output plus any pending
	// human-input request while the job is suspended.
	Resumption *ResumptionContext `json:"resumption,omitempty"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the job was last mutated.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewJob creates a pending job for a task description.
func NewJob(taskDescription string, userContext map[string]string) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:              types.NewID(),
		Status:          JobStatusPending,
		TaskDescription: taskDescription,
		UserContext:     userContext,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Transition moves the job to a new status, enforcing the state machine.
func (j *Job) Transition(target JobStatus) error {
	if !j.Status.CanTransitionTo(target) {
		return NewInvalidStateError(j.Status, target)
	}

	j.Status = target
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// SetProgress updates the progress message and phase marker.
func (j *Job) SetProgress(phase PhaseName, message string) {
	j.CurrentPhase = phase
	j.ProgressMessage = message
	j.UpdatedAt = time.Now().UTC()
}
