package pipeline

import (
	"fmt"

	"github.com/Qredence/skill-fleet/internal/types"
)

const (
	ErrJobNotFound        types.ErrorCode = "PIPELINE_JOB_NOT_FOUND"
	ErrJobTerminal        types.ErrorCode = "PIPELINE_JOB_TERMINAL"
	ErrInvalidState       types.ErrorCode = "PIPELINE_INVALID_STATE"
	ErrResumeMismatch     types.ErrorCode = "PIPELINE_RESUME_MISMATCH"
	ErrInvalidResponse    types.ErrorCode = "PIPELINE_INVALID_RESPONSE"
	ErrResumptionCorrupt  types.ErrorCode = "PIPELINE_RESUMPTION_CORRUPT"
	ErrPhaseFailed        types.ErrorCode = "PIPELINE_PHASE_FAILED"
	ErrStructureInvalid   types.ErrorCode = "PIPELINE_STRUCTURE_INVALID"
	ErrTaxonomyWriteError types.ErrorCode = "PIPELINE_TAXONOMY_WRITE_FAILED"
)

// NewJobNotFoundError creates an error for a missing job.
func NewJobNotFoundError(id types.ID) *types.FleetError {
	return types.NewError(ErrJobNotFound, fmt.Sprintf("job not found: %s", id))
}

// NewJobTerminalError creates an error for operations on a finished job.
func NewJobTerminalError(id types.ID, status JobStatus) *types.FleetError {
	return types.NewError(ErrJobTerminal,
		fmt.Sprintf("job %s is terminal (%s) and cannot be modified", id, status))
}

// NewInvalidStateError creates an error for a disallowed status transition.
func NewInvalidStateError(from, to JobStatus) *types.FleetError {
	return types.NewError(ErrInvalidState,
		fmt.Sprintf("invalid job transition from %s to %s", from, to))
}

// NewResumeMismatchError creates an error for a resume attempt that does not
// match the pending request.
func NewResumeMismatchError(id types.ID, detail string) *types.FleetError {
	return types.NewError(ErrResumeMismatch,
		fmt.Sprintf("cannot resume job %s: %s", id, detail))
}

// NewInvalidResponseError creates an error for a malformed human response.
func NewInvalidResponseError(detail string) *types.FleetError {
	return types.NewError(ErrInvalidResponse, fmt.Sprintf("invalid response: %s", detail))
}

// NewResumptionCorruptError creates an error for an undecodable resumption blob.
func NewResumptionCorruptError(cause error) *types.FleetError {
	return types.WrapError(ErrResumptionCorrupt, "resumption context corrupt", cause)
}

// NewPhaseFailedError wraps a phase engine failure.
func NewPhaseFailedError(phase PhaseName, cause error) *types.FleetError {
	return types.WrapError(ErrPhaseFailed, fmt.Sprintf("%s phase failed", phase), cause)
}
