package pipeline

import (
	"github.com/Qredence/skill-fleet/internal/skill"
	"github.com/Qredence/skill-fleet/internal/types"
)

// ResultStatus is the outcome variant of a pipeline run or resume call.
type ResultStatus string

const (
	// ResultCompleted means the pipeline finished with a passing report.
	ResultCompleted ResultStatus = "completed"

	// ResultPendingHITL means the job suspended awaiting human input.
	ResultPendingHITL ResultStatus = "pending_hitl"

	// ResultNeedsImprovement means the pipeline finished below the pass
	// threshold; content and report are best-effort.
	ResultNeedsImprovement ResultStatus = "needs_improvement"

	// ResultFailed means the pipeline aborted.
	ResultFailed ResultStatus = "failed"
)

// String returns the string representation of the result status.
func (s ResultStatus) String() string {
	return string(s)
}

// PipelineResult is what Execute and Resume return to the caller. Which
// fields are populated depends on Status:
//
//   - completed: Plan, Content, Report (Passed true), TaxonomyPath
//   - pending_hitl: HITL with the request to put in front of the user
//   - needs_improvement: Plan, Content, Report (Passed false)
//   - failed: Err
type PipelineResult struct {
	Status ResultStatus `json:"status"`
	JobID  types.ID     `json:"job_id"`

	Plan         *skill.Plan             `json:"plan,omitempty"`
	Content      string                  `json:"content,omitempty"`
	Report       *skill.ValidationReport `json:"report,omitempty"`
	TaxonomyPath string                  `json:"taxonomy_path,omitempty"`

	HITL *HITLRequest `json:"hitl,omitempty"`

	Err string `json:"error,omitempty"`
}
