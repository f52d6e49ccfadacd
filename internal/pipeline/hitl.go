package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/Qredence/skill-fleet/internal/skill"
)

// HITLKind discriminates the human-input request union. Exactly one payload
// field on HITLRequest is set, matching the kind.
type HITLKind string

const (
	// HITLClarify asks the user to answer questions about ambiguous
	// requirements before planning continues.
	HITLClarify HITLKind = "clarify"

	// HITLConfirm asks the user to approve a summarised plan of action.
	HITLConfirm HITLKind = "confirm"

	// HITLStructureFix asks the user to correct a skill name or description
	// that failed structural validation.
	HITLStructureFix HITLKind = "structure_fix"

	// HITLPreview shows the generated content summary and asks whether to
	// proceed, revise, or cancel before validation.
	HITLPreview HITLKind = "preview"

	// HITLReview presents a borderline validation report for a human
	// pass/revise decision.
	HITLReview HITLKind = "review"
)

// String returns the string representation of the kind.
func (k HITLKind) String() string {
	return string(k)
}

// IsValid checks if the kind is a known value.
func (k HITLKind) IsValid() bool {
	switch k {
	case HITLClarify, HITLConfirm, HITLStructureFix, HITLPreview, HITLReview:
		return true
	default:
		return false
	}
}

// MarshalJSON implements json.Marshaler.
func (k HITLKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(k))
}

// UnmarshalJSON implements json.Unmarshaler.
func (k *HITLKind) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	kind := HITLKind(str)
	if !kind.IsValid() {
		return fmt.Errorf("invalid hitl kind: %s", str)
	}

	*k = kind
	return nil
}

// ClarifyQuestion is a single question posed to the user, optionally with
// suggested answers.
type ClarifyQuestion struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
}

// ClarifyPayload carries the questions generated from detected ambiguities.
type ClarifyPayload struct {
	Questions []ClarifyQuestion `json:"questions"`
}

// ConfirmPayload carries a plan summary awaiting approval.
type ConfirmPayload struct {
	Summary string      `json:"summary"`
	Plan    *skill.Plan `json:"plan,omitempty"`
}

// StructureFixPayload reports structural validation failures with suggested
// corrections.
type StructureFixPayload struct {
	SuggestedName        string   `json:"suggested_name,omitempty"`
	SuggestedDescription string   `json:"suggested_description,omitempty"`
	NameErrors           []string `json:"name_errors,omitempty"`
	DescriptionErrors    []string `json:"description_errors,omitempty"`
	ContentErrors        []string `json:"content_errors,omitempty"`
}

// PreviewPayload summarises generated content before validation runs.
type PreviewPayload struct {
	Summary   string   `json:"summary"`
	Sections  []string `json:"sections,omitempty"`
	WordCount int      `json:"word_count"`
}

// ReviewPayload presents a borderline validation outcome for human judgement.
type ReviewPayload struct {
	Report  *skill.ValidationReport `json:"report"`
	Content string                  `json:"content"`
}

// HITLRequest is the tagged union sent to the user when a job suspends.
type HITLRequest struct {
	Kind HITLKind `json:"kind"`

	Clarify      *ClarifyPayload      `json:"clarify,omitempty"`
	Confirm      *ConfirmPayload      `json:"confirm,omitempty"`
	StructureFix *StructureFixPayload `json:"structure_fix,omitempty"`
	Preview      *PreviewPayload      `json:"preview,omitempty"`
	Review       *ReviewPayload       `json:"review,omitempty"`
}

// Validate checks that exactly one payload is set and matches the kind.
func (r *HITLRequest) Validate() error {
	if !r.Kind.IsValid() {
		return fmt.Errorf("invalid hitl kind: %s", r.Kind)
	}

	set := 0
	var match bool
	if r.Clarify != nil {
		set++
		match = match || r.Kind == HITLClarify
	}
	if r.Confirm != nil {
		set++
		match = match || r.Kind == HITLConfirm
	}
	if r.StructureFix != nil {
		set++
		match = match || r.Kind == HITLStructureFix
	}
	if r.Preview != nil {
		set++
		match = match || r.Kind == HITLPreview
	}
	if r.Review != nil {
		set++
		match = match || r.Kind == HITLReview
	}

	if set != 1 {
		return fmt.Errorf("hitl request must carry exactly one payload, got %d", set)
	}
	if !match {
		return fmt.Errorf("hitl payload does not match kind %s", r.Kind)
	}
	return nil
}

// HITLAction is the user's decision when answering a request.
type HITLAction string

const (
	// ActionProceed continues the pipeline, applying any supplied answers
	// or corrections.
	ActionProceed HITLAction = "proceed"

	// ActionRevise sends feedback back into the pipeline for another pass.
	ActionRevise HITLAction = "revise"

	// ActionCancel terminates the job.
	ActionCancel HITLAction = "cancel"
)

// String returns the string representation of the action.
func (a HITLAction) String() string {
	return string(a)
}

// IsValid checks if the action is a known value.
func (a HITLAction) IsValid() bool {
	switch a {
	case ActionProceed, ActionRevise, ActionCancel:
		return true
	default:
		return false
	}
}

// HITLResponse is the user's answer to a pending request. Which optional
// fields are meaningful depends on the request kind.
type HITLResponse struct {
	Action HITLAction `json:"action"`

	// Answers maps clarify question IDs to the user's answers.
	Answers map[string]string `json:"answers,omitempty"`

	// CorrectedName and CorrectedDescription answer a structure_fix request.
	CorrectedName        string `json:"corrected_name,omitempty"`
	CorrectedDescription string `json:"corrected_description,omitempty"`

	// Feedback and RequestedChanges answer a preview or review revise.
	Feedback         string   `json:"feedback,omitempty"`
	RequestedChanges []string `json:"requested_changes,omitempty"`
}

// ValidateFor checks the response against the request it answers. Cancel is
// always valid. This is the only gate between raw user input and the phase
// engines, so it rejects anything an engine could not act on.
func (resp *HITLResponse) ValidateFor(req *HITLRequest) error {
	if !resp.Action.IsValid() {
		return NewInvalidResponseError(fmt.Sprintf("unknown action %q", resp.Action))
	}
	if resp.Action == ActionCancel {
		return nil
	}

	switch req.Kind {
	case HITLClarify:
		if resp.Action != ActionProceed {
			return NewInvalidResponseError("clarify requests accept proceed or cancel")
		}
		if len(resp.Answers) == 0 {
			return NewInvalidResponseError("clarify proceed requires answers")
		}
	case HITLConfirm:
		if resp.Action != ActionProceed {
			return NewInvalidResponseError("confirm requests accept proceed or cancel")
		}
	case HITLStructureFix:
		if resp.Action != ActionProceed {
			return NewInvalidResponseError("structure_fix requests accept proceed or cancel")
		}
		if fix := req.StructureFix; fix != nil && len(fix.ContentErrors) > 0 &&
			len(fix.NameErrors) == 0 && len(fix.DescriptionErrors) == 0 {
			// Flagged content is corrected by rewrite direction, not by a
			// new name or description.
			if resp.Feedback == "" && len(resp.RequestedChanges) == 0 {
				return NewInvalidResponseError("structure_fix proceed requires rewrite feedback for flagged content")
			}
		} else if resp.CorrectedName == "" && resp.CorrectedDescription == "" {
			return NewInvalidResponseError("structure_fix proceed requires a correction")
		}
	case HITLPreview:
		if resp.Action == ActionRevise && resp.Feedback == "" && len(resp.RequestedChanges) == 0 {
			return NewInvalidResponseError("preview revise requires feedback")
		}
	case HITLReview:
		if resp.Action == ActionRevise && resp.Feedback == "" && len(resp.RequestedChanges) == 0 {
			return NewInvalidResponseError("review revise requires feedback")
		}
	}
	return nil
}
