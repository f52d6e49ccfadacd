package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/Qredence/skill-fleet/internal/skill"
)

// ResumptionCodecVersion defines the version of the resumption serialization
// format, used to detect blobs written by a different release.
const ResumptionCodecVersion = 1

// UnderstandingBundle accumulates the typed outputs of the understanding
// phase. Fields fill in as the steps complete, so a partially filled bundle
// records exactly where a suspension happened.
type UnderstandingBundle struct {
	Requirements   *RequirementsResult `json:"requirements,omitempty"`
	Intent         *IntentResult       `json:"intent,omitempty"`
	Taxonomy       *TaxonomyResult     `json:"taxonomy,omitempty"`
	Dependencies   *DependenciesResult `json:"dependencies,omitempty"`
	Plan           *skill.Plan         `json:"plan,omitempty"`
	ClarifyAnswers map[string]string   `json:"clarify_answers,omitempty"`

	// Clarified is set once a clarify round has been answered, so the
	// engine never asks twice for the same job.
	Clarified bool `json:"clarified,omitempty"`

	// StructureFixed is set once the user has corrected a structural
	// problem, suppressing the pre-check on resume.
	StructureFixed bool `json:"structure_fixed,omitempty"`

	// Degraded is set when any understanding call fell back to a default
	// output after exhausting retries.
	Degraded bool `json:"degraded,omitempty"`
}

// ResumptionContext is everything needed to resume a suspended job: the
// pending request, every completed phase output, and the run options. It is
// persisted alongside the job while status is pending_hitl.
type ResumptionContext struct {
	// Phase is the phase to resume into.
	Phase PhaseName `json:"phase"`

	// Request is the pending human-input request.
	Request *HITLRequest `json:"request"`

	// Understanding holds the accumulated understanding outputs.
	Understanding *UnderstandingBundle `json:"understanding,omitempty"`

	// Generation holds the generated content when suspending at or after
	// the generation phase.
	Generation *skill.GenerationResult `json:"generation,omitempty"`

	// Report holds the validation report when suspending for review.
	Report *skill.ValidationReport `json:"report,omitempty"`

	// LastEventSeq is the last event sequence number emitted before the
	// suspension, so the resumed run continues the per-job ordering.
	LastEventSeq uint64 `json:"last_event_seq,omitempty"`

	// Run options, carried so a resumed job behaves like the original call.
	Style             skill.Style       `json:"style"`
	EnablePreview     bool              `json:"enable_preview,omitempty"`
	EnableReview      bool              `json:"enable_review,omitempty"`
	TaxonomyStructure map[string]any    `json:"taxonomy_structure,omitempty"`
	ExistingSkills    []string          `json:"existing_skills,omitempty"`
	UserContext       map[string]string `json:"user_context,omitempty"`
}

// resumptionEnvelope wraps the serialized context with version and integrity
// information.
type resumptionEnvelope struct {
	Version  int             `json:"version"`
	Checksum string          `json:"checksum"`
	Data     json.RawMessage `json:"data"`
}

// EncodeResumption serializes a resumption context into a versioned,
// checksummed envelope.
func EncodeResumption(rc *ResumptionContext) ([]byte, error) {
	if rc == nil {
		return nil, fmt.Errorf("resumption context cannot be nil")
	}

	data, err := json.Marshal(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resumption context: %w", err)
	}

	envelope := resumptionEnvelope{
		Version:  ResumptionCodecVersion,
		Checksum: computeChecksum(data),
		Data:     data,
	}

	blob, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resumption envelope: %w", err)
	}

	return blob, nil
}

// DecodeResumption validates and deserializes a resumption envelope. Version
// and checksum mismatches are returned as errors rather than silently
// producing a context that would resume the job into the wrong state.
func DecodeResumption(blob []byte) (*ResumptionContext, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("resumption data cannot be empty")
	}

	var envelope resumptionEnvelope
	if err := json.Unmarshal(blob, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal resumption envelope: %w", err)
	}

	if envelope.Version > ResumptionCodecVersion {
		return nil, fmt.Errorf("resumption version %d is newer than supported version %d",
			envelope.Version, ResumptionCodecVersion)
	}
	if envelope.Version < 1 {
		return nil, fmt.Errorf("resumption version %d is not supported (minimum version 1)", envelope.Version)
	}

	if err := validateChecksum(envelope.Data, envelope.Checksum); err != nil {
		return nil, err
	}

	var rc ResumptionContext
	if err := json.Unmarshal(envelope.Data, &rc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal resumption context: %w", err)
	}

	if !rc.Phase.IsValid() {
		return nil, fmt.Errorf("resumption context has invalid phase %q", rc.Phase)
	}
	if rc.Request == nil {
		return nil, fmt.Errorf("resumption context has no pending request")
	}
	if err := rc.Request.Validate(); err != nil {
		return nil, fmt.Errorf("resumption context has invalid request: %w", err)
	}

	return &rc, nil
}

// computeChecksum computes a SHA256 checksum as a hexadecimal string.
func computeChecksum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// validateChecksum verifies the data against an expected checksum.
func validateChecksum(data []byte, expected string) error {
	if expected == "" {
		return fmt.Errorf("expected checksum cannot be empty")
	}
	if len(data) == 0 {
		return fmt.Errorf("resumption data cannot be empty")
	}

	computed := computeChecksum(data)
	if computed != expected {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", expected, computed)
	}

	return nil
}
