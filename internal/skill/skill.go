// Package skill defines the domain model for generated skill documents:
// the generation plan produced by the Understanding phase, the raw artifact
// produced by Generation, and the quality report produced by Validation.
package skill

import (
	"encoding/json"
	"fmt"
)

// Style selects how much scaffolding the generated document carries.
type Style string

const (
	StyleMinimal       Style = "minimal"
	StyleComprehensive Style = "comprehensive"
	StyleNavigationHub Style = "navigation_hub"
)

// String returns the string representation of the style.
func (s Style) String() string {
	return string(s)
}

// IsValid checks if the style is a known value.
func (s Style) IsValid() bool {
	switch s {
	case StyleMinimal, StyleComprehensive, StyleNavigationHub:
		return true
	default:
		return false
	}
}

// MarshalJSON implements json.Marshaler.
func (s Style) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Style) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	// The zero value round-trips: jobs started without an explicit style
	// serialize it as "" and must deserialize back to the zero value.
	if str == "" {
		*s = ""
		return nil
	}

	style := Style(str)
	if !style.IsValid() {
		return fmt.Errorf("invalid style: %s", str)
	}

	*s = style
	return nil
}

// LengthClass is the estimated length of a skill document.
type LengthClass string

const (
	LengthShort  LengthClass = "short"
	LengthMedium LengthClass = "medium"
	LengthLong   LengthClass = "long"
)

// IsValid checks if the length class is a known value.
func (l LengthClass) IsValid() bool {
	switch l {
	case LengthShort, LengthMedium, LengthLong:
		return true
	default:
		return false
	}
}

// SizeClass classifies a validated document against the word-count bounds.
type SizeClass string

const (
	SizeUndersized SizeClass = "undersized"
	SizeOptimal    SizeClass = "optimal"
	SizeOversized  SizeClass = "oversized"
)

// Plan is the typed synthesis of the Understanding phase, used to drive
// Generation. Name and Description are validated at creation and may only
// be overridden by a human structure-fix response.
type Plan struct {
	SkillName        string      `json:"skill_name"`
	Description      string      `json:"description"`
	TaxonomyPath     string      `json:"taxonomy_path"`
	ContentOutline   []string    `json:"content_outline"`
	Guidance         string      `json:"guidance,omitempty"`
	SuccessCriteria  []string    `json:"success_criteria,omitempty"`
	EstimatedLength  LengthClass `json:"estimated_length,omitempty"`
	Tags             []string    `json:"tags,omitempty"`
	TriggerPhrases   []string    `json:"trigger_phrases,omitempty"`
	NegativeTriggers []string    `json:"negative_triggers,omitempty"`
	Category         string      `json:"category,omitempty"`

	// PlacementWarning is set when the taxonomy placement confidence was
	// below the configured minimum and the path should be reviewed.
	PlacementWarning string `json:"placement_warning,omitempty"`
}

// Validate checks the plan's structural invariants.
func (p *Plan) Validate() error {
	if err := ValidateSkillName(p.SkillName); err != nil {
		return err
	}

	if err := ValidateDescription(p.Description); err != nil {
		return err
	}

	if p.TaxonomyPath != "" {
		if err := ValidateTaxonomyPath(p.TaxonomyPath); err != nil {
			return err
		}
	}

	if len(p.ContentOutline) == 0 {
		return fmt.Errorf("plan must have a content outline")
	}

	return nil
}

// GenerationResult is the full artifact produced by the Generation phase.
// It may be revised in place by feedback incorporation.
type GenerationResult struct {
	Content              string   `json:"content"`
	Sections             []string `json:"sections"`
	CodeExampleCount     int      `json:"code_example_count"`
	EstimatedReadingTime int      `json:"estimated_reading_time"`

	// QualityScore is an optional lightweight self-check score in [0,1].
	QualityScore *float64 `json:"quality_score,omitempty"`
}

// TestCases are generated trigger scenarios attached to a validation report.
type TestCases struct {
	Positive  []string `json:"positive"`
	Negative  []string `json:"negative"`
	EdgeCases []string `json:"edge_cases"`
}

// ValidationReport is the outcome of the Validation phase.
// Invariant: Passed is true only when Errors is empty and Score meets the
// configured pass threshold.
type ValidationReport struct {
	Passed               bool      `json:"passed"`
	Score                float64   `json:"score"`
	Errors               []string  `json:"errors"`
	Warnings             []string  `json:"warnings"`
	Checks               []string  `json:"checks"`
	WordCount            int       `json:"word_count"`
	SizeClass            SizeClass `json:"size_class"`
	VerbosityScore       float64   `json:"verbosity_score"`
	TestCases            TestCases `json:"test_cases"`
	WasRefined           bool      `json:"was_refined"`
	RefinementIterations int       `json:"refinement_iterations"`
}
