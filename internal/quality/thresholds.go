// Package quality holds the single source of truth for every numeric gate
// used by the generation pipeline. The Thresholds value is constructed once
// at process start and injected by value into the phase engines, so the
// refinement trigger point and the final pass/fail decision can never drift
// apart.
package quality

import "fmt"

// Thresholds is the immutable quality gate policy for a pipeline run.
type Thresholds struct {
	// TaxonomyConfidenceMin is the minimum confidence for an automatic
	// taxonomy placement; below it the plan carries a placement warning.
	TaxonomyConfidenceMin float64 `mapstructure:"taxonomy_confidence_min" yaml:"taxonomy_confidence_min" validate:"gte=0,lte=1"`

	// ValidationPassScore is the minimum overall score for a report to pass.
	ValidationPassScore float64 `mapstructure:"validation_pass_score" yaml:"validation_pass_score" validate:"gte=0,lte=1"`

	// RefinementTargetScore is the score the refinement loop drives toward.
	// It is at least the pass score; the gap between them is the zone where
	// content passes without further refinement attempts.
	RefinementTargetScore float64 `mapstructure:"refinement_target_score" yaml:"refinement_target_score" validate:"gte=0,lte=1"`

	// MaxRefinementIterations bounds the refinement loop.
	MaxRefinementIterations int `mapstructure:"max_refinement_iterations" yaml:"max_refinement_iterations" validate:"gte=0,lte=10"`

	// ReviewBandWidth is the half-width of the score band around
	// ValidationPassScore in which an optional human review is requested.
	ReviewBandWidth float64 `mapstructure:"review_band_width" yaml:"review_band_width" validate:"gte=0,lte=0.5"`

	// MaxAmbiguities is the number of requirement ambiguities tolerated
	// before Understanding suspends with clarifying questions.
	MaxAmbiguities int `mapstructure:"max_ambiguities" yaml:"max_ambiguities" validate:"gte=0"`

	// MinWordCount and MaxWordCount bound acceptable document size.
	MinWordCount int `mapstructure:"min_word_count" yaml:"min_word_count" validate:"gte=0"`
	MaxWordCount int `mapstructure:"max_word_count" yaml:"max_word_count" validate:"gte=0"`

	// VerbosityMax is the maximum acceptable verbosity score.
	VerbosityMax float64 `mapstructure:"verbosity_max" yaml:"verbosity_max" validate:"gte=0,lte=1"`
}

// DefaultThresholds returns the policy used when no configuration overrides
// are present.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TaxonomyConfidenceMin:   0.6,
		ValidationPassScore:     0.75,
		RefinementTargetScore:   0.8,
		MaxRefinementIterations: 3,
		ReviewBandWidth:         0.05,
		MaxAmbiguities:          2,
		MinWordCount:            150,
		MaxWordCount:            5000,
		VerbosityMax:            0.7,
	}
}

// Validate checks internal consistency of the policy.
func (t Thresholds) Validate() error {
	if t.RefinementTargetScore < t.ValidationPassScore {
		return fmt.Errorf("refinement target score %.2f must not be below pass score %.2f",
			t.RefinementTargetScore, t.ValidationPassScore)
	}

	if t.MinWordCount > t.MaxWordCount {
		return fmt.Errorf("min word count %d exceeds max word count %d",
			t.MinWordCount, t.MaxWordCount)
	}

	return nil
}

// reviewBandEpsilon absorbs float64 representation error so scores exactly
// at the band edges (e.g. 0.70 against pass 0.75, width 0.05) are inclusive.
const reviewBandEpsilon = 1e-9

// InReviewBand reports whether a score is close enough to the pass threshold
// that a borderline human review should be requested. Both band edges are
// inclusive.
func (t Thresholds) InReviewBand(score float64) bool {
	diff := score - t.ValidationPassScore
	if diff < 0 {
		diff = -diff
	}
	return diff <= t.ReviewBandWidth+reviewBandEpsilon
}
