package pipeline

import (
	"github.com/Qredence/skill-fleet/internal/skill"
	"github.com/Qredence/skill-fleet/internal/types"
)

// Module names for the structured inference calls. These appear in module
// lifecycle events and in gateway logs.
const (
	ModuleGatherRequirements  = "gather_requirements"
	ModuleAnalyzeIntent       = "analyze_intent"
	ModuleFindTaxonomyPath    = "find_taxonomy_path"
	ModuleAnalyzeDependencies = "analyze_dependencies"
	ModuleSynthesizePlan      = "synthesize_plan"
	ModuleGenerateContent     = "generate_content"
	ModuleIncorporateFeedback = "incorporate_feedback"
	ModuleCheckCompliance     = "check_compliance"
	ModuleAssessQuality       = "assess_quality"
	ModuleRefineContent       = "refine_content"
)

// RequirementsInput feeds the gather_requirements call.
type RequirementsInput struct {
	TaskDescription string            `json:"task_description"`
	UserContext     map[string]string `json:"user_context,omitempty"`
	ExistingSkills  []string          `json:"existing_skills,omitempty"`
}

// RequirementsResult is the structured understanding of the task.
type RequirementsResult struct {
	Domain               string   `json:"domain"`
	Category             string   `json:"category"`
	TargetLevel          string   `json:"target_level"`
	Topics               []string `json:"topics"`
	Constraints          []string `json:"constraints,omitempty"`
	Ambiguities          []string `json:"ambiguities,omitempty"`
	SuggestedName        string   `json:"suggested_name"`
	SuggestedDescription string   `json:"suggested_description"`
	TriggerPhrases       []string `json:"trigger_phrases,omitempty"`
	NegativeTriggers     []string `json:"negative_triggers,omitempty"`
}

// IntentInput feeds the analyze_intent call.
type IntentInput struct {
	TaskDescription string              `json:"task_description"`
	Requirements    *RequirementsResult `json:"requirements"`
}

// IntentResult captures why the skill is wanted and who will use it.
type IntentResult struct {
	PrimaryIntent string   `json:"primary_intent"`
	UseCases      []string `json:"use_cases,omitempty"`
	UserGoals     []string `json:"user_goals,omitempty"`
}

// TaxonomyInput feeds the find_taxonomy_path call.
type TaxonomyInput struct {
	Requirements      *RequirementsResult `json:"requirements"`
	TaxonomyStructure map[string]any      `json:"taxonomy_structure,omitempty"`
}

// TaxonomyResult proposes a placement in the skill tree.
type TaxonomyResult struct {
	Path         string   `json:"path"`
	Confidence   float64  `json:"confidence"`
	Rationale    string   `json:"rationale,omitempty"`
	Alternatives []string `json:"alternatives,omitempty"`
}

// DependenciesInput feeds the analyze_dependencies call.
type DependenciesInput struct {
	Requirements *RequirementsResult `json:"requirements"`
	Intent       *IntentResult       `json:"intent"`
}

// DependenciesResult lists what the skill assumes or relates to.
type DependenciesResult struct {
	Prerequisites []string `json:"prerequisites,omitempty"`
	RelatedSkills []string `json:"related_skills,omitempty"`
	ExternalTools []string `json:"external_tools,omitempty"`
}

// PlanInput feeds the synthesize_plan call with every prior understanding
// output plus any clarification answers.
type PlanInput struct {
	TaskDescription string              `json:"task_description"`
	Requirements    *RequirementsResult `json:"requirements"`
	Intent          *IntentResult       `json:"intent"`
	Taxonomy        *TaxonomyResult     `json:"taxonomy"`
	Dependencies    *DependenciesResult `json:"dependencies"`
	ClarifyAnswers  map[string]string   `json:"clarify_answers,omitempty"`
}

// GenerateInput feeds the generate_content call.
type GenerateInput struct {
	Plan  *skill.Plan `json:"plan"`
	Style skill.Style `json:"style"`
}

// FeedbackInput feeds the incorporate_feedback call during a preview revise.
type FeedbackInput struct {
	Plan             *skill.Plan `json:"plan"`
	CurrentContent   string      `json:"current_content"`
	Feedback         string      `json:"feedback,omitempty"`
	RequestedChanges []string    `json:"requested_changes,omitempty"`
}

// ComplianceInput feeds the check_compliance call.
type ComplianceInput struct {
	Content string      `json:"content"`
	Plan    *skill.Plan `json:"plan"`
}

// ComplianceResult reports how well the content matches the plan contract.
type ComplianceResult struct {
	Score             float64  `json:"score"`
	FrontmatterValid  bool     `json:"frontmatter_valid"`
	MissingSections   []string `json:"missing_sections,omitempty"`
	Issues            []string `json:"issues,omitempty"`
	CriteriaSatisfied []string `json:"criteria_satisfied,omitempty"`
}

// QualityInput feeds the assess_quality call.
type QualityInput struct {
	Content string      `json:"content"`
	Plan    *skill.Plan `json:"plan"`
}

// QualityResult scores the content on its merits, independent of plan
// compliance, and proposes test cases for the finished skill.
type QualityResult struct {
	Score          float64          `json:"score"`
	Completeness   float64          `json:"completeness"`
	Clarity        float64          `json:"clarity"`
	Usefulness     float64          `json:"usefulness"`
	VerbosityScore float64          `json:"verbosity_score"`
	Suggestions    []string         `json:"suggestions,omitempty"`
	TestCases      *skill.TestCases `json:"test_cases,omitempty"`
}

// RefineInput feeds the refine_content call during bounded refinement.
type RefineInput struct {
	Content     string      `json:"content"`
	Plan        *skill.Plan `json:"plan"`
	Errors      []string    `json:"errors,omitempty"`
	Warnings    []string    `json:"warnings,omitempty"`
	Suggestions []string    `json:"suggestions,omitempty"`
	TargetScore float64     `json:"target_score"`
}

// RefineResult is the rewritten content.
type RefineResult struct {
	Content  string   `json:"content"`
	Sections []string `json:"sections,omitempty"`
	Changes  []string `json:"changes,omitempty"`
}

func stringArraySchema(description string) *types.JSONSchema {
	return &types.JSONSchema{
		Type:        "array",
		Description: description,
		Items:       &types.JSONSchema{Type: "string"},
	}
}

func scoreSchema(description string) *types.JSONSchema {
	minimum := 0.0
	maximum := 1.0
	return &types.JSONSchema{
		Type:        "number",
		Description: description,
		Minimum:     &minimum,
		Maximum:     &maximum,
	}
}

// RequirementsSchema describes the gather_requirements output.
func RequirementsSchema() *types.JSONSchema {
	return &types.JSONSchema{
		Type: "object",
		Properties: map[string]*types.JSONSchema{
			"domain":                {Type: "string", Description: "Primary technical domain"},
			"category":              {Type: "string", Description: "Skill category"},
			"target_level":          {Type: "string", Enum: []any{"beginner", "intermediate", "advanced"}},
			"topics":                stringArraySchema("Topics the skill must cover"),
			"constraints":           stringArraySchema("Constraints stated or implied by the task"),
			"ambiguities":           stringArraySchema("Points that need user clarification"),
			"suggested_name":        {Type: "string", Description: "Kebab-case skill name"},
			"suggested_description": {Type: "string", Description: "One-paragraph skill description"},
			"trigger_phrases":       stringArraySchema("Phrases that should activate the skill"),
			"negative_triggers":     stringArraySchema("Phrases that should not activate the skill"),
		},
		Required: []string{"domain", "category", "target_level", "topics", "suggested_name", "suggested_description"},
	}
}

// IntentSchema describes the analyze_intent output.
func IntentSchema() *types.JSONSchema {
	return &types.JSONSchema{
		Type: "object",
		Properties: map[string]*types.JSONSchema{
			"primary_intent": {Type: "string", Description: "The single core purpose of the skill"},
			"use_cases":      stringArraySchema("Concrete situations where the skill applies"),
			"user_goals":     stringArraySchema("What the user wants to achieve"),
		},
		Required: []string{"primary_intent"},
	}
}

// TaxonomySchema describes the find_taxonomy_path output.
func TaxonomySchema() *types.JSONSchema {
	return &types.JSONSchema{
		Type: "object",
		Properties: map[string]*types.JSONSchema{
			"path":         {Type: "string", Description: "Slash-separated placement path"},
			"confidence":   scoreSchema("Placement confidence"),
			"rationale":    {Type: "string"},
			"alternatives": stringArraySchema("Other plausible paths"),
		},
		Required: []string{"path", "confidence"},
	}
}

// DependenciesSchema describes the analyze_dependencies output.
func DependenciesSchema() *types.JSONSchema {
	return &types.JSONSchema{
		Type: "object",
		Properties: map[string]*types.JSONSchema{
			"prerequisites":  stringArraySchema("Knowledge assumed before using the skill"),
			"related_skills": stringArraySchema("Existing skills this one relates to"),
			"external_tools": stringArraySchema("Tools or services the skill depends on"),
		},
		Required: []string{},
	}
}

// PlanSchema describes the synthesize_plan output, which is a skill.Plan.
func PlanSchema() *types.JSONSchema {
	return &types.JSONSchema{
		Type: "object",
		Properties: map[string]*types.JSONSchema{
			"skill_name":        {Type: "string", Description: "Kebab-case skill name"},
			"description":       {Type: "string"},
			"taxonomy_path":     {Type: "string"},
			"content_outline":   stringArraySchema("Ordered section headings"),
			"guidance":          {Type: "string", Description: "Authoring guidance for the generator"},
			"success_criteria":  stringArraySchema("What the finished skill must demonstrate"),
			"estimated_length":  {Type: "string", Enum: []any{"short", "medium", "long"}},
			"tags":              stringArraySchema("Search tags"),
			"trigger_phrases":   stringArraySchema("Activation phrases"),
			"negative_triggers": stringArraySchema("Anti-activation phrases"),
			"category":          {Type: "string"},
		},
		Required: []string{"skill_name", "description", "taxonomy_path", "content_outline", "success_criteria", "estimated_length"},
	}
}

// GenerationSchema describes the generate_content and incorporate_feedback
// outputs.
func GenerationSchema() *types.JSONSchema {
	return &types.JSONSchema{
		Type: "object",
		Properties: map[string]*types.JSONSchema{
			"content":                {Type: "string", Description: "Full markdown skill document"},
			"sections":               stringArraySchema("Section headings present in the content"),
			"code_example_count":     {Type: "integer"},
			"estimated_reading_time": {Type: "integer", Description: "Minutes"},
		},
		Required: []string{"content", "sections"},
	}
}

// ComplianceSchema describes the check_compliance output.
func ComplianceSchema() *types.JSONSchema {
	return &types.JSONSchema{
		Type: "object",
		Properties: map[string]*types.JSONSchema{
			"score":              scoreSchema("Plan compliance score"),
			"frontmatter_valid":  {Type: "boolean"},
			"missing_sections":   stringArraySchema("Planned sections absent from the content"),
			"issues":             stringArraySchema("Compliance problems found"),
			"criteria_satisfied": stringArraySchema("Success criteria the content meets"),
		},
		Required: []string{"score", "frontmatter_valid"},
	}
}

// QualitySchema describes the assess_quality output.
func QualitySchema() *types.JSONSchema {
	return &types.JSONSchema{
		Type: "object",
		Properties: map[string]*types.JSONSchema{
			"score":           scoreSchema("Overall quality score"),
			"completeness":    scoreSchema("Coverage of the subject"),
			"clarity":         scoreSchema("Readability and structure"),
			"usefulness":      scoreSchema("Practical value"),
			"verbosity_score": scoreSchema("Padding and repetition, higher is worse"),
			"suggestions":     stringArraySchema("Concrete improvement suggestions"),
			"test_cases": {
				Type: "object",
				Properties: map[string]*types.JSONSchema{
					"positive":   stringArraySchema("Queries the skill should handle"),
					"negative":   stringArraySchema("Queries the skill should not claim"),
					"edge_cases": stringArraySchema("Boundary queries"),
				},
			},
		},
		Required: []string{"score", "completeness", "clarity", "usefulness", "verbosity_score"},
	}
}

// RefineSchema describes the refine_content output.
func RefineSchema() *types.JSONSchema {
	return &types.JSONSchema{
		Type: "object",
		Properties: map[string]*types.JSONSchema{
			"content":  {Type: "string", Description: "Rewritten markdown skill document"},
			"sections": stringArraySchema("Section headings present in the content"),
			"changes":  stringArraySchema("What was changed and why"),
		},
		Required: []string{"content"},
	}
}
