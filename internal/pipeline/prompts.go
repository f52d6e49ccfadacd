package pipeline

// Instruction strings for the structured inference calls. The gateway appends
// the output schema directive; these only describe the task.

const instructionGatherRequirements = `You are analyzing a request to create a reusable skill document.
Extract the structured requirements from the task description.

Identify the technical domain, a category, and the expertise level the skill targets.
List the topics the skill must cover and any constraints the request states or implies.
Propose a kebab-case skill name (lowercase words joined by hyphens) and a one-paragraph description.
Suggest phrases that should and should not activate the skill.

List under "ambiguities" any points where the request is genuinely unclear and a wrong guess
would produce the wrong skill. Do not invent ambiguities for requests that are specific enough
to act on.`

const instructionAnalyzeIntent = `Given a task description and its extracted requirements, determine why this
skill is wanted. State the single primary intent, the concrete situations where the skill
would be used, and what the user is ultimately trying to achieve.`

const instructionFindTaxonomyPath = `Place the described skill in the taxonomy tree.
The taxonomy structure, when provided, lists existing categories as nested keys.

Return a slash-separated path from the root to where this skill belongs, preferring existing
branches over new ones. Report your confidence between 0 and 1, the rationale for the placement,
and any alternative paths you considered.`

const instructionAnalyzeDependencies = `Given the requirements and intent for a new skill, identify what it depends on:
knowledge a reader is assumed to have, existing skills it relates to or overlaps with, and
external tools or services it requires.`

const instructionSynthesizePlan = `Synthesize a complete authoring plan for the skill from the requirements, intent,
taxonomy placement, and dependencies. Honor any clarification answers from the user; they
override conflicting earlier analysis.

The skill_name must be kebab-case. The content_outline is the ordered list of section headings
the document will have. The guidance field tells the author how to write each section. The
success_criteria are checkable statements the finished document must satisfy.
Estimate the length as short, medium, or long.`

const instructionGenerateContent = `Write the complete skill document in markdown, following the plan exactly.

Start with YAML frontmatter containing name, description, and tags. Produce every section in
the plan's content_outline in order. Follow the plan's guidance. Write for the plan's target
audience, include working code examples where the subject calls for them, and satisfy every
success criterion.

Style "minimal" means terse reference material. Style "comprehensive" means full explanations
with examples. Style "navigation_hub" means a structured index pointing at related skills.`

const instructionIncorporateFeedback = `Revise the skill document to address the user's feedback. Apply every requested
change. Keep the frontmatter and the plan's section structure intact unless the feedback asks
otherwise. Do not regress parts of the document the feedback does not mention.`

const instructionCheckCompliance = `Audit the skill document against its plan.

Verify the YAML frontmatter is present and well-formed. Check that every section in the plan's
content_outline appears in the document. Check each success criterion and list the ones the
document satisfies. Score overall plan compliance between 0 and 1, where 1 means every planned
element is present and correct.`

const instructionAssessQuality = `Assess the skill document on its own merits, independent of its plan.

Score completeness (does it cover the subject), clarity (is it well structured and readable),
usefulness (would a practitioner reach for it), and verbosity (padding and repetition, where
higher is worse). Score overall quality between 0 and 1. Suggest concrete improvements.

Also propose test cases: user queries the skill should handle (positive), queries it should
not claim (negative), and boundary queries (edge_cases).`

const instructionRefineContent = `Rewrite the skill document to fix the listed errors, address the warnings, and
apply the suggestions, aiming for a quality score at or above the target. Preserve the
frontmatter and the overall section structure. Summarise what you changed.`
