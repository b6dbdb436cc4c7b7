package pipeline

import "fmt"

// Stage names, used for step identity, progress output, and persona
// overrides in the .codelift configuration file.
const (
	StageAnalyze  = "analyze"
	StageRefactor = "refactor"
	StageDocument = "document"
	StageReview   = "review"
)

// Built-in personas, one per stage. The persona is the fixed system-role
// instruction framing each generation request; the task-specific prompt
// travels in the user role.
const (
	AnalyzePersona  = "You are a Code Analysis Agent."
	RefactorPersona = "You are a Senior Refactor Engineer."
	DocumentPersona = "You are a Documentation Agent."
	ReviewPersona   = "You are a Code Review Agent."
)

// analyzePrompt builds the analyzer stage's task prompt for one file.
// The category list is fixed; the analyzer's output contract (JSON only)
// is best-effort, see model.DecodeIssueReport for the fallback.
func analyzePrompt(content string) string {
	return fmt.Sprintf(`Analyze the following source file and list ALL refactor issues:

- Unused imports
- Duplicate functions
- Missing documentation
- Long functions
- Poor naming
- Dead code
- Bad structure

Return output as JSON only.

FILE CONTENT:
%s`, content)
}

// refactorPrompt builds the refactor stage's task prompt for one file.
// issues is the serialized issue report produced by the analyzer stage.
func refactorPrompt(issues, content string) string {
	return fmt.Sprintf(`Based on the following issues, rewrite the ENTIRE file cleanly.

Issues:
%s

Original code:
%s

Return ONLY the rewritten source code.`, issues, content)
}

// documentPrompt builds the documentation stage's task prompt for one file.
func documentPrompt(content string) string {
	return fmt.Sprintf(`Add complete professional documentation comments to all types and functions.
Preserve logic exactly.

Return ONLY the new source file.

FILE:
%s`, content)
}

// reviewPrompt builds the review stage's task prompt for one file.
// The requested shape is decoded by model.DecodeReviewReport.
func reviewPrompt(content string) string {
	return fmt.Sprintf(`Review this file for:
- correctness
- code quality
- bugs
- missing edge cases

Give a JSON output:
{
  "score": 0-10,
  "problems": [...],
  "suggestions": [...]
}

FILE:
%s`, content)
}
