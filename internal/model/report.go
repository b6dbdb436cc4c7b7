package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrAnalysisMissing is returned when a stage requests the analysis entry
// for a file that the analyzer never processed. This only happens when a
// caller passes diverging file sets to different stages, which the
// orchestrator rules out by threading one enumerated list through the run.
var ErrAnalysisMissing = errors.New("no analysis entry for file")

// RunReport is the main pipeline result structure.
// It carries the enumerated file set and accumulates each stage's output
// as the pipeline executes; one RunReport corresponds to one run over
// one project directory.
//
// Design decision: We use a single mutable struct threaded through the
// steps, rather than per-stage return values, so that every stage sees
// the identical file list and the refactor stage can consume the
// analyzer's output without re-deriving anything. The file list is fixed
// at construction and never re-enumerated mid-run.
type RunReport struct {
	// ProjectDir is the root directory this run processed.
	ProjectDir string `json:"project_dir"`

	// DateRun is the timestamp when the run started.
	DateRun time.Time `json:"date_run"`

	// Model is the chat model used for all generation requests.
	Model string `json:"model,omitempty"`

	// Files is the enumerated file set, in traversal order.
	// All four stages iterate this exact slice.
	Files []string `json:"files"`

	// Analyses maps file path to the analyzer stage's issue report.
	// Populated by the analyze step, consumed by the refactor step.
	Analyses map[string]*IssueReport `json:"analyses,omitempty"`

	// Reviews maps file path to the review stage's report.
	// Populated by the review step, rendered by the report writers.
	Reviews map[string]*ReviewReport `json:"reviews,omitempty"`

	// PerformedStages lists the stages that ran, in execution order.
	PerformedStages []string `json:"performed_stages,omitempty"`

	// GenerationCalls counts round trips to the generation service.
	GenerationCalls int `json:"generation_calls"`

	// Cancelled indicates the run was interrupted before completion.
	Cancelled bool `json:"cancelled,omitempty"`

	// Error holds the first fatal error, if any. Excluded from JSON;
	// ErrorMessage carries the serializable form.
	Error error `json:"-"`

	// ErrorMessage is the string form of Error for serialization.
	ErrorMessage string `json:"error_message,omitempty"`

	// Summary is the presentation-level digest of this run.
	// Generated lazily by NewRunSummary.
	Summary *RunSummary `json:"summary,omitempty"`
}

// NewRunReport creates a report for a run over the given file set.
// The file slice is stored as-is; callers must not re-enumerate or
// mutate it after the pipeline starts.
func NewRunReport(projectDir string, files []string) *RunReport {
	return &RunReport{
		ProjectDir: projectDir,
		DateRun:    time.Now(),
		Files:      files,
		Analyses:   make(map[string]*IssueReport, len(files)),
		Reviews:    make(map[string]*ReviewReport, len(files)),
	}
}

// AddAnalysis records the analyzer's issue report for a file.
func (r *RunReport) AddAnalysis(path string, report *IssueReport) {
	r.Analyses[path] = report
}

// AddReview records the review stage's report for a file.
func (r *RunReport) AddReview(path string, report *ReviewReport) {
	r.Reviews[path] = report
}

// Analysis returns the analyzer's issue report for a file.
// A missing entry is a fatal condition: it means the refactor stage was
// given a file the analyzer never saw, so the caller must abort before
// touching the file on disk.
func (r *RunReport) Analysis(path string) (*IssueReport, error) {
	report, ok := r.Analyses[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAnalysisMissing, path)
	}
	return report, nil
}
