package model

import (
	"sort"
	"time"
)

// RunSummary is a summarized, human-readable digest of a pipeline run.
// It extracts the review outcomes from the full run report for quick review.
//
// Design decision: We create a separate summary rather than printing
// parts of RunReport because:
// 1. It provides a consistent, curated view of the most important results
// 2. It can be serialized to JSON for tools that want structured but simple output
// 3. It separates presentation concerns from pipeline state
type RunSummary struct {
	// ProjectDir is the processed project directory.
	ProjectDir string `json:"project_dir"`

	// DateRun is when the run was performed.
	DateRun time.Time `json:"date_run"`

	// Model is the chat model used.
	Model string `json:"model,omitempty"`

	// FilesProcessed is the number of files in the run's file set.
	FilesProcessed int `json:"files_processed"`

	// GenerationCalls is the total number of generation round trips.
	GenerationCalls int `json:"generation_calls"`

	// AverageScore is the mean review score over parsed reviews.
	// Zero when no review parsed.
	AverageScore float64 `json:"average_score"`

	// LowestScoreFile is the file with the lowest parsed review score.
	LowestScoreFile string `json:"lowest_score_file,omitempty"`

	// LowestScore is the score of LowestScoreFile.
	LowestScore float64 `json:"lowest_score"`

	// ParseFailures counts fallback reports across both decoding stages.
	ParseFailures int `json:"parse_failures"`

	// Reviews lists per-file review outcomes, sorted by path.
	Reviews []FileReview `json:"reviews,omitempty"`

	// Cancelled indicates the run was interrupted.
	Cancelled bool `json:"cancelled,omitempty"`

	// Error contains any error message if the run failed.
	Error string `json:"error,omitempty"`
}

// FileReview is a single file's review outcome in the summary.
type FileReview struct {
	// Path is the file path, the identity key used across all stages.
	Path string `json:"path"`

	// Score is the review score (0 for fallback reviews).
	Score float64 `json:"score"`

	// Parsed indicates the review reply decoded successfully.
	Parsed bool `json:"parsed"`

	// Problems lists reviewer-reported problems (or the parse marker).
	Problems []string `json:"problems,omitempty"`

	// Suggestions lists reviewer suggestions.
	Suggestions []string `json:"suggestions,omitempty"`
}

// NewRunSummary builds a summary from a completed run report.
func NewRunSummary(run *RunReport) *RunSummary {
	s := &RunSummary{
		ProjectDir:      run.ProjectDir,
		DateRun:         run.DateRun,
		Model:           run.Model,
		FilesProcessed:  len(run.Files),
		GenerationCalls: run.GenerationCalls,
		Cancelled:       run.Cancelled,
		Error:           run.ErrorMessage,
	}

	for _, analysis := range run.Analyses {
		if !analysis.Parsed() {
			s.ParseFailures++
		}
	}

	var scoreSum float64
	var scored int
	for path, review := range run.Reviews {
		fr := FileReview{
			Path:        path,
			Score:       review.Score,
			Parsed:      review.Parsed(),
			Problems:    review.Problems,
			Suggestions: review.Suggestions,
		}
		s.Reviews = append(s.Reviews, fr)

		if review.Parsed() {
			scoreSum += review.Score
			scored++
			if s.LowestScoreFile == "" || review.Score < s.LowestScore {
				s.LowestScore = review.Score
				s.LowestScoreFile = path
			}
		} else {
			s.ParseFailures++
		}
	}

	if scored > 0 {
		s.AverageScore = scoreSum / float64(scored)
	}

	// Deterministic output regardless of map iteration order
	sort.Slice(s.Reviews, func(i, j int) bool {
		return s.Reviews[i].Path < s.Reviews[j].Path
	})

	return s
}

// ScoreBucket classifies a parsed review score for summary display.
func ScoreBucket(score float64) string {
	switch {
	case score >= 9:
		return "excellent"
	case score >= 7:
		return "good"
	case score >= 5:
		return "fair"
	default:
		return "poor"
	}
}

// BucketCounts returns the number of reviews per score bucket.
// Fallback (unparsed) reviews are counted under "unparsed".
func (s *RunSummary) BucketCounts() map[string]int {
	counts := make(map[string]int)
	for _, r := range s.Reviews {
		if !r.Parsed {
			counts["unparsed"]++
			continue
		}
		counts[ScoreBucket(r.Score)]++
	}
	return counts
}
