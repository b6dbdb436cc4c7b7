package model

import (
	"encoding/json"
)

// Markers stored in fallback reports when a model reply cannot be decoded.
// These exact strings are part of the report contract: downstream tooling
// and the history database match on them, so they must not change.
const (
	// UnparsedIssuesMarker is stored in IssueReport.Issues when the
	// analyzer reply is not valid structured JSON.
	UnparsedIssuesMarker = "Unable to parse AI output"

	// UnparsedReviewMarker is stored in ReviewReport.Problems when the
	// review reply is not valid structured JSON.
	UnparsedReviewMarker = "Parsing error"
)

// IssueReport is the analyzer's result for a single file.
//
// It is one of two shapes: a structured decode of the model reply
// (Data holds the decoded JSON object) or a fallback wrapper carrying
// a fixed marker plus the raw reply text. The fallback is the analyzer
// stage's only error-containment mechanism: decoding must never fail
// upward, only degrade into the wrapper.
type IssueReport struct {
	// Data is the decoded JSON object when parsing succeeded.
	// Nil when this report is a fallback wrapper.
	Data map[string]any

	// Issues carries the fixed parse-failure marker in fallback reports.
	Issues []string

	// Raw preserves the original model reply verbatim in fallback reports.
	Raw string
}

// DecodeIssueReport interprets a model reply as an issue report.
// Any decode failure (invalid JSON, non-object JSON) yields the fallback
// shape; this function never returns an error by design. Repeated calls
// with the same reply always produce the same result.
func DecodeIssueReport(reply string) *IssueReport {
	var data map[string]any
	// A literal JSON null leaves the map nil without an unmarshal error,
	// so require an actual object before accepting the decode.
	if err := json.Unmarshal([]byte(reply), &data); err != nil || data == nil {
		return &IssueReport{
			Issues: []string{UnparsedIssuesMarker},
			Raw:    reply,
		}
	}
	return &IssueReport{Data: data}
}

// Parsed reports whether the model reply was decoded successfully.
func (r *IssueReport) Parsed() bool {
	return r.Data != nil
}

// MarshalJSON serializes the report in the shape the refactor prompt and
// the history database expect: the decoded object itself on success, or
// {"issues": [...], "raw": "..."} for the fallback wrapper.
func (r *IssueReport) MarshalJSON() ([]byte, error) {
	if r.Data != nil {
		return json.Marshal(r.Data)
	}
	return json.Marshal(struct {
		Issues []string `json:"issues"`
		Raw    string   `json:"raw"`
	}{
		Issues: r.Issues,
		Raw:    r.Raw,
	})
}

// UnmarshalJSON restores a report serialized by MarshalJSON.
// An object carrying exactly the fallback keys (a string "raw" and an
// "issues" list) is restored as a fallback wrapper; anything else is
// treated as structured data.
func (r *IssueReport) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}

	if raw, ok := m["raw"].(string); ok && len(m) == 2 {
		if issues, ok := m["issues"].([]any); ok {
			r.Raw = raw
			r.Issues = make([]string, 0, len(issues))
			for _, v := range issues {
				if s, ok := v.(string); ok {
					r.Issues = append(r.Issues, s)
				}
			}
			return nil
		}
	}

	r.Data = m
	return nil
}

// ReviewReport is the review stage's result for a single file.
//
// Like IssueReport it is either a structured decode (score, problems,
// suggestions) or a fallback wrapper with a zero score, a fixed marker
// in Problems, and the raw reply preserved.
type ReviewReport struct {
	// Score is the model's quality score on a 0-10 scale.
	// Zero in fallback reports.
	Score float64 `json:"score"`

	// Problems lists the issues the reviewer found.
	// In fallback reports it holds only the parse-failure marker.
	Problems []string `json:"problems"`

	// Suggestions lists improvement suggestions. Empty in fallback reports.
	Suggestions []string `json:"suggestions"`

	// Raw preserves the original model reply verbatim in fallback reports.
	Raw string `json:"raw,omitempty"`
}

// DecodeReviewReport interprets a model reply as a review report.
// Any decode failure (invalid JSON, wrong field types) yields the
// fallback shape; this function never returns an error by design.
func DecodeReviewReport(reply string) *ReviewReport {
	// A literal JSON null unmarshals into the zero struct without error,
	// which would masquerade as a parsed zero-score review. Require a
	// JSON object before decoding the struct.
	var obj map[string]any
	if err := json.Unmarshal([]byte(reply), &obj); err != nil || obj == nil {
		return &ReviewReport{
			Score:    0,
			Problems: []string{UnparsedReviewMarker},
			Raw:      reply,
		}
	}

	var rr ReviewReport
	if err := json.Unmarshal([]byte(reply), &rr); err != nil {
		return &ReviewReport{
			Score:    0,
			Problems: []string{UnparsedReviewMarker},
			Raw:      reply,
		}
	}
	rr.Raw = ""
	return &rr
}

// Parsed reports whether the model reply was decoded successfully.
func (r *ReviewReport) Parsed() bool {
	return r.Raw == ""
}
