package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/codelift/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display after a run finishes,
// with clear section formatting and a per-file score listing.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no entries are shown.
	showEmpty bool

	// verbose enables per-file problem and suggestion listings.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with problems and suggestions
// listed under each reviewed file.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		showEmpty:  false,
		verbose:    false,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the full run report in human-readable format.
// It generates a RunSummary from the RunReport if not already present.
func (w *SimpleWriter) Write(run *model.RunReport) (int, error) {
	summary := run.Summary
	if summary == nil {
		summary = model.NewRunSummary(run)
	}

	return w.WriteSummary(summary)
}

// WriteSummary outputs the run summary in human-readable format.
func (w *SimpleWriter) WriteSummary(summary *model.RunSummary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeOverview(&sb, summary)
	w.writeReviews(&sb, summary)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, summary *model.RunSummary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         CODELIFT RUN REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Project:   %s\n", summary.ProjectDir))
	sb.WriteString(fmt.Sprintf("Run Date:  %s\n", summary.DateRun.Format("2006-01-02 15:04:05 MST")))
	if summary.Model != "" {
		sb.WriteString(fmt.Sprintf("Model:     %s\n", summary.Model))
	}

	switch {
	case summary.Cancelled:
		sb.WriteString("Status:    CANCELLED (partial results)\n")
	case summary.Error != "":
		sb.WriteString(fmt.Sprintf("Status:    ERROR - %s\n", summary.Error))
	default:
		sb.WriteString("Status:    Complete\n")
	}

	sb.WriteString("\n")
}

// writeOverview writes the aggregate numbers section.
func (w *SimpleWriter) writeOverview(sb *strings.Builder, summary *model.RunSummary) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("OVERVIEW\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("  Files processed:   %d\n", summary.FilesProcessed))
	sb.WriteString(fmt.Sprintf("  Generation calls:  %d\n", summary.GenerationCalls))
	sb.WriteString(fmt.Sprintf("  Average score:     %.1f\n", summary.AverageScore))
	if summary.LowestScoreFile != "" {
		sb.WriteString(fmt.Sprintf("  Lowest score:      %.1f (%s)\n", summary.LowestScore, summary.LowestScoreFile))
	}
	if summary.ParseFailures > 0 {
		sb.WriteString(fmt.Sprintf("  Parse failures:    %d\n", summary.ParseFailures))
	}
	sb.WriteString("\n")
}

// writeReviews writes the per-file review section.
func (w *SimpleWriter) writeReviews(sb *strings.Builder, summary *model.RunSummary) {
	if len(summary.Reviews) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("REVIEWS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(summary.Reviews) == 0 {
		sb.WriteString("  No reviews recorded\n\n")
		return
	}

	for _, r := range summary.Reviews {
		if r.Parsed {
			sb.WriteString(fmt.Sprintf("  [%4.1f] %s (%s)\n", r.Score, r.Path, model.ScoreBucket(r.Score)))
		} else {
			sb.WriteString(fmt.Sprintf("  [ ?? ] %s (unparsed reply)\n", r.Path))
		}

		if w.verbose {
			for _, p := range r.Problems {
				sb.WriteString(fmt.Sprintf("         problem: %s\n", p))
			}
			for _, s := range r.Suggestions {
				sb.WriteString(fmt.Sprintf("         suggest: %s\n", s))
			}
		}
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by codelift\n")
	sb.WriteString("https://github.com/nao1215/codelift\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
