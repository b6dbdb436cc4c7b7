package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/codelift/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing, e.g. pasting a
// run's outcome into a pull request description.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the full run report in Markdown format.
func (w *MarkdownWriter) Write(run *model.RunReport) (int, error) {
	summary := run.Summary
	if summary == nil {
		summary = model.NewRunSummary(run)
	}

	return w.WriteSummary(summary)
}

// WriteSummary outputs the run summary in Markdown format.
func (w *MarkdownWriter) WriteSummary(summary *model.RunSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeOverview(md, summary)
	w.writeReviews(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary *model.RunSummary) {
	md.H1("Codelift Run Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Project", "`" + summary.ProjectDir + "`"},
			{"Run Date", summary.DateRun.Format("2006-01-02 15:04:05 MST")},
			{"Model", summary.Model},
			{"Files Processed", strconv.Itoa(summary.FilesProcessed)},
			{"Status", w.getStatusText(summary)},
		},
	})
	md.PlainText("")
}

// getStatusText returns the status text based on run state.
func (w *MarkdownWriter) getStatusText(summary *model.RunSummary) string {
	if summary.Cancelled {
		return "⚠️ Cancelled (partial results)"
	}
	if summary.Error != "" {
		return "❌ Error - " + summary.Error
	}
	return "✅ Complete"
}

// writeOverview writes the score overview section.
func (w *MarkdownWriter) writeOverview(md *markdown.Markdown, summary *model.RunSummary) {
	md.H2("Score Overview")
	md.PlainText("")

	rows := [][]string{
		{"Generation Calls", strconv.Itoa(summary.GenerationCalls)},
		{"Average Score", fmt.Sprintf("%.1f", summary.AverageScore)},
	}
	if summary.LowestScoreFile != "" {
		rows = append(rows, []string{
			"Lowest Score",
			fmt.Sprintf("%.1f (`%s`)", summary.LowestScore, summary.LowestScoreFile),
		})
	}
	rows = append(rows, []string{"Parse Failures", strconv.Itoa(summary.ParseFailures)})

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(summary.Reviews) > 0 {
		w.writePieChart(md, summary)
	}

	w.writeAlert(md, summary)
}

// writePieChart writes a mermaid pie chart of the score distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary *model.RunSummary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Review Score Distribution"),
		piechart.WithShowData(true),
	)

	counts := summary.BucketCounts()
	for _, bucket := range []string{"excellent", "good", "fair", "poor", "unparsed"} {
		if n := counts[bucket]; n > 0 {
			chart.LabelAndIntValue(bucket, uint64(n))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an appropriate alert based on the run outcome.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, summary *model.RunSummary) {
	switch {
	case summary.Error != "":
		md.Cautionf(
			"The run failed before completing all stages: %s. Files may be partially rewritten.",
			summary.Error,
		)
	case summary.Cancelled:
		md.Warningf(
			"The run was cancelled. %d file(s) may have been rewritten before interruption.",
			summary.FilesProcessed,
		)
	case summary.ParseFailures > 0:
		md.Importantf(
			"%d model reply/replies could not be parsed. The raw output is preserved in the full report.",
			summary.ParseFailures,
		)
	case summary.LowestScoreFile != "" && summary.LowestScore < 5:
		md.Note("Some files scored below 5. Review them manually before committing.")
	default:
		md.Tip("All stages completed and every reply parsed cleanly.")
	}
	md.PlainText("")
}

// writeReviews writes the per-file review section.
func (w *MarkdownWriter) writeReviews(md *markdown.Markdown, summary *model.RunSummary) {
	md.H2("File Reviews")
	md.PlainText("")

	if len(summary.Reviews) == 0 {
		md.PlainText("No reviews recorded.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(summary.Reviews))
	for i, r := range summary.Reviews {
		score := "?"
		bucket := "unparsed"
		if r.Parsed {
			score = fmt.Sprintf("%.1f", r.Score)
			bucket = model.ScoreBucket(r.Score)
		}
		rows[i] = []string{
			"`" + r.Path + "`",
			score,
			bucket,
			strconv.Itoa(len(r.Problems)),
			strconv.Itoa(len(r.Suggestions)),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"File", "Score", "Rating", "Problems", "Suggestions"},
		Rows:   rows,
	})
	md.PlainText("")

	// Expandable detail per file with anything to show
	for _, r := range summary.Reviews {
		detail := w.reviewDetail(r)
		if detail != "" {
			md.Details(r.Path, detail)
		}
	}
	md.PlainText("")
}

// reviewDetail renders one file's problems and suggestions as plain text.
func (w *MarkdownWriter) reviewDetail(r model.FileReview) string {
	if len(r.Problems) == 0 && len(r.Suggestions) == 0 {
		return ""
	}

	var detail string
	for _, p := range r.Problems {
		detail += "- problem: " + p + "\n"
	}
	for _, s := range r.Suggestions {
		detail += "- suggestion: " + s + "\n"
	}
	return detail
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [codelift](https://github.com/nao1215/codelift)*")
}
