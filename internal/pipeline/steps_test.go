package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/nao1215/codelift/internal/model"
)

// genCall records a single generation round trip.
type genCall struct {
	system string
	user   string
}

// fakeGenerator is a scripted llm.Generator for step tests.
type fakeGenerator struct {
	mu      sync.Mutex
	calls   []genCall
	replyFn func(system, user string) (string, error)
}

func (f *fakeGenerator) Generate(_ context.Context, system, user string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, genCall{system: system, user: user})
	if f.replyFn != nil {
		return f.replyFn(system, user)
	}
	return "{}", nil
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// writeTestProject creates source files in a temp dir and returns their
// absolute paths in a fixed order.
func writeTestProject(t *testing.T, files map[string]string) (string, []string) {
	t.Helper()

	dir := t.TempDir()
	paths := make([]string, 0, len(files))
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, path)
	}
	// Keep a deterministic order matching directory traversal.
	for i := 0; i < len(paths); i++ {
		for j := i + 1; j < len(paths); j++ {
			if paths[j] < paths[i] {
				paths[i], paths[j] = paths[j], paths[i]
			}
		}
	}
	return dir, paths
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestAnalyzeStep(t *testing.T) {
	t.Parallel()

	t.Run("one entry per file in order", func(t *testing.T) {
		t.Parallel()

		dir, paths := writeTestProject(t, map[string]string{
			"a.go": "package a\n",
			"b.go": "package b\n",
			"c.go": "package c\n",
		})

		gen := &fakeGenerator{replyFn: func(_, _ string) (string, error) {
			return `{"unused_imports": ["fmt"]}`, nil
		}}
		step := NewAnalyzeStep(gen, WithAnalyzeLogger(discardLogger()))
		run := model.NewRunReport(dir, paths)

		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("Do() error = %v", err)
		}

		if len(run.Analyses) != len(paths) {
			t.Fatalf("Analyses has %d entries, want %d", len(run.Analyses), len(paths))
		}
		for _, path := range paths {
			report, err := run.Analysis(path)
			if err != nil {
				t.Fatalf("Analysis(%s) error = %v", path, err)
			}
			if !report.Parsed() {
				t.Errorf("Analysis(%s) should be parsed", path)
			}
		}
		if run.GenerationCalls != len(paths) {
			t.Errorf("GenerationCalls = %d, want %d", run.GenerationCalls, len(paths))
		}
	})

	t.Run("fallback on unparsable reply", func(t *testing.T) {
		t.Parallel()

		dir, paths := writeTestProject(t, map[string]string{"a.go": "package a\n"})

		raw := "Sure! Here are the issues I found:\n- nothing"
		gen := &fakeGenerator{replyFn: func(_, _ string) (string, error) {
			return raw, nil
		}}
		step := NewAnalyzeStep(gen, WithAnalyzeLogger(discardLogger()))
		run := model.NewRunReport(dir, paths)

		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("Do() error = %v", err)
		}

		report := run.Analyses[paths[0]]
		if report.Parsed() {
			t.Fatal("report should be a fallback wrapper")
		}
		if len(report.Issues) != 1 || report.Issues[0] != model.UnparsedIssuesMarker {
			t.Errorf("Issues = %v, want [%q]", report.Issues, model.UnparsedIssuesMarker)
		}
		if report.Raw != raw {
			t.Errorf("Raw = %q, want original reply preserved", report.Raw)
		}
	})

	t.Run("sends persona as system instruction", func(t *testing.T) {
		t.Parallel()

		dir, paths := writeTestProject(t, map[string]string{"a.go": "package a\n"})

		gen := &fakeGenerator{}
		step := NewAnalyzeStep(gen, WithAnalyzeLogger(discardLogger()))
		run := model.NewRunReport(dir, paths)

		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("Do() error = %v", err)
		}

		if gen.calls[0].system != AnalyzePersona {
			t.Errorf("system = %q, want %q", gen.calls[0].system, AnalyzePersona)
		}
		if !strings.Contains(gen.calls[0].user, "package a") {
			t.Error("prompt should embed the file content")
		}
	})

	t.Run("persona override", func(t *testing.T) {
		t.Parallel()

		dir, paths := writeTestProject(t, map[string]string{"a.go": "package a\n"})

		gen := &fakeGenerator{}
		step := NewAnalyzeStep(gen,
			WithAnalyzePersona("You are a strict linter."),
			WithAnalyzeLogger(discardLogger()),
		)
		run := model.NewRunReport(dir, paths)

		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if gen.calls[0].system != "You are a strict linter." {
			t.Errorf("system = %q, want override", gen.calls[0].system)
		}
	})

	t.Run("empty override keeps built-in persona", func(t *testing.T) {
		t.Parallel()

		step := NewAnalyzeStep(&fakeGenerator{}, WithAnalyzePersona(""))
		if step.persona != AnalyzePersona {
			t.Errorf("persona = %q, want built-in default", step.persona)
		}
	})

	t.Run("transport error aborts", func(t *testing.T) {
		t.Parallel()

		dir, paths := writeTestProject(t, map[string]string{
			"a.go": "package a\n",
			"b.go": "package b\n",
		})

		wantErr := errors.New("connection refused")
		gen := &fakeGenerator{replyFn: func(_, _ string) (string, error) {
			return "", wantErr
		}}
		step := NewAnalyzeStep(gen, WithAnalyzeLogger(discardLogger()))
		run := model.NewRunReport(dir, paths)

		err := step.Do(context.Background(), run)
		if !errors.Is(err, wantErr) {
			t.Fatalf("Do() error = %v, want %v", err, wantErr)
		}
		if len(run.Analyses) != 0 {
			t.Errorf("Analyses should be empty after first-file failure, got %d", len(run.Analyses))
		}
	})
}

func TestRefactorStep(t *testing.T) {
	t.Parallel()

	t.Run("writes reply verbatim", func(t *testing.T) {
		t.Parallel()

		dir, paths := writeTestProject(t, map[string]string{"a.go": "package a\n\nfunc unused() {}\n"})

		// Deliberately messy reply: fences, prose, trailing whitespace.
		// The step must not clean any of it up.
		reply := "```go\npackage a\n```\nHope this helps!  \n"
		gen := &fakeGenerator{replyFn: func(_, _ string) (string, error) {
			return reply, nil
		}}

		run := model.NewRunReport(dir, paths)
		run.AddAnalysis(paths[0], model.DecodeIssueReport(`{"dead_code": ["unused"]}`))

		step := NewRefactorStep(gen, WithRefactorLogger(discardLogger()))
		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("Do() error = %v", err)
		}

		got, err := os.ReadFile(paths[0])
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != reply {
			t.Errorf("file content = %q, want reply byte-for-byte %q", got, reply)
		}
	})

	t.Run("embeds serialized analysis in prompt", func(t *testing.T) {
		t.Parallel()

		dir, paths := writeTestProject(t, map[string]string{"a.go": "package a\n"})

		gen := &fakeGenerator{replyFn: func(_, _ string) (string, error) {
			return "package a\n", nil
		}}

		run := model.NewRunReport(dir, paths)
		run.AddAnalysis(paths[0], model.DecodeIssueReport(`{"poor_naming": ["x"]}`))

		step := NewRefactorStep(gen, WithRefactorLogger(discardLogger()))
		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("Do() error = %v", err)
		}

		if !strings.Contains(gen.calls[0].user, `"poor_naming"`) {
			t.Errorf("prompt should embed the analysis, got %q", gen.calls[0].user)
		}
	})

	t.Run("missing analysis halts before touching the file", func(t *testing.T) {
		t.Parallel()

		original := "package a\n"
		dir, paths := writeTestProject(t, map[string]string{"a.go": original})

		gen := &fakeGenerator{replyFn: func(_, _ string) (string, error) {
			return "SHOULD NEVER BE WRITTEN", nil
		}}

		// No AddAnalysis call: the analyzer never saw this file.
		run := model.NewRunReport(dir, paths)

		step := NewRefactorStep(gen, WithRefactorLogger(discardLogger()))
		err := step.Do(context.Background(), run)
		if !errors.Is(err, model.ErrAnalysisMissing) {
			t.Fatalf("Do() error = %v, want ErrAnalysisMissing", err)
		}

		if gen.callCount() != 0 {
			t.Error("no generation request should be made for a file without analysis")
		}
		got, readErr := os.ReadFile(paths[0])
		if readErr != nil {
			t.Fatal(readErr)
		}
		if string(got) != original {
			t.Errorf("file was modified: %q, want untouched %q", got, original)
		}
	})
}

func TestDocumentStep(t *testing.T) {
	t.Parallel()

	t.Run("reads current content and overwrites", func(t *testing.T) {
		t.Parallel()

		dir, paths := writeTestProject(t, map[string]string{"a.go": "refactored content\n"})

		gen := &fakeGenerator{replyFn: func(_, user string) (string, error) {
			if !strings.Contains(user, "refactored content") {
				t.Errorf("prompt should embed current file content, got %q", user)
			}
			return "documented content\n", nil
		}}

		run := model.NewRunReport(dir, paths)
		step := NewDocumentStep(gen, WithDocumentLogger(discardLogger()))
		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("Do() error = %v", err)
		}

		got, err := os.ReadFile(paths[0])
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "documented content\n" {
			t.Errorf("file content = %q, want documented reply", got)
		}
	})
}

func TestReviewStep(t *testing.T) {
	t.Parallel()

	t.Run("structured review", func(t *testing.T) {
		t.Parallel()

		dir, paths := writeTestProject(t, map[string]string{"a.go": "package a\n"})

		gen := &fakeGenerator{replyFn: func(_, _ string) (string, error) {
			return `{"score": 8.5, "problems": ["no tests"], "suggestions": ["add tests"]}`, nil
		}}

		run := model.NewRunReport(dir, paths)
		step := NewReviewStep(gen, WithReviewLogger(discardLogger()))
		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("Do() error = %v", err)
		}

		review := run.Reviews[paths[0]]
		if review == nil {
			t.Fatal("review entry missing")
		}
		if !review.Parsed() {
			t.Fatal("review should be parsed")
		}
		if review.Score != 8.5 {
			t.Errorf("Score = %v, want 8.5", review.Score)
		}
	})

	t.Run("fallback on unparsable reply", func(t *testing.T) {
		t.Parallel()

		dir, paths := writeTestProject(t, map[string]string{"a.go": "package a\n"})

		raw := "Looks great, 9/10!"
		gen := &fakeGenerator{replyFn: func(_, _ string) (string, error) {
			return raw, nil
		}}

		run := model.NewRunReport(dir, paths)
		step := NewReviewStep(gen, WithReviewLogger(discardLogger()))
		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("Do() error = %v", err)
		}

		review := run.Reviews[paths[0]]
		if review.Parsed() {
			t.Fatal("review should be a fallback wrapper")
		}
		if review.Score != 0 {
			t.Errorf("Score = %v, want 0", review.Score)
		}
		if len(review.Problems) != 1 || review.Problems[0] != model.UnparsedReviewMarker {
			t.Errorf("Problems = %v, want [%q]", review.Problems, model.UnparsedReviewMarker)
		}
		if review.Raw != raw {
			t.Errorf("Raw = %q, want original reply preserved", review.Raw)
		}
	})
}

func TestDefaultPipeline(t *testing.T) {
	t.Parallel()

	t.Run("four stages in fixed order", func(t *testing.T) {
		t.Parallel()

		p := DefaultPipeline(&fakeGenerator{}, []Option{WithLogger(discardLogger())})

		want := []string{StageAnalyze, StageRefactor, StageDocument, StageReview}
		got := p.StepNames()
		if len(got) != len(want) {
			t.Fatalf("StepNames() = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("stage %d = %s, want %s", i, got[i], want[i])
			}
		}
	})

	t.Run("four generation calls per file", func(t *testing.T) {
		t.Parallel()

		dir, paths := writeTestProject(t, map[string]string{
			"a.go": "package a\n",
			"b.go": "package b\n",
		})

		gen := &fakeGenerator{replyFn: func(system, _ string) (string, error) {
			switch system {
			case AnalyzePersona:
				return `{"issues": []}`, nil
			case ReviewPersona:
				return `{"score": 7, "problems": [], "suggestions": []}`, nil
			default:
				return "package rewritten\n", nil
			}
		}}

		p := DefaultPipeline(gen, []Option{WithLogger(discardLogger())})
		run := model.NewRunReport(dir, paths)

		if err := p.Execute(context.Background(), run); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}

		if want := 4 * len(paths); run.GenerationCalls != want {
			t.Errorf("GenerationCalls = %d, want %d", run.GenerationCalls, want)
		}
		if len(run.Analyses) != len(paths) || len(run.Reviews) != len(paths) {
			t.Errorf("Analyses/Reviews = %d/%d entries, want %d each",
				len(run.Analyses), len(run.Reviews), len(paths))
		}
		if len(run.PerformedStages) != 4 {
			t.Errorf("PerformedStages = %v, want 4 stages", run.PerformedStages)
		}
	})

	t.Run("persona overrides reach the steps", func(t *testing.T) {
		t.Parallel()

		dir, paths := writeTestProject(t, map[string]string{"a.go": "package a\n"})

		var systems []string
		var mu sync.Mutex
		gen := &fakeGenerator{replyFn: func(system, _ string) (string, error) {
			mu.Lock()
			systems = append(systems, system)
			mu.Unlock()
			return `{}`, nil
		}}

		p := DefaultPipeline(gen,
			[]Option{WithLogger(discardLogger())},
			WithPipelinePersonas(map[string]string{
				StageAnalyze: "You are a custom analyzer.",
				StageReview:  "You are a custom reviewer.",
			}),
		)
		run := model.NewRunReport(dir, paths)

		if err := p.Execute(context.Background(), run); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}

		want := []string{
			"You are a custom analyzer.",
			RefactorPersona,
			DocumentPersona,
			"You are a custom reviewer.",
		}
		if len(systems) != len(want) {
			t.Fatalf("got %d calls, want %d", len(systems), len(want))
		}
		for i := range want {
			if systems[i] != want[i] {
				t.Errorf("call %d system = %q, want %q", i, systems[i], want[i])
			}
		}
	})
}
