package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nao1215/codelift/internal/llm"
	"github.com/nao1215/codelift/internal/model"
	"github.com/nao1215/codelift/internal/source"
)

// AnalyzeStep asks the generation service to enumerate refactor issues
// for every file in the run's file set.
//
// Design decision: Analysis is a separate step (not folded into refactor)
// because:
// 1. Its output is a mapping the refactor stage consumes as a whole
// 2. Its decode failures are contained via fallback, unlike write stages
// 3. The analysis can be inspected in the run history on its own
type AnalyzeStep struct {
	// gen performs the generation round trips.
	gen llm.Generator

	// persona is the system-role instruction for this stage.
	persona string

	// logger for structured logging.
	logger *slog.Logger
}

// AnalyzeStepOption configures an AnalyzeStep.
type AnalyzeStepOption func(*AnalyzeStep)

// WithAnalyzePersona overrides the stage's system-role instruction.
func WithAnalyzePersona(persona string) AnalyzeStepOption {
	return func(s *AnalyzeStep) {
		if persona != "" {
			s.persona = persona
		}
	}
}

// WithAnalyzeLogger sets a custom logger for the analyze step.
func WithAnalyzeLogger(logger *slog.Logger) AnalyzeStepOption {
	return func(s *AnalyzeStep) {
		s.logger = logger
	}
}

// NewAnalyzeStep creates a new analysis step.
func NewAnalyzeStep(gen llm.Generator, opts ...AnalyzeStepOption) *AnalyzeStep {
	s := &AnalyzeStep{
		gen:     gen,
		persona: AnalyzePersona,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *AnalyzeStep) Name() string {
	return StageAnalyze
}

// Do executes the analysis step.
// Every file in the run's file set gets exactly one entry in the analysis
// mapping, in input order. Decode failures never propagate; they become
// fallback reports. Read and transport failures abort the step.
func (s *AnalyzeStep) Do(ctx context.Context, run *model.RunReport) error {
	for _, file := range run.Files {
		select {
		case <-ctx.Done():
			run.Cancelled = true
			return ctx.Err()
		default:
		}

		content, err := source.ReadFile(file)
		if err != nil {
			return err
		}

		reply, err := s.gen.Generate(ctx, s.persona, analyzePrompt(content))
		if err != nil {
			return fmt.Errorf("analysis failed for %s: %w", file, err)
		}
		run.GenerationCalls++

		report := model.DecodeIssueReport(reply)
		run.AddAnalysis(file, report)

		s.logger.Debug("file analyzed",
			"file", file,
			"parsed", report.Parsed(),
		)
	}

	return nil
}

// RefactorStep rewrites every file based on its analysis, overwriting the
// file with the model's reply verbatim.
//
// This is a destructive overwrite with no validation of the returned text
// and no backup; external version control is the only recovery mechanism.
type RefactorStep struct {
	gen     llm.Generator
	persona string
	logger  *slog.Logger
}

// RefactorStepOption configures a RefactorStep.
type RefactorStepOption func(*RefactorStep)

// WithRefactorPersona overrides the stage's system-role instruction.
func WithRefactorPersona(persona string) RefactorStepOption {
	return func(s *RefactorStep) {
		if persona != "" {
			s.persona = persona
		}
	}
}

// WithRefactorLogger sets a custom logger for the refactor step.
func WithRefactorLogger(logger *slog.Logger) RefactorStepOption {
	return func(s *RefactorStep) {
		s.logger = logger
	}
}

// NewRefactorStep creates a new refactor step.
func NewRefactorStep(gen llm.Generator, opts ...RefactorStepOption) *RefactorStep {
	s := &RefactorStep{
		gen:     gen,
		persona: RefactorPersona,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *RefactorStep) Name() string {
	return StageRefactor
}

// Do executes the refactor step.
// For each file the analysis entry is resolved first: a missing entry is
// a fatal error and the step halts before reading or writing that file.
// This can only happen if the file set diverged from the analyzer's,
// which the orchestrator rules out within one run.
func (s *RefactorStep) Do(ctx context.Context, run *model.RunReport) error {
	for _, file := range run.Files {
		select {
		case <-ctx.Done():
			run.Cancelled = true
			return ctx.Err()
		default:
		}

		analysis, err := run.Analysis(file)
		if err != nil {
			return err
		}

		issues, err := json.MarshalIndent(analysis, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to serialize analysis for %s: %w", file, err)
		}

		content, err := source.ReadFile(file)
		if err != nil {
			return err
		}

		reply, err := s.gen.Generate(ctx, s.persona, refactorPrompt(string(issues), content))
		if err != nil {
			return fmt.Errorf("refactor failed for %s: %w", file, err)
		}
		run.GenerationCalls++

		if err := source.WriteFile(file, reply); err != nil {
			return err
		}

		s.logger.Debug("file refactored",
			"file", file,
			"bytes", len(reply),
		)
	}

	return nil
}

// DocumentStep adds documentation comments to every file, overwriting it
// with the model's reply verbatim. It reads the current (already
// refactored) content, so the refactor stage's output is its input.
type DocumentStep struct {
	gen     llm.Generator
	persona string
	logger  *slog.Logger
}

// DocumentStepOption configures a DocumentStep.
type DocumentStepOption func(*DocumentStep)

// WithDocumentPersona overrides the stage's system-role instruction.
func WithDocumentPersona(persona string) DocumentStepOption {
	return func(s *DocumentStep) {
		if persona != "" {
			s.persona = persona
		}
	}
}

// WithDocumentLogger sets a custom logger for the document step.
func WithDocumentLogger(logger *slog.Logger) DocumentStepOption {
	return func(s *DocumentStep) {
		s.logger = logger
	}
}

// NewDocumentStep creates a new documentation step.
func NewDocumentStep(gen llm.Generator, opts ...DocumentStepOption) *DocumentStep {
	s := &DocumentStep{
		gen:     gen,
		persona: DocumentPersona,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *DocumentStep) Name() string {
	return StageDocument
}

// Do executes the documentation step.
func (s *DocumentStep) Do(ctx context.Context, run *model.RunReport) error {
	for _, file := range run.Files {
		select {
		case <-ctx.Done():
			run.Cancelled = true
			return ctx.Err()
		default:
		}

		content, err := source.ReadFile(file)
		if err != nil {
			return err
		}

		reply, err := s.gen.Generate(ctx, s.persona, documentPrompt(content))
		if err != nil {
			return fmt.Errorf("documentation failed for %s: %w", file, err)
		}
		run.GenerationCalls++

		if err := source.WriteFile(file, reply); err != nil {
			return err
		}

		s.logger.Debug("file documented",
			"file", file,
			"bytes", len(reply),
		)
	}

	return nil
}

// ReviewStep asks the generation service for a structured quality review
// of every file's final (twice-rewritten) content.
type ReviewStep struct {
	gen     llm.Generator
	persona string
	logger  *slog.Logger
}

// ReviewStepOption configures a ReviewStep.
type ReviewStepOption func(*ReviewStep)

// WithReviewPersona overrides the stage's system-role instruction.
func WithReviewPersona(persona string) ReviewStepOption {
	return func(s *ReviewStep) {
		if persona != "" {
			s.persona = persona
		}
	}
}

// WithReviewLogger sets a custom logger for the review step.
func WithReviewLogger(logger *slog.Logger) ReviewStepOption {
	return func(s *ReviewStep) {
		s.logger = logger
	}
}

// NewReviewStep creates a new review step.
func NewReviewStep(gen llm.Generator, opts ...ReviewStepOption) *ReviewStep {
	s := &ReviewStep{
		gen:     gen,
		persona: ReviewPersona,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *ReviewStep) Name() string {
	return StageReview
}

// Do executes the review step.
// Decode failures are contained via the fallback shape (zero score,
// parse marker, raw reply preserved); every input file gets exactly one
// review entry.
func (s *ReviewStep) Do(ctx context.Context, run *model.RunReport) error {
	for _, file := range run.Files {
		select {
		case <-ctx.Done():
			run.Cancelled = true
			return ctx.Err()
		default:
		}

		content, err := source.ReadFile(file)
		if err != nil {
			return err
		}

		reply, err := s.gen.Generate(ctx, s.persona, reviewPrompt(content))
		if err != nil {
			return fmt.Errorf("review failed for %s: %w", file, err)
		}
		run.GenerationCalls++

		report := model.DecodeReviewReport(reply)
		run.AddReview(file, report)

		s.logger.Debug("file reviewed",
			"file", file,
			"score", report.Score,
			"parsed", report.Parsed(),
		)
	}

	return nil
}

// DefaultPipelineConfig holds configuration for the default pipeline.
type DefaultPipelineConfig struct {
	// Personas maps stage names to system-role instruction overrides.
	// Missing stages use the built-in personas.
	Personas map[string]string
}

// DefaultPipelineOption configures a DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelinePersonas sets per-stage persona overrides.
func WithPipelinePersonas(personas map[string]string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Personas = personas
	}
}

// DefaultPipeline creates a pipeline with the four standard stages in
// fixed order: analyze, refactor, document, review.
//
// Design decision: We provide a default pipeline because:
// 1. The stage order is a contract, not a configuration choice
// 2. It reduces boilerplate in the CLI
// 3. It guarantees the refactor stage always runs after analysis
//
// The first variadic parameter accepts pipeline options (WithLogger,
// WithProgress, etc). The second accepts config options
// (WithPipelinePersonas).
func DefaultPipeline(gen llm.Generator, pipelineOpts []Option, configOpts ...DefaultPipelineOption) *Pipeline {
	p := New(pipelineOpts...)

	cfg := &DefaultPipelineConfig{}
	for _, opt := range configOpts {
		opt(cfg)
	}

	p.AddSteps(
		NewAnalyzeStep(gen, WithAnalyzePersona(cfg.Personas[StageAnalyze]), WithAnalyzeLogger(p.logger)),
		NewRefactorStep(gen, WithRefactorPersona(cfg.Personas[StageRefactor]), WithRefactorLogger(p.logger)),
		NewDocumentStep(gen, WithDocumentPersona(cfg.Personas[StageDocument]), WithDocumentLogger(p.logger)),
		NewReviewStep(gen, WithReviewPersona(cfg.Personas[StageReview]), WithReviewLogger(p.logger)),
	)

	return p
}
