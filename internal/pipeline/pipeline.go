package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/nao1215/codelift/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the run report
// accumulated by previous steps.
//
// Design decision: We use an interface rather than function types because:
// 1. It allows steps to carry configuration state (generator, persona)
// 2. It provides a Name() method for logging and progress output
// 3. It's more extensible for future features (e.g., optional stages)
type Step interface {
	// Do executes the pipeline step over the run's entire file set.
	// It receives the context for cancellation and the report to modify.
	// Returns an error if the step fails critically; the pipeline then
	// stops and no later stage runs.
	Do(ctx context.Context, run *model.RunReport) error

	// Name returns the step's name for logging and progress output.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
// It maintains a list of steps and executes them in order; each step
// fully completes (every per-file operation included) before the next
// begins.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// progress receives human-readable stage markers as the run
	// advances. Nil disables progress output.
	progress io.Writer

	// continueOnError determines whether to continue executing steps
	// after one fails. If false, the pipeline stops on first error.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
// This follows the functional options pattern for clean API design.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, a default logger is created.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithProgress sets a writer for stage progress markers.
// Typically os.Stdout for interactive runs; nil (the default) keeps the
// pipeline silent apart from structured logging.
func WithProgress(w io.Writer) Option {
	return func(p *Pipeline) {
		p.progress = w
	}
}

// WithContinueOnError configures the pipeline to continue execution even
// when a step fails. Failed steps are logged and their errors are
// recorded in the report, but subsequent steps still execute.
//
// The default is to stop: a transport failure mid-analysis means the
// refactor stage would run with an incomplete issue mapping, and a
// failure mid-refactor leaves files half rewritten, so pressing on
// rarely produces a meaningful result.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps:           make([]Step, 0),
		continueOnError: false,
	}

	// Apply options
	for _, opt := range opts {
		opt(p)
	}

	// Set default logger if not provided
	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence over the run's file set.
// It respects context cancellation and logs each step's execution.
//
// Design decision: We check context.Done() before each step rather than
// during, because steps perform their own per-file cancellation checks.
// This allows graceful cleanup between steps while still respecting
// cancellation.
//
// Returns the first error encountered if continueOnError is false,
// or nil if all steps complete (errors are recorded in the report).
func (p *Pipeline) Execute(ctx context.Context, run *model.RunReport) error {
	for i, step := range p.steps {
		// Check for cancellation before starting each step
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", ctx.Err(),
			)
			run.Cancelled = true
			return ctx.Err()
		default:
			// Continue with execution
		}

		if p.progress != nil {
			fmt.Fprintf(p.progress, "Step %d/%d: %s...\n", i+1, len(p.steps), step.Name())
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"project", run.ProjectDir,
			"files", len(run.Files),
		)

		// Execute the step
		if err := step.Do(ctx, run); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"project", run.ProjectDir,
				"error", err,
			)

			// Record the error in the report
			run.Error = err
			run.ErrorMessage = err.Error()

			// Stop or continue based on configuration
			if !p.continueOnError {
				return err
			}
		} else {
			p.logger.Debug("step completed",
				"step", step.Name(),
				"project", run.ProjectDir,
			)
		}

		// Track which steps were performed
		run.PerformedStages = append(run.PerformedStages, step.Name())
	}

	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
