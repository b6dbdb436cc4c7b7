package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/codelift/internal/model"
	"golang.org/x/sync/errgroup"
)

// BatchProcessor handles concurrent processing of multiple project runs.
// It uses errgroup to manage goroutines and respect concurrency limits.
//
// The four stages within one run stay strictly sequential; the batch
// processor only parallelizes across independent project directories,
// which never share files.
//
// Design decision: We use a separate BatchProcessor rather than adding
// batch functionality to Pipeline because:
// 1. It keeps the Pipeline focused on single-run execution
// 2. It allows different batch strategies (e.g., rate limiting, retries)
// 3. It provides cleaner separation of concerns
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each run.
	// We use a factory to ensure each run gets a fresh pipeline instance.
	pipelineFactory func() *Pipeline

	// concurrency is the maximum number of concurrent runs.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent runs.
// Default is 4 if not specified.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
//
// The pipelineFactory function is called for each run to create a fresh
// pipeline instance. This ensures that pipeline state doesn't leak
// between runs and allows for per-run customization if needed.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     4,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch executes pipelines for multiple runs concurrently.
// Each run must already carry its enumerated file set; enumeration is
// the caller's responsibility so that the "one file set per run"
// invariant is established before any concurrency starts.
//
// Design decision: We use errgroup.SetLimit rather than a worker pool
// because it's simpler and errgroup handles the concurrency correctly.
// Each run gets its own goroutine, but only 'concurrency' goroutines
// run simultaneously.
//
// Pipeline failures don't abort the batch; the error is recorded in the
// failed run's report. The error return indicates cancellation.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, runs []*model.RunReport) error {
	return bp.ProcessBatchWithCallback(ctx, runs, nil)
}

// ProcessBatchWithCallback executes pipelines for multiple runs and
// calls a callback for each completed run. This is useful for streaming
// per-project output as results arrive.
//
// The callback receives the run and its index in the original slice.
// It is called from the goroutine that completed the run, so it must be
// thread-safe if it accesses shared state.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	runs []*model.RunReport,
	callback func(run *model.RunReport, index int),
) error {
	bp.logger.Info("starting batch processing",
		"total_projects", len(runs),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, run := range runs {
		g.Go(func() error {
			// Check for cancellation before starting
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Info("processing project",
				"project", run.ProjectDir,
				"index", i+1,
				"total", len(runs),
			)

			pipeline := bp.pipelineFactory()
			if err := pipeline.Execute(ctx, run); err != nil {
				bp.logger.Warn("run failed",
					"project", run.ProjectDir,
					"error", err,
				)
				// Don't return the error to errgroup - we want other
				// runs to continue. The error is recorded in the report.
			}

			if callback != nil {
				callback(run, i)
			}

			return nil
		})
	}

	err := g.Wait()

	elapsed := time.Since(startTime)
	bp.logger.Info("batch processing complete",
		"total_projects", len(runs),
		"elapsed", elapsed,
	)

	return err
}
