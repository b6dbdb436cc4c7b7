// Package pipeline provides a framework for executing the refactor stages
// in sequence.
//
// The pipeline pattern processes a project's enumerated file set through
// four fixed stages: analyze, refactor, document, and review. Each stage
// is implemented as a Step that receives the current run report and can
// modify it; the analyze stage's output mapping is consumed by the
// refactor stage through the same report.
//
// Design decision: We use a pipeline pattern instead of direct function
// calls because:
// 1. It provides consistent error handling and logging across stages
// 2. It supports cancellation via context for long-running runs
// 3. The fixed ordering (a stage fully completes before the next begins)
//    is enforced in one place instead of by call-site discipline
//
// The pipeline supports both single-project runs and batch processing of
// multiple projects with concurrency control using errgroup; the stages
// within one run are always sequential.
package pipeline
