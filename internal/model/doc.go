// Package model defines the data structures shared across the pipeline:
// the per-run report threaded through the stages, the issue and review
// report types with their decode-or-fallback contract, and the
// presentation-level run summary.
package model
