// Package database provides SQLite-based storage for pipeline run history.
//
// This package stores complete run reports as JSON alongside queryable
// per-file review rows, enabling:
//   - Run history listing per project without loading full reports
//   - Comparing review scores between runs of the same project
//   - Retrieving a past run's complete report by ID
//
// Design decision: We use modernc.org/sqlite (pure Go SQLite) rather than
// mattn/go-sqlite3 because:
// 1. No CGO dependency simplifies cross-compilation
// 2. Single static binary distribution
// 3. Sufficient performance for our single-writer workload
package database
