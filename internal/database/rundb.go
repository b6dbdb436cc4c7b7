package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/codelift/internal/model"
)

// RunDB provides SQLite-based storage for pipeline run history.
// It manages connection pooling and provides methods for CRUD operations.
//
// Design decision: We use a single database file for all projects rather
// than one file per project directory. This simplifies cross-project
// queries (listing everything codelift has touched) and backup/restore.
type RunDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures RunDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a RunDB at the specified path.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*RunDB, error) {
	dbPath := filepath.Join(dbDir, "codelift.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite uses mode=rw to prevent creating new files and
	// mode=rwc to allow creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer; a single connection avoids
	// SQLITE_BUSY errors under concurrent batch runs.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &RunDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return rdb, nil
}

// Close closes the database connection.
func (rdb *RunDB) Close() error {
	return rdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (rdb *RunDB) createTables() error {
	schema := `
	-- Runs store complete pipeline run reports as JSON
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_dir TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		model TEXT,
		files_processed INTEGER DEFAULT 0,
		generation_calls INTEGER DEFAULT 0,
		average_score REAL DEFAULT 0,
		parse_failures INTEGER DEFAULT 0,
		cancelled INTEGER DEFAULT 0,
		error_message TEXT,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_project ON runs(project_dir);
	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(timestamp);

	-- File reviews store per-file review outcomes for quick queries
	CREATE TABLE IF NOT EXISTS file_reviews (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		path TEXT NOT NULL,
		score REAL DEFAULT 0,
		parsed INTEGER DEFAULT 0,
		problems_json TEXT,
		suggestions_json TEXT,
		FOREIGN KEY(run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_reviews_run ON file_reviews(run_id);
	CREATE INDEX IF NOT EXISTS idx_reviews_path ON file_reviews(path);
	`

	_, err := rdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRunReport saves a complete run report and its per-file reviews.
// Both inserts happen in one transaction so history queries never see a
// run without its reviews.
func (rdb *RunDB) SaveRunReport(ctx context.Context, run *model.RunReport) (int64, error) {
	if run.Summary == nil {
		run.Summary = model.NewRunSummary(run)
	}

	reportJSON, err := json.Marshal(run)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize run report: %w", err)
	}

	tx, err := rdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
	INSERT INTO runs (project_dir, model, files_processed, generation_calls,
		average_score, parse_failures, cancelled, error_message, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ProjectDir,
		run.Model,
		run.Summary.FilesProcessed,
		run.Summary.GenerationCalls,
		run.Summary.AverageScore,
		run.Summary.ParseFailures,
		boolToInt(run.Cancelled),
		run.ErrorMessage,
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}

	for _, review := range run.Summary.Reviews {
		problemsJSON, err := json.Marshal(review.Problems)
		if err != nil {
			return 0, fmt.Errorf("failed to serialize problems: %w", err)
		}
		suggestionsJSON, err := json.Marshal(review.Suggestions)
		if err != nil {
			return 0, fmt.Errorf("failed to serialize suggestions: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
		INSERT INTO file_reviews (run_id, path, score, parsed, problems_json, suggestions_json)
		VALUES (?, ?, ?, ?, ?, ?)
		`,
			runID,
			review.Path,
			review.Score,
			boolToInt(review.Parsed),
			string(problemsJSON),
			string(suggestionsJSON),
		); err != nil {
			return 0, fmt.Errorf("failed to insert file review: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}

	return runID, nil
}

// GetLatestRunReport retrieves the most recent run report for a project.
// Returns nil without error when the project has no recorded runs.
func (rdb *RunDB) GetLatestRunReport(ctx context.Context, projectDir string) (*model.RunReport, error) {
	query := `
	SELECT report_json FROM runs
	WHERE project_dir = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT 1
	`

	var reportJSON string
	err := rdb.db.QueryRowContext(ctx, query, projectDir).Scan(&reportJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run report: %w", err)
	}

	var run model.RunReport
	if err := json.Unmarshal([]byte(reportJSON), &run); err != nil {
		return nil, fmt.Errorf("failed to parse run report: %w", err)
	}

	return &run, nil
}

// GetRunHistory retrieves run reports for a project, most recent first.
// A limit of 0 returns all recorded runs.
func (rdb *RunDB) GetRunHistory(ctx context.Context, projectDir string, limit int) ([]*model.RunReport, error) {
	query := `
	SELECT report_json FROM runs
	WHERE project_dir = ?
	ORDER BY timestamp DESC, id DESC
	`
	args := []any{projectDir}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := rdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	var runs []*model.RunReport
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		var run model.RunReport
		if err := json.Unmarshal([]byte(reportJSON), &run); err != nil {
			continue // Skip malformed reports
		}
		runs = append(runs, &run)
	}

	return runs, rows.Err()
}

// RunMetadata contains summary information about a stored run.
// This is used for displaying run history without loading the full report.
type RunMetadata struct {
	// ID is the unique identifier of the run in the database.
	ID int64

	// ProjectDir is the processed project directory.
	ProjectDir string

	// Timestamp is when the run was performed.
	Timestamp time.Time

	// Model is the chat model used for the run.
	Model string

	// FilesProcessed is the number of files in the run's file set.
	FilesProcessed int

	// GenerationCalls is the total number of generation round trips.
	GenerationCalls int

	// AverageScore is the mean review score over parsed reviews.
	AverageScore float64

	// ParseFailures counts fallback reports in the run.
	ParseFailures int

	// Cancelled indicates the run was interrupted.
	Cancelled bool

	// ErrorMessage holds the run's fatal error, if any.
	ErrorMessage string
}

// GetRunHistoryWithMetadata retrieves run metadata for a project.
// This is more efficient than GetRunHistory when only metadata is needed.
func (rdb *RunDB) GetRunHistoryWithMetadata(ctx context.Context, projectDir string, limit int) ([]RunMetadata, error) {
	query := `
	SELECT id, project_dir, timestamp, model, files_processed,
		generation_calls, average_score, parse_failures, cancelled, error_message
	FROM runs
	WHERE project_dir = ?
	ORDER BY timestamp DESC, id DESC
	`
	args := []any{projectDir}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := rdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var meta RunMetadata
		var timestamp string
		var cancelled int
		var errMsg sql.NullString
		var mdl sql.NullString

		if err := rows.Scan(
			&meta.ID,
			&meta.ProjectDir,
			&timestamp,
			&mdl,
			&meta.FilesProcessed,
			&meta.GenerationCalls,
			&meta.AverageScore,
			&meta.ParseFailures,
			&cancelled,
			&errMsg,
		); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		meta.Timestamp = parseTimestamp(timestamp)
		meta.Cancelled = cancelled != 0
		meta.Model = mdl.String
		meta.ErrorMessage = errMsg.String

		results = append(results, meta)
	}

	return results, rows.Err()
}

// GetRunReportByID retrieves a run report by its database ID.
func (rdb *RunDB) GetRunReportByID(ctx context.Context, id int64) (*model.RunReport, error) {
	query := `
	SELECT report_json FROM runs
	WHERE id = ?
	`

	var reportJSON string
	err := rdb.db.QueryRowContext(ctx, query, id).Scan(&reportJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run report: %w", err)
	}

	var run model.RunReport
	if err := json.Unmarshal([]byte(reportJSON), &run); err != nil {
		return nil, fmt.Errorf("failed to parse run report: %w", err)
	}

	return &run, nil
}

// ListProjects returns all project directories with recorded runs.
func (rdb *RunDB) ListProjects(ctx context.Context) ([]string, error) {
	query := `
	SELECT DISTINCT project_dir FROM runs
	ORDER BY project_dir
	`

	rows, err := rdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []string
	for rows.Next() {
		var project string
		if err := rows.Scan(&project); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}

	return projects, rows.Err()
}

// FileScoreHistory is one file's score in a specific run, used for
// comparing scores across runs.
type FileScoreHistory struct {
	// RunID identifies the run this score belongs to.
	RunID int64

	// Path is the reviewed file path.
	Path string

	// Score is the review score in that run.
	Score float64

	// Parsed indicates the review decoded successfully.
	Parsed bool
}

// GetFileScores retrieves the per-file scores recorded for a run.
func (rdb *RunDB) GetFileScores(ctx context.Context, runID int64) ([]FileScoreHistory, error) {
	query := `
	SELECT run_id, path, score, parsed FROM file_reviews
	WHERE run_id = ?
	ORDER BY path
	`

	rows, err := rdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get file scores: %w", err)
	}
	defer rows.Close()

	var results []FileScoreHistory
	for rows.Next() {
		var fs FileScoreHistory
		var parsed int
		if err := rows.Scan(&fs.RunID, &fs.Path, &fs.Score, &parsed); err != nil {
			return nil, fmt.Errorf("failed to scan file score: %w", err)
		}
		fs.Parsed = parsed != 0
		results = append(results, fs)
	}

	return results, rows.Err()
}

// boolToInt converts a bool to the 0/1 representation SQLite stores.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// SQLite may return timestamps in different formats depending on configuration.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
