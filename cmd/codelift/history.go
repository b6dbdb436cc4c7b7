package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/codelift/internal/config"
	"github.com/nao1215/codelift/internal/database"
	"github.com/nao1215/codelift/internal/model"
)

// Constants for score direction messages.
const (
	scoreDirectionImproved  = "improved"
	scoreDirectionDeclined  = "declined"
	scoreDirectionUnchanged = "unchanged"
)

// NewHistoryCmd creates the history command.
// This command inspects run results stored in the database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [project-dir]",
		Short: "Inspect run history stored in the database",
		Long: `History lists past pipeline runs for a project and compares review
scores between runs.

Every 'codelift run' stores its full report in the run-history database.
This command retrieves that data and shows:
- Per-run metadata (date, model, files processed, average score)
- Score changes per file between the latest two runs

Examples:
  # List run history for a project
  codelift history ./myproject

  # Compare review scores between the latest two runs
  codelift history --compare ./myproject

  # Compare with a specific run by ID (use the listing to find IDs)
  codelift history --compare --with-run-id 5 ./myproject

  # Output in JSON format
  codelift history --json ./myproject

  # List all projects in the database
  codelift history --list-projects`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	// Listing flags
	cmd.Flags().BoolP("list-projects", "L", false,
		"List all projects with recorded runs")
	cmd.Flags().IntP("limit", "n", 0,
		"Maximum number of runs to list (0 = all)")

	// Comparison flags
	cmd.Flags().Bool("compare", false,
		"Compare review scores between the latest two runs")
	cmd.Flags().Int64P("with-run-id", "i", 0,
		"Compare the latest run with a specific run by ID")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output result in JSON format")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	listProjects, err := cmd.Flags().GetBool("list-projects")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database
	var projectDir string
	if !listProjects {
		if len(args) == 0 {
			return errors.New("project directory is required (use --list-projects to see available projects)")
		}
		projectDir, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid project directory: %w", err)
		}
	}

	// Use XDG data directory for database
	dbDir := config.XDGDataDir()

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	if listProjects {
		return listRecordedProjects(ctx, db)
	}

	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	compare, err := cmd.Flags().GetBool("compare")
	if err != nil {
		return err
	}
	withRunID, err := cmd.Flags().GetInt64("with-run-id")
	if err != nil {
		return err
	}

	if compare || withRunID > 0 {
		return runComparison(ctx, db, projectDir, withRunID, jsonOutput)
	}

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	return listRunHistory(ctx, db, projectDir, limit, jsonOutput)
}

// listRecordedProjects lists all projects that have run records.
func listRecordedProjects(ctx context.Context, db *database.RunDB) error {
	projects, err := db.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}

	if len(projects) == 0 {
		fmt.Println("No recorded runs found in the database.")
		fmt.Println("\nUse 'codelift run <project-dir>' to process a project.")
		return nil
	}

	fmt.Printf("Projects with recorded runs (%d):\n\n", len(projects))
	for _, project := range projects {
		fmt.Printf("  • %s\n", project)
	}
	fmt.Println("\nUse 'codelift history <project-dir>' to see run history for a project.")

	return nil
}

// listRunHistory lists run records for a specific project.
func listRunHistory(ctx context.Context, db *database.RunDB, projectDir string, limit int, jsonOutput bool) error {
	runs, err := db.GetRunHistoryWithMetadata(ctx, projectDir, limit)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if len(runs) == 0 {
		fmt.Printf("No run history found for %s\n", projectDir)
		fmt.Println("\nUse 'codelift run' to process this project.")
		return nil
	}

	if jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(runs)
	}

	fmt.Printf("Run history for %s (%d runs):\n\n", projectDir, len(runs))
	fmt.Printf("  %-6s  %-20s  %-12s  %-6s  %-8s  %s\n",
		"ID", "Date", "Model", "Files", "Avg", "Status")
	fmt.Println("  " + strings.Repeat("-", 70))

	for _, meta := range runs {
		fmt.Printf("  %-6d  %-20s  %-12s  %-6d  %-8.1f  %s\n",
			meta.ID,
			meta.Timestamp.Format("2006-01-02 15:04:05"),
			meta.Model,
			meta.FilesProcessed,
			meta.AverageScore,
			formatRunStatus(meta),
		)
	}

	fmt.Println("\nUse 'codelift history --compare <project-dir>' to compare the latest two runs.")

	return nil
}

// formatRunStatus formats the run's outcome for the history listing.
func formatRunStatus(meta database.RunMetadata) string {
	switch {
	case meta.Cancelled:
		return "cancelled"
	case meta.ErrorMessage != "":
		return "error: " + meta.ErrorMessage
	case meta.ParseFailures > 0:
		return fmt.Sprintf("ok (%d parse failures)", meta.ParseFailures)
	default:
		return "ok"
	}
}

// ComparisonResult holds the result of comparing two runs.
type ComparisonResult struct {
	// ProjectDir is the compared project directory.
	ProjectDir string `json:"project_dir"`

	// PreviousRun contains metadata about the earlier run.
	PreviousRun RunMeta `json:"previous_run"`

	// CurrentRun contains metadata about the later run.
	CurrentRun RunMeta `json:"current_run"`

	// FileChanges lists per-file score changes for files present in both runs.
	FileChanges []FileScoreChange `json:"file_changes,omitempty"`

	// NewFiles lists files reviewed only in the current run.
	NewFiles []string `json:"new_files,omitempty"`

	// RemovedFiles lists files reviewed only in the previous run.
	RemovedFiles []string `json:"removed_files,omitempty"`

	// ScoreChange describes the overall change in review scores.
	ScoreChange ScoreChange `json:"score_change"`
}

// RunMeta contains metadata about a run for comparison display.
type RunMeta struct {
	// DateRun is when the run was performed.
	DateRun time.Time `json:"date_run"`

	// Model is the chat model used.
	Model string `json:"model,omitempty"`

	// FilesProcessed is the number of files in the run.
	FilesProcessed int `json:"files_processed"`

	// AverageScore is the mean parsed review score.
	AverageScore float64 `json:"average_score"`

	// ParseFailures counts fallback reports in the run.
	ParseFailures int `json:"parse_failures"`
}

// FileScoreChange is one file's score movement between two runs.
type FileScoreChange struct {
	// Path is the reviewed file path.
	Path string `json:"path"`

	// PreviousScore is the score in the earlier run.
	PreviousScore float64 `json:"previous_score"`

	// CurrentScore is the score in the later run.
	CurrentScore float64 `json:"current_score"`

	// Delta is CurrentScore minus PreviousScore.
	Delta float64 `json:"delta"`
}

// ScoreChange describes the overall score movement between runs.
type ScoreChange struct {
	// Direction is "improved", "declined", or "unchanged".
	Direction string `json:"direction"`

	// AverageDelta is the change in average review score.
	AverageDelta float64 `json:"average_delta"`
}

// runComparison compares the latest run with an earlier one.
func runComparison(ctx context.Context, db *database.RunDB, projectDir string, withRunID int64, jsonOutput bool) error {
	runs, err := db.GetRunHistory(ctx, projectDir, 0)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if len(runs) == 0 {
		return fmt.Errorf("no run history found for %s", projectDir)
	}
	if len(runs) < 2 && withRunID == 0 {
		return fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(runs))
	}

	// Latest run is always the current one
	current := runs[0]

	var previous *model.RunReport
	if withRunID > 0 {
		previous, err = db.GetRunReportByID(ctx, withRunID)
		if err != nil {
			return fmt.Errorf("failed to get run with ID %d: %w", withRunID, err)
		}
		if previous == nil {
			return fmt.Errorf("run with ID %d not found", withRunID)
		}
		if previous.ProjectDir != projectDir {
			return fmt.Errorf("run ID %d belongs to %s, not %s", withRunID, previous.ProjectDir, projectDir)
		}
	} else {
		previous = runs[1]
	}

	comparison := compareRuns(previous, current)

	if jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(comparison)
	}
	return outputComparisonText(comparison)
}

// compareRuns compares two run reports and generates a comparison result.
func compareRuns(previous, current *model.RunReport) *ComparisonResult {
	result := &ComparisonResult{
		ProjectDir:  current.ProjectDir,
		PreviousRun: runMeta(previous),
		CurrentRun:  runMeta(current),
	}

	prevSummary := previous.Summary
	if prevSummary == nil {
		prevSummary = model.NewRunSummary(previous)
	}
	currSummary := current.Summary
	if currSummary == nil {
		currSummary = model.NewRunSummary(current)
	}

	prevScores := make(map[string]model.FileReview, len(prevSummary.Reviews))
	for _, r := range prevSummary.Reviews {
		prevScores[r.Path] = r
	}

	// Reviews are already sorted by path, so the change listings come out
	// in deterministic order.
	for _, r := range currSummary.Reviews {
		prev, ok := prevScores[r.Path]
		if !ok {
			result.NewFiles = append(result.NewFiles, r.Path)
			continue
		}
		delete(prevScores, r.Path)

		if !r.Parsed || !prev.Parsed {
			continue
		}
		result.FileChanges = append(result.FileChanges, FileScoreChange{
			Path:          r.Path,
			PreviousScore: prev.Score,
			CurrentScore:  r.Score,
			Delta:         r.Score - prev.Score,
		})
	}

	for _, r := range prevSummary.Reviews {
		if _, ok := prevScores[r.Path]; ok {
			result.RemovedFiles = append(result.RemovedFiles, r.Path)
		}
	}

	result.ScoreChange = calculateScoreChange(result.PreviousRun, result.CurrentRun)

	return result
}

// runMeta extracts comparison metadata from a run report.
func runMeta(run *model.RunReport) RunMeta {
	summary := run.Summary
	if summary == nil {
		summary = model.NewRunSummary(run)
	}
	return RunMeta{
		DateRun:        run.DateRun,
		Model:          run.Model,
		FilesProcessed: summary.FilesProcessed,
		AverageScore:   summary.AverageScore,
		ParseFailures:  summary.ParseFailures,
	}
}

// calculateScoreChange calculates the overall score movement between runs.
func calculateScoreChange(previous, current RunMeta) ScoreChange {
	change := ScoreChange{
		AverageDelta: current.AverageScore - previous.AverageScore,
	}

	switch {
	case change.AverageDelta > 0:
		change.Direction = scoreDirectionImproved
	case change.AverageDelta < 0:
		change.Direction = scoreDirectionDeclined
	default:
		change.Direction = scoreDirectionUnchanged
	}

	return change
}

// outputComparisonText outputs the comparison result in human-readable format.
func outputComparisonText(result *ComparisonResult) error {
	fmt.Printf("Run Comparison: %s\n", result.ProjectDir)
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\nScore Status: %s\n", formatScoreDirection(result.ScoreChange))

	fmt.Printf("\nPrevious run: %s (avg %.1f, %d files)\n",
		result.PreviousRun.DateRun.Format("2006-01-02 15:04:05"),
		result.PreviousRun.AverageScore,
		result.PreviousRun.FilesProcessed)
	fmt.Printf("Current run:  %s (avg %.1f, %d files)\n",
		result.CurrentRun.DateRun.Format("2006-01-02 15:04:05"),
		result.CurrentRun.AverageScore,
		result.CurrentRun.FilesProcessed)

	if len(result.FileChanges) > 0 {
		fmt.Println("\nScore Changes:")
		fmt.Printf("  %-40s  %-10s  %-10s  %s\n", "File", "Previous", "Current", "Change")
		fmt.Println("  " + strings.Repeat("-", 70))
		for _, fc := range result.FileChanges {
			fmt.Printf("  %-40s  %-10.1f  %-10.1f  %s\n",
				truncatePath(fc.Path, 40),
				fc.PreviousScore,
				fc.CurrentScore,
				formatDelta(fc.Delta))
		}
	}

	if len(result.NewFiles) > 0 {
		fmt.Printf("\nNew Files (%d):\n", len(result.NewFiles))
		for _, path := range result.NewFiles {
			fmt.Printf("  [+] %s\n", path)
		}
	}

	if len(result.RemovedFiles) > 0 {
		fmt.Printf("\nRemoved Files (%d):\n", len(result.RemovedFiles))
		for _, path := range result.RemovedFiles {
			fmt.Printf("  [-] %s\n", path)
		}
	}

	return nil
}

// formatScoreDirection formats the score change direction for display.
func formatScoreDirection(change ScoreChange) string {
	switch change.Direction {
	case scoreDirectionImproved:
		return fmt.Sprintf("IMPROVED (average score %s)", formatDelta(change.AverageDelta))
	case scoreDirectionDeclined:
		return fmt.Sprintf("DECLINED (average score %s)", formatDelta(change.AverageDelta))
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta float64) string {
	if delta > 0 {
		return "+" + strconv.FormatFloat(delta, 'f', 1, 64)
	}
	return strconv.FormatFloat(delta, 'f', 1, 64)
}

// truncatePath shortens a path to maxLen characters, keeping the tail.
// The tail is the informative part of a file path.
func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	if maxLen <= 3 {
		return path[len(path)-maxLen:]
	}
	return "..." + path[len(path)-(maxLen-3):]
}
