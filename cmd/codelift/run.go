package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/codelift/internal/config"
	"github.com/nao1215/codelift/internal/database"
	"github.com/nao1215/codelift/internal/llm"
	"github.com/nao1215/codelift/internal/log"
	"github.com/nao1215/codelift/internal/model"
	"github.com/nao1215/codelift/internal/pipeline"
	"github.com/nao1215/codelift/internal/report"
	"github.com/nao1215/codelift/internal/source"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [project-dir...]",
		Short: "Run the refactor pipeline over a project directory",
		Long: `Run processes every matching source file in the given project
directories through four AI stages:

  1. analyze  - list refactor issues per file
  2. refactor - rewrite each file based on its issues (OVERWRITES files)
  3. document - add documentation comments (OVERWRITES files)
  4. review   - score each file's final content

The refactor and document stages overwrite files in place with the
model's raw output. There is no backup and no undo; run codelift only
on projects under version control.

The OpenAI API key is read from the OPENAI_API_KEY environment variable.

Examples:
  # Process a single project (prompts for the path when omitted)
  codelift run ./myproject

  # Process Python files with a specific model
  codelift run --ext .py --model gpt-4.1 ./myproject

  # Process multiple projects concurrently
  codelift run --batch 4 ./svc-a ./svc-b ./svc-c

  # Output a JSON report to a file
  codelift run --json -o report.json ./myproject

  # Use a custom configuration file
  codelift run -c myconfig.yaml ./myproject

Configuration file (.codelift) example:
  defaults:
    extensions: [".go"]
  projects:
    /home/dev/legacy:
      model: gpt-4.1
      personas:
        refactor: "You are a Senior Refactor Engineer. Keep APIs stable."`,
		Args: cobra.ArbitraryArgs,
		RunE: runRunCmd,
	}

	// Pipeline behavior flags
	cmd.Flags().StringSliceP("ext", "e", []string{config.DefaultExtension},
		"Source file suffixes to process (repeatable, e.g. --ext .go --ext .py)")
	cmd.Flags().StringP("model", "M", config.DefaultModel,
		"Chat model used for all generation requests")
	cmd.Flags().String("base-url", "",
		"Override the generation API endpoint (for proxies and compatible servers)")
	cmd.Flags().DurationP("timeout", "t", config.DefaultRequestTimeout,
		"Timeout per generation request (0 = no deadline)")

	// Batch processing flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of concurrent project runs")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .codelift in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// runRunCmd executes the run command.
func runRunCmd(cmd *cobra.Command, args []string) error {
	// Prompt for a project directory when none was given
	if len(args) == 0 {
		dir, err := promptProjectDir(cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
		args = []string{dir}
	}

	// Build config from flags
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Set up structured logging with credential sanitization
	verbose := getVerboseFlag(cmd)
	logger := log.NewSecureLogger(os.Stderr, verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runPipelines(ctx, cfg, logger)
}

// promptProjectDir interactively asks for a project directory path.
func promptProjectDir(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Enter the project folder path: ")

	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read project path: %w", err)
	}

	dir := strings.TrimSpace(line)
	if dir == "" {
		return "", config.ErrNoProject
	}
	return dir, nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error

	cfg.Extensions, err = cmd.Flags().GetStringSlice("ext")
	if err != nil {
		return nil, err
	}

	cfg.Model, err = cmd.Flags().GetString("model")
	if err != nil {
		return nil, err
	}

	cfg.BaseURL, err = cmd.Flags().GetString("base-url")
	if err != nil {
		return nil, err
	}

	cfg.RequestTimeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.BatchSize, err = cmd.Flags().GetInt("batch")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// Load per-project configurations from config file.
	// If the user explicitly specified a config file path, error if not found.
	// If no path specified, silently use empty config if no file found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cfg.ProjectConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	} else {
		cfg.ProjectConfigs = &config.File{
			Projects: make(map[string]config.ProjectConfig),
		}
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	// Always save to database using XDG data directory
	cfg.SaveToDB = true
	cfg.DBDir = config.XDGDataDir()

	// The API key comes from the environment only; it is never a flag so
	// it cannot leak through shell history or process listings.
	cfg.APIKey = os.Getenv(config.EnvAPIKey)

	// Normalize project directories to absolute paths so that run history
	// keys stay stable regardless of the invocation directory.
	for _, dir := range args {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("invalid project directory %q: %w", dir, err)
		}
		cfg.ProjectDirs = append(cfg.ProjectDirs, abs)
	}

	return cfg, nil
}

// runPipelines executes the pipeline over all configured project directories.
func runPipelines(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting run",
		"projects", cfg.ProjectDirs,
		"extensions", cfg.Extensions,
		"model", cfg.Model,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	// Open database connection if saving is enabled
	var db *database.RunDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "dir", cfg.DBDir)
	}

	// Every project directory must exist before any file is touched
	for _, dir := range cfg.ProjectDirs {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("project directory %q: %w", dir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("project path %q is not a directory", dir)
		}
	}

	// Use batch processor for parallel runs if multiple projects
	if len(cfg.ProjectDirs) > 1 && cfg.BatchSize > 1 {
		return runBatch(ctx, cfg, db, logger)
	}

	// Single project or sequential processing
	return runSequential(ctx, cfg, db, logger)
}

// runSequential processes projects one at a time.
// Sequential mode applies per-project config overrides (extensions,
// model, personas) from the .codelift file.
func runSequential(ctx context.Context, cfg *config.Config, db *database.RunDB, logger *slog.Logger) error {
	// Traversal and transport failures abort the run; collect them per
	// project so remaining projects still run, partial results are still
	// printed and saved, but the process exits non-zero.
	var runErrs []error

	for _, dir := range cfg.ProjectDirs {
		select {
		case <-ctx.Done():
			runErrs = append(runErrs, ctx.Err())
			return errors.Join(runErrs...)
		default:
		}

		pc := getProjectConfig(cfg, dir)

		run, err := enumerateRun(dir, cfg, pc)
		if err != nil {
			logger.Error("enumeration failed", "project", dir, "error", err)
			fmt.Fprintf(os.Stderr, "Enumeration error for %s: %v\n", dir, err)
			runErrs = append(runErrs, fmt.Errorf("%s: %w", dir, err))
			continue
		}

		gen, err := newGenerator(cfg, run.Model, logger)
		if err != nil {
			runErrs = append(runErrs, err)
			return errors.Join(runErrs...)
		}

		p := createPipelineForProject(gen, logger, pc)

		fmt.Printf("Processing %s (%d files)...\n", dir, len(run.Files))
		startTime := time.Now()

		// Execute the pipeline
		if err := p.Execute(ctx, run); err != nil {
			logger.Error("run failed", "project", dir, "error", err)
			fmt.Fprintf(os.Stderr, "Run error for %s: %v\n", dir, err)
			runErrs = append(runErrs, fmt.Errorf("%s: %w", dir, err))
			// The report still carries partial results; fall through so
			// they are printed and saved.
		} else {
			elapsed := time.Since(startTime)
			fmt.Printf("Run completed in %s\n\n", elapsed.Round(time.Millisecond))
		}

		// Generate and output report
		if err := outputReport(cfg, run); err != nil {
			logger.Error("report failed", "project", dir, "error", err)
		}

		// Save to database if enabled
		if err := saveRunReport(ctx, db, run, logger); err != nil {
			logger.Error("failed to save run report", "project", dir, "error", err)
		}
	}

	return errors.Join(runErrs...)
}

// runBatch processes multiple projects concurrently using BatchProcessor.
func runBatch(ctx context.Context, cfg *config.Config, db *database.RunDB, logger *slog.Logger) error {
	fmt.Printf("Starting batch run of %d projects (concurrency: %d)...\n\n",
		len(cfg.ProjectDirs), cfg.BatchSize)

	startTime := time.Now()

	// Warn user about batch processing limitation
	if cfg.ProjectConfigs != nil && len(cfg.ProjectConfigs.Projects) > 0 {
		logger.Warn("batch processing uses default project config only; per-project overrides (extensions, model, personas) are ignored",
			"projectCount", len(cfg.ProjectConfigs.Projects))
		fmt.Fprintf(os.Stderr, "Warning: Per-project configurations are ignored in batch mode. Use sequential mode (--batch 1) to apply per-project settings.\n\n")
	}

	var defaults config.ProjectConfig
	if cfg.ProjectConfigs != nil {
		defaults = cfg.ProjectConfigs.Defaults
	}

	// Enumerate every project up front so each run carries its fixed
	// file set before any concurrency starts.
	runs := make([]*model.RunReport, 0, len(cfg.ProjectDirs))
	for _, dir := range cfg.ProjectDirs {
		run, err := enumerateRun(dir, cfg, defaults)
		if err != nil {
			return fmt.Errorf("failed to enumerate %s: %w", dir, err)
		}
		runs = append(runs, run)
	}

	gen, err := newGenerator(cfg, cfg.Model, logger)
	if err != nil {
		return err
	}

	// Create batch processor with pipeline factory
	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			return createPipelineForProject(gen, logger, defaults)
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	// Process with callback for streaming output
	var mu sync.Mutex
	err = bp.ProcessBatchWithCallback(ctx, runs, func(run *model.RunReport, index int) {
		mu.Lock()
		defer mu.Unlock()

		fmt.Printf("[%d/%d] Run completed: %s\n", index+1, len(runs), run.ProjectDir)

		// Generate and output report
		if err := outputReport(cfg, run); err != nil {
			logger.Error("report failed", "project", run.ProjectDir, "error", err)
		}

		// Save to database if enabled
		if err := saveRunReport(ctx, db, run, logger); err != nil {
			logger.Error("failed to save run report", "project", run.ProjectDir, "error", err)
		}
	})

	elapsed := time.Since(startTime)
	fmt.Printf("\nBatch run completed in %s\n", elapsed.Round(time.Millisecond))

	return err
}

// getProjectConfig returns the per-project configuration for a directory.
// Falls back to defaults if no project-specific config exists.
func getProjectConfig(cfg *config.Config, dir string) config.ProjectConfig {
	if cfg.ProjectConfigs == nil {
		return config.ProjectConfig{}
	}
	return cfg.ProjectConfigs.GetProjectConfig(dir)
}

// enumerateRun enumerates a project's file set and creates its run report.
// The file set is produced exactly once here; every stage iterates the
// same list, so files created during the run are never picked up.
func enumerateRun(dir string, cfg *config.Config, pc config.ProjectConfig) (*model.RunReport, error) {
	exts := cfg.Extensions
	if len(pc.Extensions) > 0 {
		exts = pc.Extensions
	}

	files, err := source.Enumerate(dir, exts)
	if err != nil {
		return nil, err
	}

	run := model.NewRunReport(dir, files)
	run.Model = cfg.Model
	if pc.Model != "" {
		run.Model = pc.Model
	}
	return run, nil
}

// newGenerator creates a generation client for the given model.
func newGenerator(cfg *config.Config, mdl string, logger *slog.Logger) (llm.Generator, error) {
	opts := []llm.Option{
		llm.WithModel(mdl),
		llm.WithLogger(logger),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, llm.WithBaseURL(cfg.BaseURL))
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, llm.WithRequestTimeout(cfg.RequestTimeout))
	}

	client, err := llm.NewClient(cfg.APIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create generation client: %w", err)
	}
	return client, nil
}

// createPipelineForProject creates a pipeline with the given configuration.
func createPipelineForProject(gen llm.Generator, logger *slog.Logger, pc config.ProjectConfig) *pipeline.Pipeline {
	pipelineOpts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithProgress(os.Stdout),
	}

	var configOpts []pipeline.DefaultPipelineOption
	if len(pc.Personas) > 0 {
		configOpts = append(configOpts, pipeline.WithPipelinePersonas(pc.Personas))
	}

	return pipeline.DefaultPipeline(gen, pipelineOpts, configOpts...)
}

// outputReport outputs the run report in the requested format.
func outputReport(cfg *config.Config, run *model.RunReport) error {
	// Generate the summary if needed
	if run.Summary == nil {
		run.Summary = model.NewRunSummary(run)
	}

	// Determine output destination
	var output *os.File
	if cfg.ReportFile != "" {
		// Create directories if they don't exist
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Reports may quote source code, so keep them owner-readable only
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	} else {
		output = os.Stdout
	}

	// JSON output (detailed report with all data)
	if cfg.JSONReport {
		encoder := json.NewEncoder(output)
		encoder.SetIndent("", "  ")
		return encoder.Encode(run)
	}

	// Markdown output
	if cfg.MarkdownReport {
		writer := report.NewMarkdownWriter(output)
		_, err := writer.Write(run)
		return err
	}

	// Human-readable report (default)
	writer := report.NewSimpleWriter(output)
	_, err := writer.Write(run)
	return err
}

// saveRunReport saves the run report to the database if enabled.
// If db is nil, this function is a no-op.
func saveRunReport(ctx context.Context, db *database.RunDB, run *model.RunReport, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	id, err := db.SaveRunReport(ctx, run)
	if err != nil {
		return fmt.Errorf("failed to save run report: %w", err)
	}

	logger.Info("run report saved to database", "project", run.ProjectDir, "id", id)
	return nil
}
