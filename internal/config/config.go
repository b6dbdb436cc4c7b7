package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These values are chosen to match typical LLM provider characteristics
// and the behavior of the original refactor pipeline where applicable.
const (
	// DefaultModel is the chat model used for all four agents.
	// Each stage sends a single system+user message pair, so any
	// instruction-following chat model works. Users can override this
	// per run (--model) or per project in the .codelift file.
	DefaultModel = "gpt-4.1"

	// DefaultExtension is the source file suffix processed by default.
	// codelift is language-agnostic; the extension only controls which
	// files the enumerator picks up. Override via --ext or the config file.
	DefaultExtension = ".go"

	// DefaultRequestTimeout of 0 means generation requests have no
	// deadline. Completion latency grows with file size and model load,
	// and a premature timeout aborts the whole run, so we default to
	// waiting. Users who prefer bounded runs can set --timeout.
	DefaultRequestTimeout = 0 * time.Second

	// DefaultBatchSize of 4 concurrent project runs balances throughput
	// with provider rate limits. Within one project the four stages are
	// always strictly sequential; batching only applies across projects.
	DefaultBatchSize = 4

	// AppName is the application name used for XDG directory paths.
	AppName = "codelift"

	// EnvAPIKey is the environment variable holding the OpenAI API key.
	// The key is the only credential codelift needs and is never logged
	// (see internal/log.SecureHandler).
	EnvAPIKey = "OPENAI_API_KEY"
)

// Config holds all configuration options for codelift.
// This struct is designed to be populated from CLI flags and passed through
// the application via dependency injection rather than global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., LLMConfig, ReportConfig) for simplicity. The number of options
// is manageable, and nesting would add complexity without significant benefit.
type Config struct {
	// ProjectDirs is the list of project directories to process.
	// Each directory gets its own full pipeline run over its own file set.
	ProjectDirs []string

	// Extensions is the list of source file suffixes to process.
	// A file is enumerated when its name ends with any of these suffixes.
	Extensions []string

	// Model is the chat model identifier sent with every generation request.
	Model string

	// APIKey authenticates against the generation service.
	// Populated from the OPENAI_API_KEY environment variable; never logged.
	APIKey string

	// BaseURL overrides the generation service endpoint.
	// Empty means the provider's default endpoint. Useful for proxies
	// and OpenAI-compatible local servers.
	BaseURL string

	// RequestTimeout bounds each generation round trip.
	// Zero means no deadline; the pipeline blocks until the service replies.
	RequestTimeout time.Duration

	// BatchSize is the number of concurrent pipeline runs when multiple
	// project directories are given. The stages within a single run are
	// always sequential regardless of this value.
	BatchSize int

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .codelift in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// ProjectConfigs holds per-project configurations loaded from the
	// config file. Populated by LoadConfigFile and consulted per run.
	ProjectConfigs *File

	// JSONReport enables JSON report output instead of human-readable format.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown report output instead of
	// human-readable format. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	// Directories are created automatically if they don't exist.
	ReportFile string

	// DBDir is the directory path for storing the SQLite run-history
	// database. Defaults to the XDG data directory.
	DBDir string

	// SaveToDB indicates whether to save run reports to the database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
// All fields are set to safe, sensible defaults that work for most use cases.
// Users can override specific values after creation.
//
// Design decision: We use a constructor function instead of relying on
// zero values because several defaults are non-zero (model, extensions,
// batch size). This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		Extensions:     []string{DefaultExtension},
		Model:          DefaultModel,
		RequestTimeout: DefaultRequestTimeout,
		BatchSize:      DefaultBatchSize,
	}
}

// XDGDataDir returns the XDG data directory for codelift.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.local/share/codelift
// On macOS: ~/Library/Application Support/codelift
// On Windows: %LOCALAPPDATA%\codelift
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for codelift.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// This is called once after CLI parsing (and the interactive prompt),
// before any files are read or any generation request is sent.
//
// We return the first error found rather than collecting all errors
// because fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	// We must have at least one project directory to process
	if len(c.ProjectDirs) == 0 {
		return ErrNoProject
	}

	// The generation service rejects unauthenticated requests, so fail
	// here with a clear message instead of mid-pipeline
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}

	// Without extensions the enumerator would match nothing
	if len(c.Extensions) == 0 {
		return ErrNoExtensions
	}

	// A model must be set; there is no server-side default
	if c.Model == "" {
		return ErrNoModel
	}

	// Negative timeout is invalid; zero means no deadline
	if c.RequestTimeout < 0 {
		return ErrInvalidTimeout
	}

	// BatchSize must be positive; zero would mean no runs at all
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	// JSONReport and MarkdownReport are mutually exclusive
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	return nil
}
