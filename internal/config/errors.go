package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages. Using errors.New() here rather than fmt.Errorf()
// because we don't need to include dynamic values in these messages.
var (
	// ErrNoProject is returned when no project directory is specified.
	// This occurs when neither positional arguments nor the interactive
	// prompt provide a directory.
	ErrNoProject = errors.New("no project directory specified: provide one or more directories as arguments")

	// ErrMissingAPIKey is returned when no API key is available.
	// The key is read from the OPENAI_API_KEY environment variable.
	ErrMissingAPIKey = errors.New("missing API key: set the OPENAI_API_KEY environment variable")

	// ErrNoExtensions is returned when the extension list is empty.
	// With no extensions the enumerator would select no files.
	ErrNoExtensions = errors.New("no source extensions configured: set at least one suffix such as .go")

	// ErrNoModel is returned when the model identifier is empty.
	ErrNoModel = errors.New("no model configured: specify a chat model with --model")

	// ErrInvalidTimeout is returned when the request timeout is negative.
	// A negative timeout is invalid; use 0 for no deadline.
	ErrInvalidTimeout = errors.New("invalid request timeout: must be non-negative")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	// A batch size of zero would mean no pipeline runs at all.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
