package llm

import "errors"

// Client errors.
// Sentinel errors allow callers to distinguish configuration problems
// from transport failures via errors.Is.
var (
	// ErrMissingAPIKey is returned by NewClient when no API key is given.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrEmptyCompletion is returned when the service responds
	// successfully but includes no choices. This should not happen with
	// a conforming backend, but OpenAI-compatible servers vary.
	ErrEmptyCompletion = errors.New("generation service returned no completion choices")
)
