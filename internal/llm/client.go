package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Generator produces one completion for a system/user instruction pair.
// Each call is exactly one request/response round trip; implementations
// perform no retry and no streaming.
//
// Design decision: The pipeline depends on this interface rather than on
// the OpenAI client directly so that every stage can be tested with a
// fake generator, and so the backing provider can be swapped without
// touching stage code.
type Generator interface {
	// Generate sends the system-role persona and the user-role task
	// prompt to the generation service and returns the completion text.
	// Any transport or service error propagates to the caller.
	Generate(ctx context.Context, system, user string) (string, error)
}

// Client is the OpenAI-backed Generator.
// It wraps the chat-completions API with a fixed model and returns the
// single best completion as plain text.
type Client struct {
	// api is the underlying OpenAI API client.
	api *openai.Client

	// model is the chat model identifier sent with every request.
	model string

	// logger for structured logging. Request and reply sizes are logged
	// at debug level; content never is.
	logger *slog.Logger
}

// Option is a function that configures a Client.
type Option func(*clientConfig)

// clientConfig collects settings applied before the API client is built.
type clientConfig struct {
	model   string
	baseURL string
	timeout time.Duration
	logger  *slog.Logger
}

// WithModel sets the chat model used for all requests.
func WithModel(model string) Option {
	return func(c *clientConfig) {
		c.model = model
	}
}

// WithBaseURL overrides the API endpoint.
// Useful for proxies and OpenAI-compatible local servers.
func WithBaseURL(baseURL string) Option {
	return func(c *clientConfig) {
		c.baseURL = baseURL
	}
}

// WithRequestTimeout bounds each generation round trip.
// Zero (the default) means no deadline: the pipeline blocks until the
// service replies or the run context is cancelled.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// NewClient creates a generation client authenticated with apiKey.
//
// The constructor performs no network I/O: an invalid key or unreachable
// endpoint surfaces on the first Generate call. This keeps construction
// cheap and testable, mirroring how the rest of the codebase separates
// object creation from network operations.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	cfg := &clientConfig{
		model: openai.GPT4,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	apiCfg := openai.DefaultConfig(apiKey)
	if cfg.baseURL != "" {
		apiCfg.BaseURL = cfg.baseURL
	}
	if cfg.timeout > 0 {
		apiCfg.HTTPClient = &http.Client{Timeout: cfg.timeout}
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		api:    openai.NewClientWithConfig(apiCfg),
		model:  cfg.model,
		logger: logger,
	}, nil
}

// Generate implements Generator using the chat-completions API.
// It sends exactly one request with a system message and a user message
// and returns the first choice's content.
func (c *Client) Generate(ctx context.Context, system, user string) (string, error) {
	c.logger.Debug("sending generation request",
		"model", c.model,
		"system_bytes", len(system),
		"user_bytes", len(user),
	)

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	content := resp.Choices[0].Message.Content
	c.logger.Debug("received generation reply",
		"model", c.model,
		"reply_bytes", len(content),
	)

	return content, nil
}
