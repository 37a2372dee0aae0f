// Package llm provides completion clients for OpenAI-compatible endpoints
// (vLLM, OpenAI), Anthropic, and an offline keyword responder.
package llm

import (
	"context"

	"github.com/ekaya-inc/schema-assistant/pkg/models"
)

// CompletionClient sends a role-tagged conversation and returns the
// assistant's reply text. Nothing about the structure of that text is
// guaranteed. Failures are returned as *Error, which matches
// apperrors.ErrCompletionUnavailable under errors.Is.
type CompletionClient interface {
	Complete(ctx context.Context, messages []models.ChatMessage) (string, error)

	// Provider returns the provider name, e.g. "openai".
	Provider() string

	// Model returns the configured model name.
	Model() string
}

// Pinger is implemented by clients that can check their endpoint without
// generating a completion.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ensure implementations satisfy CompletionClient at compile time.
var (
	_ CompletionClient = (*Client)(nil)
	_ CompletionClient = (*AnthropicClient)(nil)
	_ CompletionClient = (*KeywordClient)(nil)
	_ CompletionClient = (*guardedClient)(nil)
	_ CompletionClient = (*MockCompletionClient)(nil)
)
