package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/ekaya-inc/schema-assistant/pkg/models"
)

// Client provides access to OpenAI-compatible chat completion endpoints such
// as vLLM.
type Client struct {
	client      *openai.Client
	endpoint    string
	model       string
	maxTokens   int
	temperature float32
	logger      *zap.Logger
}

// Config holds configuration for creating a completion client.
type Config struct {
	Endpoint    string // Base URL, e.g., "http://localhost:8000/v1"
	Model       string // Model name, e.g., "Qwen/Qwen3-8B"
	APIKey      string // Optional for local endpoints
	MaxTokens   int
	Temperature float64
}

// NewClient creates a new OpenAI-compatible completion client.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")

	return &Client{
		client:      openai.NewClientWithConfig(clientConfig),
		endpoint:    cfg.Endpoint,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: float32(cfg.Temperature),
		logger:      logger.Named("llm"),
	}, nil
}

// Complete sends the conversation and returns the reply with any reasoning
// block removed.
func (c *Client) Complete(ctx context.Context, messages []models.ChatMessage) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toOpenAIMessages(messages),
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	c.logger.Debug("Completion request",
		zap.String("model", c.model),
		zap.Int("messages", len(messages)))

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		c.logger.Error("Completion request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", c.parseError(err)
	}

	if len(resp.Choices) == 0 {
		return "", c.withContext(NewError(ErrorTypeEmpty, "no choices in response", false, nil))
	}

	content := StripThinking(resp.Choices[0].Message.Content)

	c.logger.Info("Completion request completed",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return content, nil
}

// Ping lists models to confirm the endpoint is reachable and authorized.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return c.parseError(err)
	}
	return nil
}

// Provider implements CompletionClient.
func (c *Client) Provider() string {
	return "openai"
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Endpoint returns the configured endpoint.
func (c *Client) Endpoint() string {
	return c.endpoint
}

func (c *Client) parseError(err error) error {
	return c.withContext(ClassifyError(err))
}

func (c *Client) withContext(e *Error) *Error {
	e.Model = c.model
	e.Endpoint = c.endpoint
	return e
}

func toOpenAIMessages(messages []models.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case models.ChatRoleSystem:
			role = openai.ChatMessageRoleSystem
		case models.ChatRoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		out[i] = openai.ChatCompletionMessage{Role: role, Content: m.Content}
	}
	return out
}
