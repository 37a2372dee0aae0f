package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/ekaya-inc/schema-assistant/pkg/models"
)

const defaultAnthropicMaxTokens = 1024

// AnthropicClient sends conversations to the Anthropic Messages API.
type AnthropicClient struct {
	client      *anthropic.Client
	model       string
	maxTokens   int
	temperature float32
	logger      *zap.Logger
}

// NewAnthropicClient creates a Messages API client. Endpoint overrides the
// API base URL when set.
func NewAnthropicClient(cfg *Config, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	var opts []anthropic.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimSuffix(cfg.Endpoint, "/")))
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	return &AnthropicClient{
		client:      anthropic.NewClient(cfg.APIKey, opts...),
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: float32(cfg.Temperature),
		logger:      logger.Named("anthropic"),
	}, nil
}

// Complete implements CompletionClient. System messages are joined into the
// request's system prompt; the rest keep their order.
func (c *AnthropicClient) Complete(ctx context.Context, messages []models.ChatMessage) (string, error) {
	system, msgs := toAnthropicMessages(messages)
	if len(msgs) == 0 {
		return "", NewError(ErrorTypeUnknown, "conversation has no user message", false, nil)
	}

	temperature := c.temperature
	start := time.Now()

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		System:      system,
		Messages:    msgs,
		Temperature: &temperature,
	})
	if err != nil {
		c.logger.Error("Completion request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		classified := ClassifyError(err)
		classified.Model = c.model
		return "", classified
	}

	text := extractText(resp)
	if text == "" {
		return "", NewError(ErrorTypeEmpty, "no text in response", false, nil)
	}

	c.logger.Info("Completion request completed",
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))

	return StripThinking(text), nil
}

// Provider implements CompletionClient.
func (c *AnthropicClient) Provider() string {
	return "anthropic"
}

// Model implements CompletionClient.
func (c *AnthropicClient) Model() string {
	return c.model
}

func toAnthropicMessages(messages []models.ChatMessage) (string, []anthropic.Message) {
	var system []string
	var out []anthropic.Message
	for _, m := range messages {
		switch m.Role {
		case models.ChatRoleSystem:
			system = append(system, m.Content)
		case models.ChatRoleAssistant:
			out = append(out, anthropic.NewAssistantTextMessage(m.Content))
		default:
			out = append(out, anthropic.NewUserTextMessage(m.Content))
		}
	}
	return strings.Join(system, "\n\n"), out
}

func extractText(resp anthropic.MessagesResponse) string {
	var parts []string
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			parts = append(parts, *block.Text)
		}
	}
	return strings.Join(parts, "")
}
