package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/schema-assistant/pkg/apperrors"
	"github.com/ekaya-inc/schema-assistant/pkg/llm"
	"github.com/ekaya-inc/schema-assistant/pkg/models"
)

// GenericFallbackAnswer is returned when the model replies with nothing usable.
const GenericFallbackAnswer = "I'm not sure how to help with that. You can ask me to list the tables, show a table's schema, or fetch sample rows."

// IntentAnalyzer asks the completion service whether a message needs a tool.
type IntentAnalyzer interface {
	// Analyze returns the model's decision for message. Output that does not
	// match the decision format becomes a direct answer; the only error is a
	// failed completion call.
	Analyze(ctx context.Context, message string, tools []models.ToolDescription) (*models.IntentDecision, error)
}

type intentAnalyzer struct {
	client llm.CompletionClient
	logger *zap.Logger
}

var _ IntentAnalyzer = (*intentAnalyzer)(nil)

// NewIntentAnalyzer creates an analyzer backed by client.
func NewIntentAnalyzer(client llm.CompletionClient, logger *zap.Logger) IntentAnalyzer {
	return &intentAnalyzer{
		client: client,
		logger: logger.Named("intent"),
	}
}

// intentPayload is the reply shape requested from the model. UseTool is a
// pointer so a JSON object without it is recognized as off-format.
type intentPayload struct {
	UseTool   *bool          `json:"use_tool"`
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
	Answer    string         `json:"answer"`
}

func (a *intentAnalyzer) Analyze(ctx context.Context, message string, tools []models.ToolDescription) (*models.IntentDecision, error) {
	prompt, err := buildIntentPrompt(tools)
	if err != nil {
		return nil, fmt.Errorf("build intent prompt: %w", err)
	}

	raw, err := a.client.Complete(ctx, []models.ChatMessage{
		models.SystemMessage(prompt),
		models.UserMessage(message),
	})
	if err != nil {
		return nil, fmt.Errorf("intent analysis: %w", err)
	}

	decision, parseErr := parseIntent(raw, tools)
	if parseErr != nil {
		a.logger.Info("Completion reply is not a decision, answering directly",
			zap.String("provider", a.client.Provider()),
			zap.Error(parseErr))
	}
	if decision.IsToolCall() {
		a.logger.Debug("Intent selected tool",
			zap.String("tool", decision.ToolName),
			zap.Any("arguments", decision.Arguments))
	} else {
		a.logger.Debug("Intent is a direct answer", zap.Int("answer_len", len(decision.Answer)))
	}
	return decision, nil
}

// parseIntent turns model output into a decision. The decision is always
// usable: off-format output becomes a direct answer carrying the raw text,
// and the returned error (wrapping ErrUnparseableIntent) only says why.
func parseIntent(raw string, tools []models.ToolDescription) (*models.IntentDecision, error) {
	text := strings.TrimSpace(llm.StripThinking(raw))
	if text == "" {
		return models.DirectDecision(GenericFallbackAnswer), fmt.Errorf("%w: empty reply", apperrors.ErrUnparseableIntent)
	}

	payload, err := llm.ParseJSONResponse[intentPayload](text)
	if err != nil {
		return models.DirectDecision(text), fmt.Errorf("%w: %v", apperrors.ErrUnparseableIntent, err)
	}
	if payload.UseTool == nil {
		return models.DirectDecision(text), fmt.Errorf("%w: missing use_tool", apperrors.ErrUnparseableIntent)
	}

	if !*payload.UseTool {
		answer := strings.TrimSpace(payload.Answer)
		if answer == "" {
			return models.DirectDecision(GenericFallbackAnswer), nil
		}
		return models.DirectDecision(answer), nil
	}

	if !hasTool(tools, payload.ToolName) {
		return models.DirectDecision(text), fmt.Errorf("%w: unknown tool %q", apperrors.ErrUnparseableIntent, payload.ToolName)
	}
	return models.ToolCallDecision(payload.ToolName, payload.Arguments), nil
}

func hasTool(tools []models.ToolDescription, name string) bool {
	for _, t := range tools {
		if t.Name == name {
			return true
		}
	}
	return false
}

func buildIntentPrompt(tools []models.ToolDescription) (string, error) {
	var sb strings.Builder

	sb.WriteString("You are a database schema assistant. Decide whether the user's question needs one of the tools below.\n\n")
	sb.WriteString("## Available tools\n\n")
	for _, t := range tools {
		params, err := json.Marshal(t.Parameters)
		if err != nil {
			return "", fmt.Errorf("marshal parameters for %s: %w", t.Name, err)
		}
		sb.WriteString(fmt.Sprintf("- %s: %s\n  parameters: %s\n", t.Name, t.Description, params))
	}

	sb.WriteString("\n## Response format\n\n")
	sb.WriteString("Reply with exactly one JSON object and nothing else.\n")
	sb.WriteString("To run a tool:\n")
	sb.WriteString(`{"use_tool": true, "tool_name": "<tool name>", "arguments": {<arguments matching the parameters>}}`)
	sb.WriteString("\nTo answer without a tool:\n")
	sb.WriteString(`{"use_tool": false, "answer": "<your answer>"}`)
	sb.WriteString("\n\nOnly use table names listed in the tool parameters.")

	return sb.String(), nil
}
