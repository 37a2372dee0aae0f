package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/schema-assistant/pkg/apperrors"
	"github.com/ekaya-inc/schema-assistant/pkg/llm"
	"github.com/ekaya-inc/schema-assistant/pkg/logging"
	"github.com/ekaya-inc/schema-assistant/pkg/metrics"
	"github.com/ekaya-inc/schema-assistant/pkg/models"
)

// ChatState is a step in handling one chat message.
type ChatState string

const (
	StateReceived      ChatState = "received"
	StateIntentPending ChatState = "intent_pending"
	StateToolPending   ChatState = "tool_pending"
	StateToolDone      ChatState = "tool_done"
	StateDirectAnswer  ChatState = "direct_answer"
	StateFinalPending  ChatState = "final_pending"
	StateFailed        ChatState = "failed"
	StateCompleted     ChatState = "completed"
)

// Chat outcomes, used as the metrics label and in logs.
const (
	OutcomeDirect         = "direct"
	OutcomeTool           = "tool"
	OutcomeFallbackIntent = "fallback_intent"
	OutcomeFallbackTool   = "fallback_tool"
	OutcomeFallbackFinal  = "fallback_final"
	OutcomeRejected       = "rejected"
)

const finalAnswerPrompt = `You are a database schema assistant. Answer the user's question using only the tool result provided. Be concise. Keep table and column names exactly as they appear. If the result is a table, summarize it rather than repeating every row.`

// ChatResponse is the answer to one chat message.
type ChatResponse struct {
	RequestID  string             `json:"request_id"`
	Answer     string             `json:"response"`
	ToolUsed   string             `json:"tool_used,omitempty"`
	ToolResult *models.ToolResult `json:"tool_result,omitempty"`
	// Fallback is set when a collaborator failed and the answer was built
	// locally.
	Fallback bool   `json:"fallback"`
	Outcome  string `json:"outcome"`
	// States lists the steps taken, ending in StateCompleted.
	States []ChatState `json:"-"`
}

// ChatService answers natural-language questions about the database.
type ChatService interface {
	// Handle answers message. The only error is ErrEmptyRequest; every
	// collaborator failure degrades to a fallback answer.
	Handle(ctx context.Context, message string) (*ChatResponse, error)
}

type chatService struct {
	catalog  CatalogService
	registry ToolRegistry
	intent   IntentAnalyzer
	llm      llm.CompletionClient
	logger   *zap.Logger
}

var _ ChatService = (*chatService)(nil)

// NewChatService creates the chat orchestrator.
func NewChatService(
	catalog CatalogService,
	registry ToolRegistry,
	intent IntentAnalyzer,
	client llm.CompletionClient,
	logger *zap.Logger,
) ChatService {
	return &chatService{
		catalog:  catalog,
		registry: registry,
		intent:   intent,
		llm:      client,
		logger:   logger.Named("chat"),
	}
}

// chatRun is the per-request state. It is never shared between requests.
type chatRun struct {
	message  string
	state    ChatState
	decision *models.IntentDecision
	result   *models.ToolResult
	resp     *ChatResponse
	logger   *zap.Logger
}

func (s *chatService) Handle(ctx context.Context, message string) (*ChatResponse, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		metrics.ChatRequestsTotal.WithLabelValues(OutcomeRejected).Inc()
		return nil, apperrors.ErrEmptyRequest
	}

	ctx, requestID := logging.EnsureRequestID(ctx)
	run := &chatRun{
		message: message,
		state:   StateReceived,
		resp:    &ChatResponse{RequestID: requestID},
		logger:  s.logger.With(zap.String("request_id", requestID)),
	}
	run.resp.States = append(run.resp.States, run.state)

	for run.state != StateCompleted {
		run.state = s.step(ctx, run)
		run.resp.States = append(run.resp.States, run.state)
	}

	metrics.ChatRequestsTotal.WithLabelValues(run.resp.Outcome).Inc()
	run.logger.Info("Chat request completed",
		zap.String("outcome", run.resp.Outcome),
		zap.String("tool", run.resp.ToolUsed),
		zap.Bool("fallback", run.resp.Fallback))

	return run.resp, nil
}

// step performs the work of the current state and returns the next one.
func (s *chatService) step(ctx context.Context, run *chatRun) ChatState {
	switch run.state {
	case StateReceived:
		return StateIntentPending

	case StateIntentPending:
		decision, err := s.intent.Analyze(ctx, run.message, s.registry.ListDescriptions())
		if err != nil {
			run.logger.Warn("Intent analysis failed", zap.Error(err))
			return run.fail(OutcomeFallbackIntent, s.unavailableAnswer())
		}
		run.decision = decision
		if decision.IsToolCall() {
			return StateToolPending
		}
		return StateDirectAnswer

	case StateDirectAnswer:
		run.resp.Answer = run.decision.Answer
		run.resp.Outcome = OutcomeDirect
		return StateCompleted

	case StateToolPending:
		result, err := s.registry.Invoke(ctx, run.decision.ToolName, run.decision.Arguments)
		if err != nil {
			run.logger.Warn("Tool invocation failed",
				zap.String("tool", run.decision.ToolName),
				zap.Error(err))
			return run.fail(OutcomeFallbackTool, s.toolErrorAnswer(run.decision.ToolName, err))
		}
		run.result = result
		return StateToolDone

	case StateToolDone:
		run.resp.ToolUsed = run.result.Tool
		run.resp.ToolResult = run.result
		return StateFinalPending

	case StateFinalPending:
		answer, err := s.llm.Complete(ctx, []models.ChatMessage{
			models.SystemMessage(finalAnswerPrompt),
			models.UserMessage(finalUserMessage(run.message, run.result)),
		})
		answer = strings.TrimSpace(answer)
		if err != nil || answer == "" {
			if err == nil {
				err = fmt.Errorf("%w: empty final answer", apperrors.ErrCompletionUnavailable)
			}
			run.logger.Warn("Final answer failed, returning tool result", zap.Error(err))
			return run.fail(OutcomeFallbackFinal, run.result.Text)
		}
		run.resp.Answer = answer
		run.resp.Outcome = OutcomeTool
		return StateCompleted

	case StateFailed:
		return StateCompleted
	}

	run.logger.Error("Chat run in unexpected state", zap.String("state", string(run.state)))
	return run.fail(OutcomeFallbackIntent, GenericFallbackAnswer)
}

// fail records a fallback answer and moves the run to StateFailed.
func (r *chatRun) fail(outcome, answer string) ChatState {
	r.resp.Answer = answer
	r.resp.Outcome = outcome
	r.resp.Fallback = true
	return StateFailed
}

// finalUserMessage combines the tool output with the original question.
func finalUserMessage(message string, result *models.ToolResult) string {
	return fmt.Sprintf("%s%s:\n\n%s\n\nUser asked: %s", llm.ToolResultMarker, result.Tool, result.Text, message)
}

// unavailableAnswer is built from the allow-list alone so it needs neither
// collaborator.
func (s *chatService) unavailableAnswer() string {
	return fmt.Sprintf(
		"The language model is not available right now, so I can't interpret that question. "+
			"These tables can be explored: %s. Try again shortly, or call a tool directly.",
		strings.Join(s.catalog.AllowedTables(), ", "))
}

func (s *chatService) toolErrorAnswer(tool string, err error) string {
	tables := strings.Join(s.catalog.AllowedTables(), ", ")

	switch {
	case errors.Is(err, apperrors.ErrUnknownTable):
		return fmt.Sprintf("I can't look at that table. The tables I can access are: %s.", tables)
	case errors.Is(err, apperrors.ErrInvalidArguments):
		return fmt.Sprintf("I couldn't run %s because the request was incomplete. Try naming one of these tables: %s.", tool, tables)
	case errors.Is(err, apperrors.ErrUnknownTool):
		return fmt.Sprintf("I don't have a tool called %q. I can list tables, show a table's schema, or fetch sample rows.", tool)
	case errors.Is(err, apperrors.ErrStoreUnavailable):
		return fmt.Sprintf("The database is not reachable right now, so I couldn't run %s. The tables I normally have access to are: %s.", tool, tables)
	default:
		return fmt.Sprintf("Something went wrong while running %s. Please try again.", tool)
	}
}
