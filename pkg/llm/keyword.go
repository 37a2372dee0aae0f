package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ekaya-inc/schema-assistant/pkg/models"
)

// ToolResultMarker prefixes the user message of a final-answer prompt. The
// keyword client uses it to tell the two prompt stages apart.
const ToolResultMarker = "Tool result from "

// KeywordClient is an offline completion client that answers with fixed
// keyword rules. It lets the assistant run end to end without a model
// server; answers are never better than the tool output they wrap.
type KeywordClient struct {
	tables []string
}

// NewKeywordClient creates a keyword client that recognizes the given table
// names in user messages.
func NewKeywordClient(tables []string) *KeywordClient {
	return &KeywordClient{tables: tables}
}

type keywordDecision struct {
	UseTool   bool           `json:"use_tool"`
	ToolName  string         `json:"tool_name,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Answer    string         `json:"answer,omitempty"`
}

// Complete implements CompletionClient.
func (c *KeywordClient) Complete(_ context.Context, messages []models.ChatMessage) (string, error) {
	last := ""
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == models.ChatRoleUser {
			last = messages[i].Content
			break
		}
	}

	if strings.HasPrefix(last, ToolResultMarker) {
		return summarizeToolResult(last), nil
	}

	raw, err := json.Marshal(c.decide(last))
	if err != nil {
		return "", NewError(ErrorTypeUnknown, "encode decision", false, err)
	}
	return string(raw), nil
}

func (c *KeywordClient) decide(message string) keywordDecision {
	lower := strings.ToLower(message)
	table := c.mentionedTable(lower)

	switch {
	case table != "" && containsAny(lower, "sample", "example rows", "data from", "rows from", "preview"):
		return keywordDecision{UseTool: true, ToolName: "get_sample_data", Arguments: map[string]any{"table_name": table, "limit": 5}}
	case table != "" && containsAny(lower, "schema", "structure", "column", "describe", "fields"):
		return keywordDecision{UseTool: true, ToolName: "get_table_schema", Arguments: map[string]any{"table_name": table}}
	case containsAny(lower, "relationship", "diagram", "whole database", "all tables and columns", "entire schema"):
		return keywordDecision{UseTool: true, ToolName: "describe_database", Arguments: map[string]any{}}
	case containsAny(lower, "table", "database", "list"):
		return keywordDecision{UseTool: true, ToolName: "list_tables", Arguments: map[string]any{}}
	}

	return keywordDecision{
		Answer: "I can list the available tables, show a table's schema, or fetch sample rows. Try \"list tables\" or \"show me the schema for " + c.exampleTable() + "\".",
	}
}

// mentionedTable returns the longest known table name found in message, so
// "analytics_events" wins over a hypothetical "events".
func (c *KeywordClient) mentionedTable(lower string) string {
	best := ""
	for _, t := range c.tables {
		if strings.Contains(lower, strings.ToLower(t)) && len(t) > len(best) {
			best = t
		}
	}
	return best
}

func (c *KeywordClient) exampleTable() string {
	if len(c.tables) > 0 {
		return c.tables[0]
	}
	return "a table"
}

func summarizeToolResult(prompt string) string {
	body := strings.TrimPrefix(prompt, ToolResultMarker)
	tool, rest, _ := strings.Cut(body, ":")
	if i := strings.LastIndex(rest, "\n\nUser asked:"); i >= 0 {
		rest = rest[:i]
	}
	return "Here is what " + strings.TrimSpace(tool) + " returned:\n\n" + strings.TrimSpace(rest)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Provider implements CompletionClient.
func (c *KeywordClient) Provider() string {
	return "keyword"
}

// Model implements CompletionClient.
func (c *KeywordClient) Model() string {
	return "keyword-rules"
}
