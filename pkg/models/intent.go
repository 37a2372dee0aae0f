package models

// IntentKind discriminates an IntentDecision.
type IntentKind string

const (
	// IntentDirect means the model answered without needing a tool.
	IntentDirect IntentKind = "direct"
	// IntentToolCall means the model asked for a tool to be run.
	IntentToolCall IntentKind = "tool_call"
)

// IntentDecision is the parsed outcome of intent analysis. Answer is set for
// IntentDirect; ToolName and Arguments are set for IntentToolCall.
type IntentDecision struct {
	Kind      IntentKind     `json:"kind"`
	Answer    string         `json:"answer,omitempty"`
	ToolName  string         `json:"tool_name,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// DirectDecision returns a decision that answers with text.
func DirectDecision(answer string) *IntentDecision {
	return &IntentDecision{Kind: IntentDirect, Answer: answer}
}

// ToolCallDecision returns a decision that runs a tool.
func ToolCallDecision(tool string, args map[string]any) *IntentDecision {
	if args == nil {
		args = map[string]any{}
	}
	return &IntentDecision{Kind: IntentToolCall, ToolName: tool, Arguments: args}
}

// IsToolCall reports whether the decision asks for a tool.
func (d *IntentDecision) IsToolCall() bool {
	return d != nil && d.Kind == IntentToolCall
}
