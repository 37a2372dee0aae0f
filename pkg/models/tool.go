package models

// ToolResult is the outcome of invoking a registered tool.
// Text is the fixed-width rendering used in prompts and for direct display;
// Data carries the structured payload for programmatic callers.
type ToolResult struct {
	Tool string `json:"tool"`
	Text string `json:"text"`
	Data any    `json:"data,omitempty"`
}

// ToolDescription is the public view of a registered tool. Parameters is a
// JSON Schema object describing the accepted arguments.
type ToolDescription struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  any    `json:"parameters"`
}
