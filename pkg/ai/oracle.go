package ai

import (
	"context"
	"encoding/json"
)

// Message is one entry in a chat completion conversation. Tool results are
// sent back as role "tool" with the originating call's ID.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the function name and its JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool declares a callable function to the model.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction is the JSON-schema description of one tool.
type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// NewFunctionTool wraps a function schema in the tool envelope.
func NewFunctionTool(name, description string, parameters map[string]any) Tool {
	return Tool{
		Type: "function",
		Function: ToolFunction{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}

// Completion is the model's answer to one request: either plain text or a set
// of tool calls to execute.
type Completion struct {
	Content   string
	ToolCalls []ToolCall
}

// Oracle is a chat completion backend with function calling.
type Oracle interface {
	Complete(ctx context.Context, messages []Message, tools []Tool) (Completion, error)
}

// UnmarshalArguments decodes a tool call's argument payload into dst.
func (c ToolCall) UnmarshalArguments(dst any) error {
	return json.Unmarshal([]byte(c.Function.Arguments), dst)
}
