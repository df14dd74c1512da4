package llm

import (
	"context"
	"encoding/json"
)

// Role identifies who produced a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a model-requested invocation of a declared tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolReturn carries a tool execution result back to the model.
type ToolReturn struct {
	CallID  string `json:"call_id"`
	Content string `json:"content"`
	IsError bool   `json:"is_error"`
}

// Message is one entry of the wire-format transcript. Exactly one of the
// optional fields is populated depending on Role: assistant messages may
// carry ToolCalls, tool messages carry ToolReturn.
type Message struct {
	Role       Role        `json:"role"`
	Text       string      `json:"text,omitempty"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
	ToolReturn *ToolReturn `json:"tool_return,omitempty"`
}

// SystemMessage builds a system-role Message.
func SystemMessage(text string) Message { return Message{Role: RoleSystem, Text: text} }

// UserMessage builds a user-role Message.
func UserMessage(text string) Message { return Message{Role: RoleUser, Text: text} }

// AssistantMessage builds an assistant-role Message.
func AssistantMessage(text string, calls []ToolCall) Message {
	return Message{Role: RoleAssistant, Text: text, ToolCalls: calls}
}

// ToolMessage builds a tool-role Message wrapping a ToolReturn.
func ToolMessage(callID, content string, isError bool) Message {
	return Message{Role: RoleTool, ToolReturn: &ToolReturn{CallID: callID, Content: content, IsError: isError}}
}

// ToolSchema declares a callable tool to the model.
type ToolSchema struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"` // JSON Schema object
}

// Usage tracks token consumption for one model response.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add returns the element-wise sum of u and other.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
	}
}

// Request is the input to Client.Complete.
type Request struct {
	Model    string       `json:"model"`
	Messages []Message    `json:"messages"`
	Tools    []ToolSchema `json:"tools,omitempty"`
}

// Response is the model's answer: terminal text, or one or more tool calls,
// or both (text preceding the calls).
type Response struct {
	ID        string     `json:"id"`
	Model     string     `json:"model"`
	Text      string     `json:"text"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Usage     Usage      `json:"usage"`
}

// Client is the transport the agent loop depends on.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}
