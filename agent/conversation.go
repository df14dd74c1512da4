package agent

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/sidekick-cli/sidekick/tools"
)

// Role identifies the author of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// ToolCall is a model-requested tool invocation recorded on an assistant
// Message. It is consumed exactly once by the tool executor.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message is one immutable entry of the conversation transcript.
type Message struct {
	Role      Role       `json:"role"`
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// Tool-role fields: linkage back to the originating call.
	CallID  string `json:"call_id,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
	ErrKind string `json:"err_kind,omitempty"`

	At time.Time `json:"at"`
}

// UserMessage builds a user-role Message.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text, At: time.Now()}
}

// AssistantMessage builds an assistant-role Message with optional tool calls.
func AssistantMessage(text string, calls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: text, ToolCalls: calls, At: time.Now()}
}

// ToolResultMessage wraps a tool executor Result as a tool-role Message.
func ToolResultMessage(res tools.Result) Message {
	return Message{
		Role:    RoleTool,
		Content: res.Payload,
		CallID:  res.CallID,
		IsError: res.IsError(),
		ErrKind: string(res.ErrKind),
		At:      time.Now(),
	}
}

// SystemNote builds a system-role Message injected by the loop itself
// (loop-detection warnings and similar steering).
func SystemNote(text string) Message {
	return Message{Role: RoleSystem, Content: text, At: time.Now()}
}

// Invariant violations surfaced by Conversation.Append.
var (
	// ErrCallsOutstanding means a user or assistant Message arrived while
	// tool calls were still unresolved.
	ErrCallsOutstanding = errors.New("conversation has unresolved tool calls")
	// ErrOrphanToolResult means a tool Message referenced no outstanding call.
	ErrOrphanToolResult = errors.New("tool result does not match an outstanding tool call")
)

// Conversation is the ordered transcript for one session. Append is the only
// mutator and enforces that every tool result answers exactly one
// outstanding tool call, and that no new turn starts while calls are
// pending.
type Conversation struct {
	mu       sync.Mutex
	messages []Message
	pending  map[string]bool // outstanding tool call ids
}

// NewConversation creates an empty transcript.
func NewConversation() *Conversation {
	return &Conversation{pending: make(map[string]bool)}
}

// Append adds a Message, enforcing the outstanding-call invariant.
func (c *Conversation) Append(m Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch m.Role {
	case RoleUser, RoleAssistant:
		if len(c.pending) > 0 {
			return ErrCallsOutstanding
		}
		for _, call := range m.ToolCalls {
			c.pending[call.ID] = true
		}
	case RoleTool:
		if !c.pending[m.CallID] {
			return ErrOrphanToolResult
		}
		delete(c.pending, m.CallID)
	case RoleSystem:
		// Always admissible.
	}

	c.messages = append(c.messages, m)
	return nil
}

// Snapshot returns a copy of the transcript.
func (c *Conversation) Snapshot() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Outstanding returns how many tool calls still await results.
func (c *Conversation) Outstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Clear resets the transcript to empty, dropping any pending calls.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
	c.pending = make(map[string]bool)
}

// SessionStats holds the running totals for one session. Only the agent loop
// mutates it; everyone else reads copies.
type SessionStats struct {
	InputTokens     int            `json:"input_tokens"`
	OutputTokens    int            `json:"output_tokens"`
	Cost            float64        `json:"cost"`
	Turns           int            `json:"turns"`
	ToolInvocations map[string]int `json:"tool_invocations"`
}

func (s SessionStats) clone() SessionStats {
	out := s
	out.ToolInvocations = make(map[string]int, len(s.ToolInvocations))
	for k, v := range s.ToolInvocations {
		out.ToolInvocations[k] = v
	}
	return out
}
