package agent

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/sidekick-cli/sidekick/tools"
)

func TestConversationAppendOrder(t *testing.T) {
	conv := NewConversation()
	if err := conv.Append(UserMessage("hello")); err != nil {
		t.Fatalf("append user: %v", err)
	}
	if err := conv.Append(AssistantMessage("hi there", nil)); err != nil {
		t.Fatalf("append assistant: %v", err)
	}
	msgs := conv.Snapshot()
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != RoleUser || msgs[1].Role != RoleAssistant {
		t.Fatalf("unexpected roles: %s, %s", msgs[0].Role, msgs[1].Role)
	}
}

func TestConversationRejectsNewTurnWithPendingCalls(t *testing.T) {
	conv := NewConversation()
	if err := conv.Append(UserMessage("do a thing")); err != nil {
		t.Fatal(err)
	}
	calls := []ToolCall{{ID: "call_1", Name: "read_file", Arguments: json.RawMessage(`{}`)}}
	if err := conv.Append(AssistantMessage("", calls)); err != nil {
		t.Fatal(err)
	}

	if err := conv.Append(UserMessage("never mind")); !errors.Is(err, ErrCallsOutstanding) {
		t.Fatalf("user append with pending call: got %v, want ErrCallsOutstanding", err)
	}
	if err := conv.Append(AssistantMessage("ok", nil)); !errors.Is(err, ErrCallsOutstanding) {
		t.Fatalf("assistant append with pending call: got %v, want ErrCallsOutstanding", err)
	}

	res := tools.Result{CallID: "call_1", Status: tools.StatusOK, Payload: "contents"}
	if err := conv.Append(ToolResultMessage(res)); err != nil {
		t.Fatalf("append tool result: %v", err)
	}
	if conv.Outstanding() != 0 {
		t.Fatalf("outstanding = %d, want 0", conv.Outstanding())
	}
	if err := conv.Append(UserMessage("thanks")); err != nil {
		t.Fatalf("append after resolution: %v", err)
	}
}

func TestConversationRejectsOrphanToolResult(t *testing.T) {
	conv := NewConversation()
	res := tools.Result{CallID: "call_ghost", Status: tools.StatusOK, Payload: "x"}
	if err := conv.Append(ToolResultMessage(res)); !errors.Is(err, ErrOrphanToolResult) {
		t.Fatalf("got %v, want ErrOrphanToolResult", err)
	}
}

func TestConversationRejectsDuplicateToolResult(t *testing.T) {
	conv := NewConversation()
	if err := conv.Append(UserMessage("go")); err != nil {
		t.Fatal(err)
	}
	calls := []ToolCall{{ID: "call_1", Name: "run_command", Arguments: json.RawMessage(`{}`)}}
	if err := conv.Append(AssistantMessage("", calls)); err != nil {
		t.Fatal(err)
	}
	res := tools.Result{CallID: "call_1", Status: tools.StatusOK, Payload: "done"}
	if err := conv.Append(ToolResultMessage(res)); err != nil {
		t.Fatal(err)
	}
	if err := conv.Append(ToolResultMessage(res)); !errors.Is(err, ErrOrphanToolResult) {
		t.Fatalf("duplicate result: got %v, want ErrOrphanToolResult", err)
	}
}

func TestConversationSystemNoteAlwaysAdmissible(t *testing.T) {
	conv := NewConversation()
	if err := conv.Append(UserMessage("go")); err != nil {
		t.Fatal(err)
	}
	calls := []ToolCall{{ID: "call_1", Name: "run_command", Arguments: json.RawMessage(`{}`)}}
	if err := conv.Append(AssistantMessage("", calls)); err != nil {
		t.Fatal(err)
	}
	if err := conv.Append(SystemNote("steering note")); err != nil {
		t.Fatalf("system note with pending call: %v", err)
	}
	if conv.Outstanding() != 1 {
		t.Fatalf("outstanding = %d, want 1", conv.Outstanding())
	}
}

func TestConversationClearDropsPending(t *testing.T) {
	conv := NewConversation()
	conv.Append(UserMessage("go"))
	conv.Append(AssistantMessage("", []ToolCall{{ID: "call_1", Name: "x"}}))
	conv.Clear()
	if conv.Len() != 0 || conv.Outstanding() != 0 {
		t.Fatalf("after clear: len=%d outstanding=%d", conv.Len(), conv.Outstanding())
	}
	if err := conv.Append(UserMessage("fresh")); err != nil {
		t.Fatalf("append after clear: %v", err)
	}
}

func TestConversationSnapshotIsACopy(t *testing.T) {
	conv := NewConversation()
	conv.Append(UserMessage("one"))
	snap := conv.Snapshot()
	snap[0].Content = "mutated"
	if conv.Snapshot()[0].Content != "one" {
		t.Fatal("snapshot mutation leaked into the transcript")
	}
}
