package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/sidekick-cli/sidekick/llm"
	"github.com/sidekick-cli/sidekick/tools"
)

var (
	// ErrStepLimit means a turn exceeded its model-call bound. The partial
	// conversation is preserved for inspection.
	ErrStepLimit = errors.New("step limit exceeded")
	// ErrBusy means RunTurn was called while another turn was in flight.
	ErrBusy = errors.New("a turn is already in progress")
	// ErrUnknownModel is returned by SetModel for ids not in the catalog.
	ErrUnknownModel = errors.New("unknown model")
)

// TransportError wraps a model-transport failure that aborted a turn.
// Retryable mirrors the transport's own classification so the UI can suggest
// retrying.
type TransportError struct {
	Retryable bool
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("model call failed (retryable=%v): %v", e.Retryable, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Session owns one interactive conversation: the transcript, the running
// stats, the undo batch boundaries, and the loop that drives the model.
// A session processes one turn at a time.
type Session struct {
	id      string
	client  llm.Client
	exec    *tools.Executor
	undo    *tools.UndoLog
	conv    *Conversation
	emitter *EventEmitter
	cfg     Config

	mu    sync.Mutex
	model string
	stats SessionStats
	busy  bool
}

// NewSession creates a session around the given transport and executor.
func NewSession(client llm.Client, exec *tools.Executor, undo *tools.UndoLog, cfg Config) *Session {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultConfig().MaxSteps
	}
	model := cfg.Model
	if info := llm.LookupModel(model); info != nil {
		model = info.ID
	}
	id := uuid.New().String()
	return &Session{
		id:      id,
		client:  client,
		exec:    exec,
		undo:    undo,
		conv:    NewConversation(),
		emitter: NewEventEmitter(id, 256),
		cfg:     cfg,
		model:   model,
		stats:   SessionStats{ToolInvocations: make(map[string]int)},
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Model returns the active model id.
func (s *Session) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// SetModel switches the model used for subsequent turns. The id (or alias)
// must resolve in the catalog.
func (s *Session) SetModel(id string) error {
	info := llm.LookupModel(id)
	if info == nil {
		return fmt.Errorf("%w: %s", ErrUnknownModel, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = info.ID
	return nil
}

// Stats returns a copy of the running totals.
func (s *Session) Stats() SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats.clone()
}

// Snapshot returns a copy of the conversation transcript.
func (s *Session) Snapshot() []Message { return s.conv.Snapshot() }

// Events returns the progress event stream for the host UI.
func (s *Session) Events() <-chan Event { return s.emitter.Events() }

// Executor exposes the tool executor (for yolo toggling from the UI).
func (s *Session) Executor() *tools.Executor { return s.exec }

// Clear wipes the conversation and zeroes the stats.
func (s *Session) Clear() {
	s.conv.Clear()
	s.mu.Lock()
	s.stats = SessionStats{ToolInvocations: make(map[string]int)}
	s.mu.Unlock()
	s.emitter.Emit(EventCleared, nil)
}

// Undo reverts the most recent batch of file mutations.
func (s *Session) Undo() (tools.Report, error) {
	report, err := s.undo.UndoLast()
	if err == nil {
		s.emitter.Emit(EventUndo, map[string]interface{}{
			"restored": len(report.Restored),
			"failed":   len(report.Failed),
		})
	}
	return report, err
}

// Close shuts down the event stream.
func (s *Session) Close() { s.emitter.Close() }

// RunTurn processes one user message through the agent loop and returns the
// model's final text answer. Tool execution errors feed back to the model as
// error results; only transport failures, cancellation, step-limit
// exhaustion, and invariant violations abort the turn.
func (s *Session) RunTurn(ctx context.Context, userText string) (string, error) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return "", ErrBusy
	}
	s.busy = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	if err := s.conv.Append(UserMessage(userText)); err != nil {
		return "", err
	}
	s.emitter.Emit(EventTurnStart, map[string]interface{}{"input": userText})

	// One undo batch per turn: /undo reverts everything this turn writes.
	s.undo.Begin()

	for step := 0; step < s.cfg.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			s.emitter.Emit(EventError, map[string]interface{}{"error": err.Error()})
			return "", err
		}

		resp, err := s.client.Complete(ctx, llm.Request{
			Model:    s.Model(),
			Messages: s.wireMessages(),
			Tools:    s.exec.Registry().Schemas(),
		})
		if err != nil {
			terr := &TransportError{Retryable: llm.IsRetryable(err), Err: err}
			s.emitter.Emit(EventError, map[string]interface{}{"error": terr.Error()})
			return "", terr
		}

		s.addUsage(resp.Usage)

		if err := s.conv.Append(AssistantMessage(resp.Text, toolCallsFromWire(resp.ToolCalls))); err != nil {
			return "", err
		}

		if len(resp.ToolCalls) == 0 {
			s.mu.Lock()
			s.stats.Turns++
			s.mu.Unlock()
			s.emitter.Emit(EventTurnEnd, map[string]interface{}{"text": resp.Text})
			return resp.Text, nil
		}

		// Sequential execution in emission order: later calls may depend on
		// earlier side effects.
		interrupted := false
		for _, call := range resp.ToolCalls {
			s.emitter.Emit(EventToolStart, map[string]interface{}{
				"call_id": call.ID, "tool": call.Name, "args": string(call.Arguments),
			})
			result := s.exec.Invoke(ctx, tools.Call{
				ID: call.ID, Name: call.Name, Arguments: call.Arguments,
			})
			if err := s.conv.Append(ToolResultMessage(result)); err != nil {
				return "", err
			}
			s.bumpTool(call.Name)
			s.emitter.Emit(EventToolEnd, map[string]interface{}{
				"call_id": call.ID, "tool": call.Name,
				"status": string(result.Status), "err_kind": string(result.ErrKind),
			})
			if result.ErrKind == tools.KindCancelled {
				interrupted = true
			}
		}
		if interrupted && ctx.Err() != nil {
			// Cancelled results are appended above, so the transcript stays
			// consistent and inspectable.
			return "", ctx.Err()
		}

		if s.cfg.LoopDetection && DetectLoop(s.conv.Snapshot(), s.cfg.LoopWindow) {
			note := fmt.Sprintf("The last %d tool calls repeat the same pattern. Step back and try a different approach.", s.cfg.LoopWindow)
			if err := s.conv.Append(SystemNote(note)); err != nil {
				return "", err
			}
			s.emitter.Emit(EventSystemNote, map[string]interface{}{"note": note})
		}
	}

	s.emitter.Emit(EventStepLimit, map[string]interface{}{"steps": s.cfg.MaxSteps})
	return "", fmt.Errorf("%w after %d steps", ErrStepLimit, s.cfg.MaxSteps)
}

// wireMessages serializes the system prompt plus the transcript for the
// transport.
func (s *Session) wireMessages() []llm.Message {
	out := []llm.Message{llm.SystemMessage(BuildSystemPrompt(s.cfg, s.Model()))}
	for _, m := range s.conv.Snapshot() {
		switch m.Role {
		case RoleUser:
			out = append(out, llm.UserMessage(m.Content))
		case RoleAssistant:
			out = append(out, llm.AssistantMessage(m.Content, toolCallsToWire(m.ToolCalls)))
		case RoleTool:
			out = append(out, llm.ToolMessage(m.CallID, m.Content, m.IsError))
		case RoleSystem:
			// Injected notes travel as user messages so every provider
			// treats them as instructions.
			out = append(out, llm.UserMessage(m.Content))
		}
	}
	return out
}

func toolCallsFromWire(calls []llm.ToolCall) []ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]ToolCall, len(calls))
	for i, c := range calls {
		out[i] = ToolCall{ID: c.ID, Name: c.Name, Arguments: c.Arguments}
	}
	return out
}

func toolCallsToWire(calls []ToolCall) []llm.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]llm.ToolCall, len(calls))
	for i, c := range calls {
		out[i] = llm.ToolCall{ID: c.ID, Name: c.Name, Arguments: c.Arguments}
	}
	return out
}

// addUsage folds one response's usage into the totals, pricing it via the
// model catalog when the model is known.
func (s *Session) addUsage(u llm.Usage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.InputTokens += u.InputTokens
	s.stats.OutputTokens += u.OutputTokens
	if info := llm.LookupModel(s.model); info != nil {
		s.stats.Cost += info.Cost(u)
	}
}

func (s *Session) bumpTool(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.ToolInvocations[name]++
}
