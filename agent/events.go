package agent

import (
	"sync"
	"time"
)

// EventKind identifies the type of session event.
type EventKind string

const (
	EventTurnStart  EventKind = "turn_start"
	EventTurnEnd    EventKind = "turn_end"
	EventToolStart  EventKind = "tool_start"
	EventToolEnd    EventKind = "tool_end"
	EventSystemNote EventKind = "system_note"
	EventStepLimit  EventKind = "step_limit"
	EventCleared    EventKind = "cleared"
	EventUndo       EventKind = "undo"
	EventError      EventKind = "error"
)

// Event is a typed progress notification for the host UI.
type Event struct {
	Kind      EventKind              `json:"kind"`
	Time      time.Time              `json:"time"`
	SessionID string                 `json:"session_id"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// EventEmitter delivers events over a buffered channel without ever blocking
// the agent loop; when the buffer is full, events are dropped.
type EventEmitter struct {
	sessionID string
	ch        chan Event
	mu        sync.Mutex
	closed    bool
}

// NewEventEmitter creates an emitter with the given buffer size.
func NewEventEmitter(sessionID string, buffer int) *EventEmitter {
	if buffer <= 0 {
		buffer = 256
	}
	return &EventEmitter{sessionID: sessionID, ch: make(chan Event, buffer)}
}

// Emit sends an event if there is room and the emitter is open.
func (e *EventEmitter) Emit(kind EventKind, data map[string]interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	select {
	case e.ch <- Event{Kind: kind, Time: time.Now(), SessionID: e.sessionID, Data: data}:
	default:
	}
}

// Events returns the read side of the event stream.
func (e *EventEmitter) Events() <-chan Event { return e.ch }

// Close closes the stream. Safe to call more than once.
func (e *EventEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
}
