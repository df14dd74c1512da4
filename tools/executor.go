package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"
)

// Status is the outcome classification of a tool result.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// ErrKind categorizes tool failures so the model can self-correct.
type ErrKind string

const (
	KindUnknownTool     ErrKind = "unknown-tool"
	KindInvalidArgs     ErrKind = "invalid-args"
	KindUserDeclined    ErrKind = "user-declined"
	KindCancelled       ErrKind = "cancelled"
	KindNotFound        ErrKind = "not-found"
	KindNotAFile        ErrKind = "not-a-file"
	KindReadError       ErrKind = "read-error"
	KindAlreadyExists   ErrKind = "already-exists"
	KindTargetNotFound  ErrKind = "target-not-found"
	KindAmbiguousTarget ErrKind = "ambiguous-target"
	KindWriteError      ErrKind = "write-error"
	KindLaunchError     ErrKind = "launch-error"
	KindToolError       ErrKind = "tool-error"
)

// Error is a categorized tool failure.
type Error struct {
	Kind ErrKind
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.Kind, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// failf builds an *Error with a formatted message.
func failf(kind ErrKind, format string, a ...interface{}) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, a...)}
}

// Call is a tool invocation request, consumed exactly once by Invoke.
type Call struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// Result is the structured outcome of one Call.
type Result struct {
	CallID  string
	Status  Status
	Payload string
	ErrKind ErrKind
}

// IsError reports whether the result carries a failure.
func (r Result) IsError() bool { return r.Status == StatusError }

func okResult(callID, payload string) Result {
	return Result{CallID: callID, Status: StatusOK, Payload: payload}
}

func errResult(callID string, kind ErrKind, msg string) Result {
	return Result{CallID: callID, Status: StatusError, Payload: msg, ErrKind: kind}
}

// ConfirmRequest describes a pending mutating tool call for the gate.
type ConfirmRequest struct {
	Tool string
	Args Args
	Path string // resolved target path for file tools, empty otherwise
}

// ConfirmResponse is the gate's decision. SkipFuture approves this tool for
// the rest of the session.
type ConfirmResponse struct {
	Approved   bool
	SkipFuture bool
}

// Confirmer is the confirmation gate injected into the executor.
type Confirmer interface {
	Confirm(req ConfirmRequest) ConfirmResponse
}

// ConfirmerFunc adapts a function to the Confirmer interface.
type ConfirmerFunc func(req ConfirmRequest) ConfirmResponse

func (f ConfirmerFunc) Confirm(req ConfirmRequest) ConfirmResponse { return f(req) }

// AutoApprove is the gate used in yolo mode and in tests.
var AutoApprove = ConfirmerFunc(func(ConfirmRequest) ConfirmResponse {
	return ConfirmResponse{Approved: true}
})

// ExecutorConfig bounds tool execution.
type ExecutorConfig struct {
	WorkDir          string
	Yolo             bool
	CommandTimeout   time.Duration // wall-clock cap per run_command
	MaxReadBytes     int64         // read_file size guard
	OutputLimit      int           // payload char cap before truncation
	CommandLineLimit int           // run_command line cap
	SkipConfirm      []string      // tools pre-approved for the session
}

// DefaultExecutorConfig returns the production limits.
func DefaultExecutorConfig(workdir string) ExecutorConfig {
	return ExecutorConfig{
		WorkDir:          workdir,
		CommandTimeout:   10 * time.Second,
		MaxReadBytes:     256 * 1024,
		OutputLimit:      30000,
		CommandLineLimit: 256,
	}
}

// Executor validates tool calls against the registry, enforces the
// confirmation policy, executes, and produces bounded Results.
type Executor struct {
	registry *Registry
	undo     *UndoLog
	confirm  Confirmer
	cfg      ExecutorConfig

	mu   sync.Mutex
	yolo bool
	skip map[string]bool
}

// NewExecutor wires an executor. A nil confirmer means auto-approve.
func NewExecutor(registry *Registry, undo *UndoLog, confirm Confirmer, cfg ExecutorConfig) *Executor {
	if confirm == nil {
		confirm = AutoApprove
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 10 * time.Second
	}
	if cfg.MaxReadBytes <= 0 {
		cfg.MaxReadBytes = 256 * 1024
	}
	if cfg.OutputLimit <= 0 {
		cfg.OutputLimit = 30000
	}
	skip := make(map[string]bool, len(cfg.SkipConfirm))
	for _, name := range cfg.SkipConfirm {
		skip[name] = true
	}
	return &Executor{
		registry: registry,
		undo:     undo,
		confirm:  confirm,
		cfg:      cfg,
		yolo:     cfg.Yolo,
		skip:     skip,
	}
}

// Registry returns the executor's tool registry.
func (e *Executor) Registry() *Registry { return e.registry }

// WorkDir returns the session working directory.
func (e *Executor) WorkDir() string { return e.cfg.WorkDir }

// Yolo reports whether the confirmation gate is disabled.
func (e *Executor) Yolo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.yolo
}

// SetYolo toggles the confirmation gate.
func (e *Executor) SetYolo(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.yolo = on
}

// Invoke runs one tool call through the full pipeline:
// lookup -> validate -> confirm -> execute -> truncate.
func (e *Executor) Invoke(ctx context.Context, call Call) Result {
	if err := ctx.Err(); err != nil {
		return errResult(call.ID, KindCancelled, "tool call cancelled before execution")
	}

	spec := e.registry.Get(call.Name)
	if spec == nil {
		return errResult(call.ID, KindUnknownTool, fmt.Sprintf("unknown tool: %s", call.Name))
	}

	args, err := ParseArgs(call.Arguments)
	if err != nil {
		return errResult(call.ID, KindInvalidArgs, err.Error())
	}
	if err := ValidateArgs(spec, args); err != nil {
		return errResult(call.ID, KindInvalidArgs, err.Error())
	}

	if spec.Mutating && !e.approved(spec.Name) {
		resp := e.confirm.Confirm(ConfirmRequest{
			Tool: spec.Name,
			Args: args,
			Path: e.confirmPath(args),
		})
		if resp.SkipFuture {
			e.mu.Lock()
			e.skip[spec.Name] = true
			e.mu.Unlock()
		}
		if !resp.Approved {
			return errResult(call.ID, KindUserDeclined,
				fmt.Sprintf("user declined %s; no action was taken", spec.Name))
		}
	}

	payload, runErr := spec.Run(ctx, e, args)
	if runErr != nil {
		var toolErr *Error
		if errors.As(runErr, &toolErr) {
			return errResult(call.ID, toolErr.Kind, toolErr.Err.Error())
		}
		if ctx.Err() != nil {
			return errResult(call.ID, KindCancelled, runErr.Error())
		}
		return errResult(call.ID, KindToolError, runErr.Error())
	}

	payload = Truncate(payload, e.cfg.OutputLimit)
	if call.Name == "run_command" && e.cfg.CommandLineLimit > 0 {
		payload = TruncateLines(payload, e.cfg.CommandLineLimit)
	}
	return okResult(call.ID, payload)
}

// approved reports whether name can bypass the confirmation gate.
func (e *Executor) approved(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.yolo || e.skip[name]
}

// confirmPath extracts the resolved file target for the confirmation prompt.
func (e *Executor) confirmPath(args Args) string {
	if fp, ok := args.String("filepath"); ok {
		return e.resolvePath(fp)
	}
	return ""
}

// resolvePath anchors relative paths at the session working directory.
func (e *Executor) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(e.cfg.WorkDir, path)
}
