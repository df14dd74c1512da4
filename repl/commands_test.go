package repl

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/sidekick-cli/sidekick/agent"
	"github.com/sidekick-cli/sidekick/llm"
	"github.com/sidekick-cli/sidekick/tools"
)

type staticClient struct{ text string }

func (c *staticClient) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	return &llm.Response{Text: c.text, Usage: llm.Usage{InputTokens: 5, OutputTokens: 5}}, nil
}

func newTestREPL(t *testing.T) (*REPL, *bytes.Buffer) {
	t.Helper()
	undo := tools.NewUndoLog()
	exec := tools.NewExecutor(tools.NewRegistry(), undo, tools.AutoApprove,
		tools.DefaultExecutorConfig(t.TempDir()))
	sess := agent.NewSession(&staticClient{text: "ok"}, exec, undo, agent.DefaultConfig())
	t.Cleanup(sess.Close)

	out := &bytes.Buffer{}
	r, err := New(sess, bufio.NewReader(strings.NewReader("")), out, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	return r, out
}

func TestDispatchUnknownCommand(t *testing.T) {
	r, out := newTestREPL(t)
	if got := r.dispatchCommand("/frobnicate", out); got != outcomeContinue {
		t.Fatalf("outcome = %v", got)
	}
	if !strings.Contains(out.String(), "unknown command") {
		t.Fatalf("output: %q", out.String())
	}
}

func TestDispatchExitAndAliases(t *testing.T) {
	r, out := newTestREPL(t)
	for _, line := range []string{"/exit", "/quit", "/q"} {
		if got := r.dispatchCommand(line, out); got != outcomeQuit {
			t.Fatalf("%s: outcome = %v, want quit", line, got)
		}
	}
}

func TestCommandTablePopulatedAndResolvable(t *testing.T) {
	if len(commandTable) == 0 {
		t.Fatal("command table is empty")
	}
	for _, cmd := range commandTable {
		if got := lookupCommand(cmd.name); got == nil || got.name != cmd.name {
			t.Fatalf("lookup %q failed", cmd.name)
		}
		for _, alias := range cmd.aliases {
			if got := lookupCommand(alias); got == nil || got.name != cmd.name {
				t.Fatalf("alias %q does not resolve to %q", alias, cmd.name)
			}
		}
	}
}

func TestDispatchHelpListsCommands(t *testing.T) {
	r, out := newTestREPL(t)
	r.dispatchCommand("/help", out)
	for _, want := range []string{"/clear", "/dump", "/undo", "/yolo", "/model", "/exit"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("help missing %s:\n%s", want, out.String())
		}
	}
}

func TestDispatchModelShowAndSwitch(t *testing.T) {
	r, out := newTestREPL(t)
	r.dispatchCommand("/model", out)
	if !strings.Contains(out.String(), "current model: claude-sonnet-4-5") {
		t.Fatalf("output: %q", out.String())
	}

	out.Reset()
	r.dispatchCommand("/model opus", out)
	if !strings.Contains(out.String(), "model set to claude-opus-4-6") {
		t.Fatalf("output: %q", out.String())
	}
	if r.session.Model() != "claude-opus-4-6" {
		t.Fatalf("session model = %s", r.session.Model())
	}

	out.Reset()
	r.dispatchCommand("/model bogus", out)
	if !strings.Contains(out.String(), "unknown model") {
		t.Fatalf("output: %q", out.String())
	}
}

func TestDispatchYoloToggles(t *testing.T) {
	r, out := newTestREPL(t)
	exec := r.session.Executor()
	if exec.Yolo() {
		t.Fatal("yolo should start off")
	}
	r.dispatchCommand("/yolo", out)
	if !exec.Yolo() {
		t.Fatal("first toggle should enable yolo")
	}
	r.dispatchCommand("/yolo", out)
	if exec.Yolo() {
		t.Fatal("second toggle should disable yolo")
	}
}

func TestDispatchClear(t *testing.T) {
	r, out := newTestREPL(t)
	if _, err := r.session.RunTurn(context.Background(), "hello"); err != nil {
		t.Fatal(err)
	}
	r.dispatchCommand("/clear", out)
	if len(r.session.Snapshot()) != 0 {
		t.Fatal("transcript not cleared")
	}
}

func TestDispatchUndoWithNothingRecorded(t *testing.T) {
	r, out := newTestREPL(t)
	r.dispatchCommand("/undo", out)
	if !strings.Contains(out.String(), "nothing to undo") {
		t.Fatalf("output: %q", out.String())
	}
}

func TestDispatchDumpEmitsJSON(t *testing.T) {
	r, out := newTestREPL(t)
	if _, err := r.session.RunTurn(context.Background(), "hello"); err != nil {
		t.Fatal(err)
	}
	r.dispatchCommand("/dump", out)
	if !strings.Contains(out.String(), `"role": "user"`) {
		t.Fatalf("dump output: %q", out.String())
	}
}
