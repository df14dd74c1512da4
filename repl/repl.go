// Package repl implements the interactive terminal frontend: the input
// loop, slash commands, markdown rendering, and the tool confirmation
// prompt.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/sidekick-cli/sidekick/agent"
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	toolStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	noteStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// REPL drives one interactive session over a line-oriented terminal.
type REPL struct {
	session  *agent.Session
	in       *bufio.Reader
	out      io.Writer
	renderer *glamour.TermRenderer
	log      *slog.Logger
}

// New builds a REPL over the given streams. The bufio.Reader is shared with
// the confirmation prompt, so the caller must pass the same reader to both.
func New(session *agent.Session, in *bufio.Reader, out io.Writer, log *slog.Logger) (*REPL, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return nil, fmt.Errorf("init markdown renderer: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &REPL{
		session:  session,
		in:       in,
		out:      out,
		renderer: renderer,
		log:      log,
	}, nil
}

// Run processes input lines until /exit, EOF, or ctx cancellation. Ctrl-C
// during a turn cancels that turn only; the loop keeps going.
func (r *REPL) Run(ctx context.Context) error {
	go r.consumeEvents()

	fmt.Fprintf(r.out, "sidekick ready (model %s). Type /help for commands.\n", r.session.Model())

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fmt.Fprint(r.out, promptStyle.Render("you> ")+" ")

		line, err := r.in.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out)
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if r.dispatchCommand(line, r.out) == outcomeQuit {
				return nil
			}
			continue
		}

		r.runTurn(ctx, line)
	}
}

// runTurn executes one user turn with its own interrupt scope.
func (r *REPL) runTurn(ctx context.Context, input string) {
	turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	text, err := r.session.RunTurn(turnCtx, input)
	if err != nil {
		r.reportTurnError(err)
		return
	}
	r.printMarkdown(text)
}

func (r *REPL) reportTurnError(err error) {
	switch {
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(r.out, noteStyle.Render("Interrupted."))
	case errors.Is(err, agent.ErrStepLimit):
		fmt.Fprintln(r.out, errorStyle.Render(
			"The model hit the step limit without finishing. Use /undo to revert its file changes, or rephrase."))
	default:
		var terr *agent.TransportError
		if errors.As(err, &terr) && terr.Retryable {
			fmt.Fprintln(r.out, errorStyle.Render(fmt.Sprintf("%v (transient; try again)", err)))
			return
		}
		fmt.Fprintln(r.out, errorStyle.Render(err.Error()))
	}
}

// printMarkdown renders model output as terminal markdown, falling back to
// plain text when rendering fails.
func (r *REPL) printMarkdown(text string) {
	if text == "" {
		return
	}
	rendered, err := r.renderer.Render(text)
	if err != nil {
		r.log.Debug("markdown render failed", "error", err)
		fmt.Fprintln(r.out, text)
		return
	}
	fmt.Fprint(r.out, rendered)
}

// consumeEvents prints tool activity lines as the loop works.
func (r *REPL) consumeEvents() {
	for ev := range r.session.Events() {
		switch ev.Kind {
		case agent.EventToolStart:
			fmt.Fprintln(r.out, toolStyle.Render(fmt.Sprintf("  [%v] running...", ev.Data["tool"])))
		case agent.EventToolEnd:
			if ev.Data["status"] == "error" {
				fmt.Fprintln(r.out, toolStyle.Render(
					fmt.Sprintf("  [%v] error: %v", ev.Data["tool"], ev.Data["err_kind"])))
			}
		case agent.EventSystemNote:
			fmt.Fprintln(r.out, noteStyle.Render(fmt.Sprintf("  note: %v", ev.Data["note"])))
		case agent.EventStepLimit:
			r.log.Warn("turn exhausted its step limit", "steps", ev.Data["steps"])
		}
	}
}
