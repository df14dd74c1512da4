package repl

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sidekick-cli/sidekick/tools"
)

var confirmStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)

// TerminalConfirmer asks the user on the terminal before each mutating tool
// call. Answering "a" approves the tool for the rest of the session.
type TerminalConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTerminalConfirmer builds a confirmer over the REPL's streams.
func NewTerminalConfirmer(in *bufio.Reader, out io.Writer) *TerminalConfirmer {
	return &TerminalConfirmer{in: in, out: out}
}

// Confirm implements tools.Confirmer.
func (c *TerminalConfirmer) Confirm(req tools.ConfirmRequest) tools.ConfirmResponse {
	fmt.Fprintln(c.out, confirmStyle.Render(describeRequest(req)))
	fmt.Fprint(c.out, "Proceed? [y]es / [n]o / [a]lways for this tool: ")

	line, err := c.in.ReadString('\n')
	if err != nil {
		// EOF or a broken terminal means we cannot get consent.
		return tools.ConfirmResponse{}
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return tools.ConfirmResponse{Approved: true}
	case "a", "always":
		return tools.ConfirmResponse{Approved: true, SkipFuture: true}
	default:
		return tools.ConfirmResponse{}
	}
}

// describeRequest renders the pending call for the prompt.
func describeRequest(req tools.ConfirmRequest) string {
	switch req.Tool {
	case "run_command":
		cmd, _ := req.Args.String("command")
		return fmt.Sprintf("sidekick wants to run: %s", cmd)
	case "write_file":
		return fmt.Sprintf("sidekick wants to create: %s", req.Path)
	case "update_file":
		return fmt.Sprintf("sidekick wants to edit: %s", req.Path)
	default:
		if req.Path != "" {
			return fmt.Sprintf("sidekick wants to use %s on %s", req.Tool, req.Path)
		}
		return fmt.Sprintf("sidekick wants to use %s", req.Tool)
	}
}
