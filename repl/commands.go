package repl

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sidekick-cli/sidekick/llm"
)

// commandOutcome tells the loop what to do after a slash command.
type commandOutcome int

const (
	outcomeContinue commandOutcome = iota
	outcomeQuit
)

// command is one slash command.
type command struct {
	name    string
	aliases []string
	help    string
	run     func(r *REPL, arg string, out io.Writer) commandOutcome
}

// commandTable is populated in init rather than declared directly: the help
// command's closure walks the table, which would otherwise be an
// initialization cycle.
var commandTable []command

func init() {
	commandTable = []command{
		{
			name: "help", aliases: []string{"h", "?"},
			help: "show this help",
			run: func(r *REPL, arg string, out io.Writer) commandOutcome {
				printHelp(out)
				return outcomeContinue
			},
		},
		{
			name: "clear",
			help: "wipe the conversation and stats",
			run: func(r *REPL, arg string, out io.Writer) commandOutcome {
				r.session.Clear()
				fmt.Fprintln(out, "Conversation cleared.")
				return outcomeContinue
			},
		},
		{
			name: "dump",
			help: "print the raw transcript as JSON",
			run: func(r *REPL, arg string, out io.Writer) commandOutcome {
				data, err := json.MarshalIndent(r.session.Snapshot(), "", "  ")
				if err != nil {
					fmt.Fprintf(out, "dump failed: %v\n", err)
					return outcomeContinue
				}
				fmt.Fprintln(out, string(data))
				return outcomeContinue
			},
		},
		{
			name: "undo",
			help: "revert the file changes of the most recent turn",
			run: func(r *REPL, arg string, out io.Writer) commandOutcome {
				report, err := r.session.Undo()
				if err != nil {
					fmt.Fprintf(out, "%v\n", err)
					return outcomeContinue
				}
				for _, path := range report.Restored {
					fmt.Fprintf(out, "restored %s\n", path)
				}
				for path, ferr := range report.Failed {
					fmt.Fprintf(out, "failed to restore %s: %v\n", path, ferr)
				}
				if len(report.Restored) == 0 && len(report.Failed) == 0 {
					fmt.Fprintln(out, "Nothing to restore.")
				}
				return outcomeContinue
			},
		},
		{
			name: "yolo",
			help: "toggle the tool confirmation gate",
			run: func(r *REPL, arg string, out io.Writer) commandOutcome {
				exec := r.session.Executor()
				exec.SetYolo(!exec.Yolo())
				if exec.Yolo() {
					fmt.Fprintln(out, "yolo mode ON: tools run without confirmation")
				} else {
					fmt.Fprintln(out, "yolo mode OFF: mutating tools ask first")
				}
				return outcomeContinue
			},
		},
		{
			name: "model",
			help: "show or switch the model: /model [id]",
			run: func(r *REPL, arg string, out io.Writer) commandOutcome {
				if arg == "" {
					fmt.Fprintf(out, "current model: %s\n\n", r.session.Model())
					for _, m := range llm.ListModels("") {
						fmt.Fprintf(out, "  %-24s %s ($%.2f/$%.2f per Mtok)\n",
							m.ID, m.DisplayName, m.InputPerMTok, m.OutputPerMTok)
					}
					return outcomeContinue
				}
				if err := r.session.SetModel(arg); err != nil {
					fmt.Fprintf(out, "%v\n", err)
					return outcomeContinue
				}
				fmt.Fprintf(out, "model set to %s\n", r.session.Model())
				return outcomeContinue
			},
		},
		{
			name: "stats",
			help: "show token usage and cost for this session",
			run: func(r *REPL, arg string, out io.Writer) commandOutcome {
				s := r.session.Stats()
				fmt.Fprintf(out, "turns: %d  input tokens: %d  output tokens: %d  cost: $%.4f\n",
					s.Turns, s.InputTokens, s.OutputTokens, s.Cost)
				if len(s.ToolInvocations) > 0 {
					names := make([]string, 0, len(s.ToolInvocations))
					for name := range s.ToolInvocations {
						names = append(names, name)
					}
					sort.Strings(names)
					for _, name := range names {
						fmt.Fprintf(out, "  %s: %d\n", name, s.ToolInvocations[name])
					}
				}
				return outcomeContinue
			},
		},
		{
			name: "exit", aliases: []string{"quit", "q"},
			help: "leave sidekick",
			run: func(r *REPL, arg string, out io.Writer) commandOutcome {
				return outcomeQuit
			},
		},
	}
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "Commands:")
	for _, cmd := range commandTable {
		name := "/" + cmd.name
		if len(cmd.aliases) > 0 {
			name += " (/" + strings.Join(cmd.aliases, ", /") + ")"
		}
		fmt.Fprintf(out, "  %-28s %s\n", name, cmd.help)
	}
	fmt.Fprintln(out, "\nAnything else is sent to the model.")
}

// lookupCommand resolves a command name or alias.
func lookupCommand(name string) *command {
	for i := range commandTable {
		cmd := &commandTable[i]
		if cmd.name == name {
			return cmd
		}
		for _, alias := range cmd.aliases {
			if alias == name {
				return cmd
			}
		}
	}
	return nil
}

// dispatchCommand handles one "/..." input line.
func (r *REPL) dispatchCommand(line string, out io.Writer) commandOutcome {
	fields := strings.SplitN(strings.TrimPrefix(line, "/"), " ", 2)
	name := strings.ToLower(fields[0])
	arg := ""
	if len(fields) == 2 {
		arg = strings.TrimSpace(fields[1])
	}
	cmd := lookupCommand(name)
	if cmd == nil {
		fmt.Fprintf(out, "unknown command /%s; try /help\n", name)
		return outcomeContinue
	}
	return cmd.run(r, arg, out)
}
