package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const maxGuideBytes = 32 * 1024

const basePrompt = `You are sidekick, a coding assistant working in the user's terminal.

You can act on the user's machine through these tools:
- run_command: run a shell command in the working directory
- read_file: read the full text of a file
- write_file: create a new file (never overwrites)
- update_file: replace one exact occurrence of text in an existing file

Prefer reading a file before editing it. Make the smallest change that
accomplishes the task, and report what you did when you are done. When a tool
returns an error, read the error kind and correct your arguments instead of
repeating the same call.`

// BuildSystemPrompt assembles the system message sent with every model call:
// the base persona, an environment block, the project guide file if present,
// and any user instructions.
func BuildSystemPrompt(cfg Config, model string) string {
	var sb strings.Builder
	sb.WriteString(basePrompt)

	sb.WriteString("\n\n<environment>\n")
	fmt.Fprintf(&sb, "Working directory: %s\n", cfg.WorkDir)
	fmt.Fprintf(&sb, "Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&sb, "Today's date: %s\n", time.Now().Format("2006-01-02"))
	if model != "" {
		fmt.Fprintf(&sb, "Model: %s\n", model)
	}
	sb.WriteString("</environment>")

	if guide := loadGuideFile(cfg.WorkDir, cfg.GuideFile); guide != "" {
		sb.WriteString("\n\n# Project instructions\n\n")
		sb.WriteString(guide)
	}

	if cfg.Instructions != "" {
		sb.WriteString("\n\n# User instructions\n\n")
		sb.WriteString(cfg.Instructions)
	}

	return sb.String()
}

// loadGuideFile reads the project guide (SIDEKICK.md by default) from the
// working directory, capped at 32KB.
func loadGuideFile(workdir, name string) string {
	if name == "" {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(workdir, name))
	if err != nil {
		return ""
	}
	text := string(data)
	if len(text) > maxGuideBytes {
		text = text[:maxGuideBytes] + "\n[Project instructions truncated at 32KB]"
	}
	return text
}
