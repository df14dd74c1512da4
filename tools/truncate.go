package tools

import (
	"fmt"
	"strings"
)

// Truncate caps output at maxChars using a head/tail split, keeping both the
// start and the end of the output with a marker in between.
func Truncate(output string, maxChars int) string {
	if maxChars <= 0 || len(output) <= maxChars {
		return output
	}
	half := maxChars / 2
	removed := len(output) - maxChars
	return output[:half] +
		fmt.Sprintf("\n\n[Output truncated: %d characters removed from the middle. "+
			"Re-run with more targeted parameters to see specific parts.]\n\n", removed) +
		output[len(output)-half:]
}

// TruncateLines caps output at maxLines with a head/tail split.
func TruncateLines(output string, maxLines int) string {
	lines := strings.Split(output, "\n")
	if maxLines <= 0 || len(lines) <= maxLines {
		return output
	}
	head := maxLines / 2
	tail := maxLines - head
	omitted := len(lines) - maxLines
	return strings.Join(lines[:head], "\n") +
		fmt.Sprintf("\n[... %d lines omitted ...]\n", omitted) +
		strings.Join(lines[len(lines)-tail:], "\n")
}
