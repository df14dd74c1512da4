package agent

import (
	"crypto/sha256"
	"fmt"
)

// callSignature is a deterministic fingerprint of one tool call.
func callSignature(call ToolCall) string {
	h := sha256.Sum256(call.Arguments)
	return fmt.Sprintf("%s:%x", call.Name, h[:8])
}

// recentCallSignatures collects the last count tool call signatures from the
// transcript in chronological order.
func recentCallSignatures(messages []Message, count int) []string {
	var sigs []string
	for i := len(messages) - 1; i >= 0 && len(sigs) < count; i-- {
		m := messages[i]
		if m.Role != RoleAssistant {
			continue
		}
		for j := len(m.ToolCalls) - 1; j >= 0 && len(sigs) < count; j-- {
			sigs = append(sigs, callSignature(m.ToolCalls[j]))
		}
	}
	for i, j := 0, len(sigs)-1; i < j; i, j = i+1, j-1 {
		sigs[i], sigs[j] = sigs[j], sigs[i]
	}
	return sigs
}

// DetectLoop reports whether the last window tool calls repeat a pattern of
// length 1, 2, or 3. A stuck model re-issuing the same call (or the same
// short cycle of calls) trips this.
func DetectLoop(messages []Message, window int) bool {
	sigs := recentCallSignatures(messages, window)
	if len(sigs) < window {
		return false
	}
	for patternLen := 1; patternLen <= 3; patternLen++ {
		if window%patternLen != 0 {
			continue
		}
		match := true
	scan:
		for i := patternLen; i < window; i += patternLen {
			for j := 0; j < patternLen; j++ {
				if sigs[i+j] != sigs[j] {
					match = false
					break scan
				}
			}
		}
		if match {
			return true
		}
	}
	return false
}
