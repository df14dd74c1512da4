// Package agent implements sidekick's session core: the agent loop that
// turns one user message into a sequence of model calls and tool executions
// ending in a final answer.
//
// A Session owns the Conversation (the append-only message transcript), the
// SessionStats counters, and the undo batch boundaries. RunTurn drives
// repeated model-call -> tool-call -> tool-result cycles until the model
// answers with plain text, a step limit trips, or the caller cancels. Tool
// results are always fed back before the next model call; the loop never
// leaves a tool call unresolved.
//
//	sess := agent.NewSession(client, executor, undoLog, agent.DefaultConfig())
//	answer, err := sess.RunTurn(ctx, "add a --verbose flag to main.go")
package agent
