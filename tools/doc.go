// Package tools implements sidekick's fixed capability set and the machinery
// around it: the closed tool registry, the executor that validates and runs
// model-issued tool calls, the undo log for file-mutating effects, and output
// truncation.
//
// The registry declares exactly four tools: run_command, read_file,
// write_file, and update_file. Mutating tools (everything except read_file)
// pass through a confirmation gate before executing unless the session runs
// in yolo mode. Every failure a tool can produce is categorized by an ErrKind
// so the model can self-correct, and file mutations record UndoEntry
// snapshots so a whole turn's effects can be reverted as one batch.
package tools
