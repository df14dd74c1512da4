package tools

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"
)

// NewRegistry returns the registry holding sidekick's fixed capability set.
func NewRegistry() *Registry {
	r := NewEmptyRegistry()
	r.Register(runCommandSpec())
	r.Register(readFileSpec())
	r.Register(writeFileSpec())
	r.Register(updateFileSpec())
	return r
}

func runCommandSpec() Spec {
	return Spec{
		Name:        "run_command",
		Description: "Run a shell command in the working directory and return its combined stdout and stderr.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"command": map[string]interface{}{
					"type":        "string",
					"description": "The command to run.",
				},
			},
			"required": []string{"command"},
		},
		Required: []string{"command"},
		Mutating: true,
		Run:      runCommand,
	}
}

func readFileSpec() Spec {
	return Spec{
		Name:        "read_file",
		Description: "Read the full text content of a file.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"filepath": map[string]interface{}{
					"type":        "string",
					"description": "Path to the file to read.",
				},
			},
			"required": []string{"filepath"},
		},
		Required: []string{"filepath"},
		Run:      readFile,
	}
}

func writeFileSpec() Spec {
	return Spec{
		Name: "write_file",
		Description: "Write content to a new file. Fails if the file already exists; " +
			"use update_file to modify existing files.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"filepath": map[string]interface{}{
					"type":        "string",
					"description": "Path of the file to create.",
				},
				"content": map[string]interface{}{
					"type":        "string",
					"description": "Full content to write.",
				},
			},
			"required": []string{"filepath", "content"},
		},
		Required: []string{"filepath", "content"},
		Mutating: true,
		Run:      writeFile,
	}
}

func updateFileSpec() Spec {
	return Spec{
		Name: "update_file",
		Description: "Replace one exact occurrence of target text in an existing file with patch text. " +
			"The target must appear exactly once.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"filepath": map[string]interface{}{
					"type":        "string",
					"description": "Path to the file to update.",
				},
				"target": map[string]interface{}{
					"type":        "string",
					"description": "Exact text to find in the file.",
				},
				"patch": map[string]interface{}{
					"type":        "string",
					"description": "Replacement text.",
				},
			},
			"required": []string{"filepath", "target", "patch"},
		},
		Required: []string{"filepath", "target", "patch"},
		Mutating: true,
		Run:      updateFile,
	}
}

// sensitiveEnvSuffixes are excluded from child process environments.
var sensitiveEnvSuffixes = []string{
	"_API_KEY", "_SECRET", "_TOKEN", "_PASSWORD", "_CREDENTIAL",
}

// safeEnvVars are always passed through regardless of suffix.
var safeEnvVars = map[string]bool{
	"PATH": true, "HOME": true, "USER": true, "SHELL": true,
	"LANG": true, "TERM": true, "TMPDIR": true,
	"GOPATH": true, "GOROOT": true,
	"XDG_CONFIG_HOME": true, "XDG_DATA_HOME": true, "XDG_CACHE_HOME": true,
}

func isSensitiveEnvVar(name string) bool {
	upper := strings.ToUpper(name)
	for _, suffix := range sensitiveEnvSuffixes {
		if strings.HasSuffix(upper, suffix) {
			return true
		}
	}
	return false
}

func filteredEnviron() []string {
	var out []string
	for _, kv := range os.Environ() {
		name, _, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if safeEnvVars[name] || !isSensitiveEnvVar(name) {
			out = append(out, kv)
		}
	}
	return out
}

func runCommand(ctx context.Context, ex *Executor, args Args) (string, error) {
	command, _ := args.String("command")
	if command == "" {
		return "", failf(KindInvalidArgs, "command must not be empty")
	}

	// The wall-clock cap is independent of caller cancellation.
	cmdCtx, cancel := context.WithTimeout(ctx, ex.cfg.CommandTimeout)
	defer cancel()

	shell, shellArg := "/bin/bash", "-c"
	if runtime.GOOS == "windows" {
		shell, shellArg = "cmd.exe", "/c"
	}

	cmd := exec.CommandContext(cmdCtx, shell, shellArg, command)
	cmd.Dir = ex.cfg.WorkDir
	cmd.Env = filteredEnviron()
	// Own process group so the whole tree dies on timeout.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	// Timeout must be checked before the ExitError assertion: the killed
	// shell dies by signal and surfaces as an ExitError too, which would
	// leave its process group running.
	timedOut := cmdCtx.Err() == context.DeadlineExceeded
	exitCode := 0
	if err != nil {
		switch {
		case timedOut:
			exitCode = -1
			if cmd.Process != nil {
				_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
			}
		case ctx.Err() != nil:
			return "", fmt.Errorf("command cancelled: %w", ctx.Err())
		default:
			exitErr, ok := err.(*exec.ExitError)
			if !ok {
				return "", failf(KindLaunchError, "command not found or failed to start: %v", err)
			}
			exitCode = exitErr.ExitCode()
		}
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		out = "No output."
	}
	errOut := strings.TrimSpace(stderr.String())
	if errOut == "" {
		errOut = "No errors."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "STDOUT:\n%s\n\nSTDERR:\n%s", out, errOut)
	if timedOut {
		fmt.Fprintf(&sb, "\n\n[Command timed out after %s. Partial output is shown above.]",
			ex.cfg.CommandTimeout)
	} else if exitCode != 0 {
		fmt.Fprintf(&sb, "\n\n[Exit code: %d after %dms]", exitCode, elapsed.Milliseconds())
	}
	return sb.String(), nil
}

func readFile(_ context.Context, ex *Executor, args Args) (string, error) {
	fp, _ := args.String("filepath")
	path := ex.resolvePath(fp)

	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		return "", failf(KindNotFound, "file not found: %s", fp)
	case err != nil:
		return "", failf(KindReadError, "cannot stat %s: %v", fp, err)
	case info.IsDir():
		return "", failf(KindNotAFile, "%s is a directory, not a file", fp)
	case info.Size() > ex.cfg.MaxReadBytes:
		return "", failf(KindReadError, "file %s is too large (%d bytes, limit %d); read it in pieces with run_command",
			fp, info.Size(), ex.cfg.MaxReadBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", failf(KindReadError, "cannot read %s: %v", fp, err)
	}
	if !utf8.Valid(data) {
		return "", failf(KindReadError, "file %s is not valid UTF-8 text", fp)
	}
	return string(data), nil
}

func writeFile(_ context.Context, ex *Executor, args Args) (string, error) {
	fp, _ := args.String("filepath")
	content, _ := args.String("content")
	path := ex.resolvePath(fp)

	if _, err := os.Stat(path); err == nil {
		return "", failf(KindAlreadyExists,
			"file %s already exists; use update_file to modify it or choose a different filepath", fp)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", failf(KindWriteError, "cannot create directory for %s: %v", fp, err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", failf(KindWriteError, "cannot write %s: %v", fp, err)
	}

	// Undo entry only after the write landed.
	ex.undo.Record(UndoEntry{Tool: "write_file", Path: path, Existed: false})
	return fmt.Sprintf("Successfully wrote to new file: %s", fp), nil
}

func updateFile(_ context.Context, ex *Executor, args Args) (string, error) {
	fp, _ := args.String("filepath")
	target, _ := args.String("target")
	patch, _ := args.String("patch")
	path := ex.resolvePath(fp)

	prior, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return "", failf(KindNotFound, "file not found: %s", fp)
	case err != nil:
		return "", failf(KindReadError, "cannot read %s: %v", fp, err)
	}

	content := string(prior)
	switch n := strings.Count(content, target); {
	case n == 0:
		return "", failf(KindTargetNotFound, "target text not found in %s", fp)
	case n > 1:
		return "", failf(KindAmbiguousTarget,
			"target text appears %d times in %s; provide a longer, unique target", n, fp)
	}

	updated := strings.Replace(content, target, patch, 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return "", failf(KindWriteError, "cannot write %s: %v", fp, err)
	}

	ex.undo.Record(UndoEntry{Tool: "update_file", Path: path, Prior: prior, Existed: true})
	return fmt.Sprintf("Updated %s (1 replacement)", fp), nil
}
