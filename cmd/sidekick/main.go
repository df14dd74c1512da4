// Command sidekick is an interactive terminal coding agent: it drives an
// LLM against a small set of file and shell tools in the current project.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	flag "github.com/spf13/pflag"

	"github.com/sidekick-cli/sidekick/agent"
	"github.com/sidekick-cli/sidekick/config"
	"github.com/sidekick-cli/sidekick/llm"
	"github.com/sidekick-cli/sidekick/repl"
	"github.com/sidekick-cli/sidekick/tools"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "sidekick:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath   = flag.String("config", "", "config file (default ~/.config/sidekick.yaml)")
		model        = flag.String("model", "", "model id or alias (see /model)")
		workdir      = flag.StringP("workdir", "C", "", "session working directory (default: cwd)")
		yolo         = flag.Bool("yolo", false, "run tools without confirmation")
		maxSteps     = flag.Int("max-steps", 0, "model call limit per turn")
		instructions = flag.String("instructions", "", "extra instructions appended to the system prompt")
		logLevel     = flag.String("log-level", "", "log level: debug, info, warn, error")
		listModels   = flag.Bool("list-models", false, "print the model catalog and exit")
	)
	flag.Parse()

	if *listModels {
		for _, m := range llm.ListModels("") {
			fmt.Printf("%-24s %s ($%.2f/$%.2f per Mtok)\n",
				m.ID, m.DisplayName, m.InputPerMTok, m.OutputPerMTok)
		}
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *model != "" {
		cfg.Model = *model
	}
	if *maxSteps > 0 {
		cfg.MaxSteps = *maxSteps
	}
	if *yolo {
		cfg.Yolo = true
	}
	if *instructions != "" {
		cfg.Instructions = *instructions
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	info := llm.LookupModel(cfg.Model)
	if info == nil {
		return fmt.Errorf("unknown model %q; run with --list-models", cfg.Model)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	dir := *workdir
	if dir == "" {
		if dir, err = os.Getwd(); err != nil {
			return fmt.Errorf("resolve working directory: %w", err)
		}
	}
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		return fmt.Errorf("working directory %s is not a directory", dir)
	}

	apiKey, err := cfg.APIKey(info.Provider)
	if err != nil {
		return err
	}

	client, err := llm.NewGollmClient(info.Provider, info.ID, llm.WithAPIKey(apiKey))
	if err != nil {
		return err
	}

	stdin := bufio.NewReader(os.Stdin)
	undo := tools.NewUndoLog()
	execCfg := tools.DefaultExecutorConfig(dir)
	execCfg.Yolo = cfg.Yolo
	execCfg.CommandTimeout = time.Duration(cfg.CommandTimeoutSeconds) * time.Second
	execCfg.SkipConfirm = cfg.ToolIgnore
	exec := tools.NewExecutor(tools.NewRegistry(), undo,
		repl.NewTerminalConfirmer(stdin, os.Stdout), execCfg)

	sess := agent.NewSession(client, exec, undo, agent.Config{
		Model:         info.ID,
		MaxSteps:      cfg.MaxSteps,
		Yolo:          cfg.Yolo,
		WorkDir:       dir,
		GuideFile:     cfg.GuideFile,
		Instructions:  cfg.Instructions,
		LoopDetection: true,
		LoopWindow:    6,
	})
	defer sess.Close()

	ui, err := repl.New(sess, stdin, os.Stdout, logger)
	if err != nil {
		return err
	}
	return ui.Run(context.Background())
}

// newLogger builds the tinted stderr logger.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelWarn
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      lvl,
		TimeFormat: time.Kitchen,
	}))
}
