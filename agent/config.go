package agent

// Config holds the per-session run configuration, read once at session
// start.
type Config struct {
	Model         string // catalog model id or alias
	MaxSteps      int    // model-call bound per turn
	Yolo          bool   // disable the tool confirmation gate
	WorkDir       string // session working directory
	GuideFile     string // project instructions file loaded into the system prompt
	Instructions  string // extra user instructions appended to the system prompt
	LoopDetection bool
	LoopWindow    int // tool calls examined for repeating patterns
}

// DefaultConfig returns the stock session configuration.
func DefaultConfig() Config {
	return Config{
		Model:         "claude-sonnet-4-5",
		MaxSteps:      50,
		GuideFile:     "SIDEKICK.md",
		LoopDetection: true,
		LoopWindow:    6,
	}
}
