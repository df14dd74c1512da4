// Package config loads the sidekick configuration file and resolves
// provider credentials from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is the on-disk configuration, read from ~/.config/sidekick.yaml by
// default. Zero values fall back to defaults at load time.
type File struct {
	Provider     string `yaml:"provider"`
	Model        string `yaml:"model"`
	MaxSteps     int    `yaml:"max_steps"`
	Yolo         bool   `yaml:"yolo"`
	GuideFile    string `yaml:"guide_file"`
	Instructions string `yaml:"instructions"`
	LogLevel     string `yaml:"log_level"`

	// ToolIgnore lists tools pre-approved for every session, skipping the
	// confirmation prompt.
	ToolIgnore []string `yaml:"tool_ignore"`

	// APIKeys holds per-provider credentials. Environment variables take
	// precedence.
	APIKeys map[string]string `yaml:"api_keys"`

	// CommandTimeoutSeconds caps each run_command invocation.
	CommandTimeoutSeconds int `yaml:"command_timeout_seconds"`
}

// Default returns the stock configuration.
func Default() File {
	return File{
		Provider:              "anthropic",
		Model:                 "claude-sonnet-4-5",
		MaxSteps:              50,
		GuideFile:             "SIDEKICK.md",
		LogLevel:              "warn",
		CommandTimeoutSeconds: 10,
	}
}

// DefaultPath returns the standard config file location.
func DefaultPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "sidekick.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "sidekick.yaml")
}

// Load reads the config file at path, layering it over the defaults. A
// missing file is not an error; the defaults are returned. An empty path
// means DefaultPath.
func Load(path string) (File, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg.normalize(), nil
}

// normalize re-applies defaults for fields the file zeroed out.
func (f File) normalize() File {
	def := Default()
	if f.Provider == "" {
		f.Provider = def.Provider
	}
	if f.Model == "" {
		f.Model = def.Model
	}
	if f.MaxSteps <= 0 {
		f.MaxSteps = def.MaxSteps
	}
	if f.GuideFile == "" {
		f.GuideFile = def.GuideFile
	}
	if f.LogLevel == "" {
		f.LogLevel = def.LogLevel
	}
	if f.CommandTimeoutSeconds <= 0 {
		f.CommandTimeoutSeconds = def.CommandTimeoutSeconds
	}
	if f.CommandTimeoutSeconds > 600 {
		f.CommandTimeoutSeconds = 600
	}
	return f
}

// apiKeyEnv maps a provider to its credential environment variable.
var apiKeyEnv = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"gemini":    "GEMINI_API_KEY",
}

// APIKey resolves the credential for provider: the environment variable
// first, then the config file's api_keys map. The variable name is reported
// in the error path so the user knows what to set.
func (f File) APIKey(provider string) (string, error) {
	provider = strings.ToLower(provider)
	envVar, ok := apiKeyEnv[provider]
	if !ok {
		return "", fmt.Errorf("unknown provider %q (known: anthropic, openai, gemini)", provider)
	}
	if key := os.Getenv(envVar); key != "" {
		return key, nil
	}
	if key := f.APIKeys[provider]; key != "" {
		return key, nil
	}
	return "", fmt.Errorf("%s is not set; export it (or add api_keys.%s to the config) to use the %s provider",
		envVar, provider, provider)
}
