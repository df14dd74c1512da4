package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/teilomillet/gollm"
)

// GollmClient implements Client on top of a gollm.LLM instance.
type GollmClient struct {
	provider string
	model    string
	llm      gollm.LLM
	retry    RetryPolicy
}

// GollmOption configures a GollmClient.
type GollmOption func(*gollmConfig)

type gollmConfig struct {
	apiKey      string
	maxTokens   int
	temperature float64
	retry       RetryPolicy
	extra       []gollm.ConfigOption
}

// WithAPIKey sets the provider API key. When empty, gollm falls back to its
// provider-specific environment variables.
func WithAPIKey(key string) GollmOption {
	return func(c *gollmConfig) { c.apiKey = key }
}

// WithMaxTokens sets the response token cap.
func WithMaxTokens(n int) GollmOption {
	return func(c *gollmConfig) { c.maxTokens = n }
}

// WithRetryPolicy overrides the default transport retry policy.
func WithRetryPolicy(p RetryPolicy) GollmOption {
	return func(c *gollmConfig) { c.retry = p }
}

// WithGollmOptions appends raw gollm configuration options.
func WithGollmOptions(opts ...gollm.ConfigOption) GollmOption {
	return func(c *gollmConfig) { c.extra = append(c.extra, opts...) }
}

// NewGollmClient builds a Client for the given provider and model.
func NewGollmClient(provider, model string, opts ...GollmOption) (*GollmClient, error) {
	cfg := &gollmConfig{
		maxTokens:   8192,
		temperature: 0.7,
		retry:       DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if model == "" {
		if info := DefaultModel(provider); info != nil {
			model = info.ID
		} else {
			return nil, fmt.Errorf("no model given and no catalog default for provider %q", provider)
		}
	}

	gollmOpts := []gollm.ConfigOption{
		gollm.SetProvider(provider),
		gollm.SetModel(model),
		gollm.SetMaxTokens(cfg.maxTokens),
		gollm.SetTemperature(cfg.temperature),
		gollm.SetMaxRetries(0), // retries are handled by Retry below
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if cfg.apiKey != "" {
		gollmOpts = append(gollmOpts, gollm.SetAPIKey(cfg.apiKey))
	}
	gollmOpts = append(gollmOpts, cfg.extra...)

	instance, err := gollm.NewLLM(gollmOpts...)
	if err != nil {
		return nil, fmt.Errorf("create gollm LLM for provider %s: %w", provider, err)
	}

	return &GollmClient{
		provider: provider,
		model:    model,
		llm:      instance,
		retry:    cfg.retry,
	}, nil
}

// Provider returns the provider identifier this client talks to.
func (c *GollmClient) Provider() string { return c.provider }

// SetModel switches the model used for subsequent requests.
func (c *GollmClient) SetModel(model string) {
	c.model = model
	c.llm.SetOption("model", model)
}

// Complete sends the request and returns the parsed response. Retryable
// failures are retried per the client's policy before surfacing.
func (c *GollmClient) Complete(ctx context.Context, req Request) (*Response, error) {
	prompt := c.buildPrompt(req)
	if req.Model != "" && req.Model != c.model {
		c.SetModel(req.Model)
	}

	text, err := Retry(ctx, c.retry, func(ctx context.Context) (string, error) {
		out, genErr := c.llm.Generate(ctx, prompt)
		if genErr != nil {
			return "", classifyError(c.provider, genErr)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	calls := parseToolCalls(text)
	return &Response{
		ID:        "resp_" + uuid.New().String()[:8],
		Model:     c.model,
		Text:      stripToolCallJSON(text, calls),
		ToolCalls: calls,
		// gollm does not expose provider usage counters, so approximate
		// from text length. 4 chars/token is the usual rule of thumb.
		Usage: Usage{
			InputTokens:  estimateRequestTokens(req),
			OutputTokens: len(text) / 4,
		},
	}, nil
}

// buildPrompt flattens the unified request into a gollm prompt. gollm takes a
// single prompt string plus a system prompt, so prior turns are rendered as
// labeled transcript lines.
func (c *GollmClient) buildPrompt(req Request) *gollm.Prompt {
	var system strings.Builder
	var transcript []string

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			system.WriteString(msg.Text)
			system.WriteString("\n")
		case RoleUser:
			transcript = append(transcript, msg.Text)
		case RoleAssistant:
			if msg.Text != "" {
				transcript = append(transcript, "[Assistant]: "+msg.Text)
			}
			for _, call := range msg.ToolCalls {
				transcript = append(transcript,
					fmt.Sprintf("[Assistant called %s(%s)]", call.Name, string(call.Arguments)))
			}
		case RoleTool:
			if msg.ToolReturn == nil {
				continue
			}
			label := "[Tool Result]"
			if msg.ToolReturn.IsError {
				label = "[Tool Error]"
			}
			transcript = append(transcript, label+": "+msg.ToolReturn.Content)
		}
	}

	promptText := strings.Join(transcript, "\n")
	if promptText == "" {
		promptText = "Hello"
	}

	opts := []gollm.PromptOption{}
	if system.Len() > 0 {
		opts = append(opts, gollm.WithSystemPrompt(strings.TrimSpace(system.String()), gollm.CacheTypeEphemeral))
	}
	if len(req.Tools) > 0 {
		tools := make([]gollm.Tool, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, gollm.Tool{
				Type: "function",
				Function: gollm.Function{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
		opts = append(opts, gollm.WithTools(tools))
		opts = append(opts, gollm.WithToolChoice("auto"))
	}

	return gollm.NewPrompt(promptText, opts...)
}

// toolCallMarkers are the JSON prefixes gollm emits when a model requests
// tool calls inside its text output.
var toolCallMarkers = []string{`{"tool_calls"`, `[{"name"`}

type rawToolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// parseToolCalls extracts tool call requests embedded as JSON in the
// generated text, either as a bare array or under a "tool_calls" key.
// Each call gets a fresh unique id.
func parseToolCalls(text string) []ToolCall {
	start := -1
	for _, marker := range toolCallMarkers {
		if idx := strings.Index(text, marker); idx != -1 {
			start = idx
			break
		}
	}
	if start == -1 {
		return nil
	}
	payload := []byte(text[start:])

	var raw []rawToolCall
	if err := json.Unmarshal(payload, &raw); err != nil {
		var wrapper struct {
			ToolCalls []rawToolCall `json:"tool_calls"`
		}
		if err := json.Unmarshal(payload, &wrapper); err != nil {
			return nil
		}
		raw = wrapper.ToolCalls
	}

	calls := make([]ToolCall, 0, len(raw))
	for _, rc := range raw {
		calls = append(calls, ToolCall{
			ID:        "call_" + uuid.New().String()[:8],
			Name:      rc.Name,
			Arguments: rc.Arguments,
		})
	}
	return calls
}

// stripToolCallJSON removes the parsed tool call JSON from the visible text.
func stripToolCallJSON(text string, calls []ToolCall) string {
	if len(calls) == 0 {
		return text
	}
	for _, marker := range toolCallMarkers {
		if idx := strings.Index(text, marker); idx != -1 {
			return strings.TrimSpace(text[:idx])
		}
	}
	return text
}

// estimateRequestTokens approximates the input token count of a request.
func estimateRequestTokens(req Request) int {
	total := 0
	for _, msg := range req.Messages {
		total += len(msg.Text) / 4
		if msg.ToolReturn != nil {
			total += len(msg.ToolReturn.Content) / 4
		}
		for _, call := range msg.ToolCalls {
			total += len(call.Arguments) / 4
		}
	}
	if total == 0 {
		total = 10
	}
	return total
}
