package llm

// ModelInfo describes one entry in the built-in model catalog.
type ModelInfo struct {
	ID            string
	Provider      string
	DisplayName   string
	ContextWindow int
	InputPerMTok  float64 // USD per million input tokens
	OutputPerMTok float64 // USD per million output tokens
	Aliases       []string
}

// Cost estimates the dollar cost of the given usage on this model.
func (m ModelInfo) Cost(u Usage) float64 {
	return float64(u.InputTokens)/1e6*m.InputPerMTok +
		float64(u.OutputTokens)/1e6*m.OutputPerMTok
}

// Catalog is the built-in model catalog (February 2026).
var Catalog = []ModelInfo{
	{
		ID: "claude-opus-4-6", Provider: "anthropic", DisplayName: "Claude Opus 4.6",
		ContextWindow: 200000, InputPerMTok: 15.0, OutputPerMTok: 75.0,
		Aliases: []string{"opus", "claude-opus"},
	},
	{
		ID: "claude-sonnet-4-5", Provider: "anthropic", DisplayName: "Claude Sonnet 4.5",
		ContextWindow: 200000, InputPerMTok: 3.0, OutputPerMTok: 15.0,
		Aliases: []string{"sonnet", "claude-sonnet"},
	},
	{
		ID: "gpt-5.2", Provider: "openai", DisplayName: "GPT-5.2",
		ContextWindow: 1047576, InputPerMTok: 2.50, OutputPerMTok: 10.0,
		Aliases: []string{"gpt5"},
	},
	{
		ID: "gpt-5.2-mini", Provider: "openai", DisplayName: "GPT-5.2 Mini",
		ContextWindow: 1047576, InputPerMTok: 0.75, OutputPerMTok: 3.0,
		Aliases: []string{"gpt5-mini"},
	},
	{
		ID: "gemini-3-pro-preview", Provider: "gemini", DisplayName: "Gemini 3 Pro (Preview)",
		ContextWindow: 1048576, InputPerMTok: 1.25, OutputPerMTok: 5.0,
		Aliases: []string{"gemini-pro"},
	},
	{
		ID: "gemini-3-flash-preview", Provider: "gemini", DisplayName: "Gemini 3 Flash (Preview)",
		ContextWindow: 1048576, InputPerMTok: 0.15, OutputPerMTok: 0.60,
		Aliases: []string{"gemini-flash"},
	},
}

// LookupModel resolves a model identifier or alias to its catalog entry.
// Returns nil for unknown models.
func LookupModel(id string) *ModelInfo {
	for i := range Catalog {
		if Catalog[i].ID == id {
			return &Catalog[i]
		}
		for _, alias := range Catalog[i].Aliases {
			if alias == id {
				return &Catalog[i]
			}
		}
	}
	return nil
}

// ListModels returns catalog entries, optionally filtered by provider.
func ListModels(provider string) []ModelInfo {
	if provider == "" {
		out := make([]ModelInfo, len(Catalog))
		copy(out, Catalog)
		return out
	}
	var out []ModelInfo
	for _, m := range Catalog {
		if m.Provider == provider {
			out = append(out, m)
		}
	}
	return out
}

// DefaultModel returns the first catalog entry for a provider, or the overall
// first entry when provider is empty.
func DefaultModel(provider string) *ModelInfo {
	if provider == "" {
		return &Catalog[0]
	}
	for i := range Catalog {
		if Catalog[i].Provider == provider {
			return &Catalog[i]
		}
	}
	return nil
}
