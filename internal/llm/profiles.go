package llm

// Profile is a named sampling configuration. The structured stages run cool
// for more deterministic JSON; content generation runs warmer and carries the
// largest token budget.
type Profile struct {
	Temperature     float32
	TopP            float32
	ReasoningEffort string
	MaxTokens       int
}

var (
	ProfileResearch = Profile{Temperature: 0.3, TopP: 0.9, ReasoningEffort: "medium", MaxTokens: 2048}
	ProfilePlanning = Profile{Temperature: 0.4, TopP: 0.9, ReasoningEffort: "medium", MaxTokens: 2048}
	ProfileContent  = Profile{Temperature: 0.7, TopP: 0.95, ReasoningEffort: "high", MaxTokens: 4096}
	ProfileChat     = Profile{Temperature: 0.5, TopP: 0.9, ReasoningEffort: "low", MaxTokens: 1024}
)
