package llm

import (
	"context"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request carries one chat-completion call. JSONObject constrains the model
// to emit a single JSON object; MaxTokens of zero means the profile default.
type Request struct {
	Messages        []Message
	JSONObject      bool
	Temperature     float32
	TopP            float32
	ReasoningEffort string
	MaxTokens       int
}

type Response struct {
	Content      string
	FinishReason string
}

type Provider interface {
	Name() string
	Model() string
	Complete(ctx context.Context, req Request) (Response, error)
}

type Config struct {
	Provider         string
	Model            string
	BaseURL          string
	OpenAIAPIKey     string
	DeepSeekAPIKey   string
	OpenRouterAPIKey string
}

// NewProvider builds a provider for the configured backend. Everything here
// speaks the OpenAI chat-completions dialect; the non-OpenAI backends only
// differ in base URL and key.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		}), nil
	case "deepseek":
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:  cfg.DeepSeekAPIKey,
			Model:   cfg.Model,
			BaseURL: defaultIfEmpty(cfg.BaseURL, "https://api.deepseek.com/v1"),
		}), nil
	case "openrouter":
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:  cfg.OpenRouterAPIKey,
			Model:   cfg.Model,
			BaseURL: defaultIfEmpty(cfg.BaseURL, "https://openrouter.ai/api/v1"),
		}), nil
	default:
		return nil, ErrUnsupportedProvider{Provider: cfg.Provider}
	}
}

func defaultIfEmpty(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
