package llm

import (
	"context"
	"fmt"

	"github.com/rankforge/rankforge/internal/jsonutil"
)

// FinishReasonLength marks a completion cut off by the token budget.
const FinishReasonLength = "length"

// Caller wraps a provider with the two call shapes the pipeline needs: a
// JSON-object-constrained completion parsed into a struct, and a plain text
// completion that reports its finish reason.
type Caller struct {
	provider Provider
}

func NewCaller(provider Provider) *Caller {
	return &Caller{provider: provider}
}

func (c *Caller) Provider() Provider {
	return c.provider
}

// CompleteJSON sends persona+prompt with a json_object response format and
// unmarshals the extracted JSON object into out.
func (c *Caller) CompleteJSON(ctx context.Context, persona string, prompt string, profile Profile, out any) error {
	messages := buildMessages(persona, prompt)
	resp, err := c.provider.Complete(ctx, Request{
		Messages:        messages,
		JSONObject:      true,
		Temperature:     profile.Temperature,
		TopP:            profile.TopP,
		ReasoningEffort: profile.ReasoningEffort,
		MaxTokens:       profile.MaxTokens,
	})
	if err != nil {
		return err
	}
	if err := jsonutil.ExtractInto(resp.Content, out); err != nil {
		return fmt.Errorf("parse structured response: %w", err)
	}
	return nil
}

// CompleteText sends persona+prompt without a format constraint. maxTokens
// overrides the profile budget when positive.
func (c *Caller) CompleteText(ctx context.Context, persona string, prompt string, profile Profile, maxTokens int) (string, string, error) {
	if maxTokens <= 0 {
		maxTokens = profile.MaxTokens
	}
	messages := buildMessages(persona, prompt)
	resp, err := c.provider.Complete(ctx, Request{
		Messages:        messages,
		Temperature:     profile.Temperature,
		TopP:            profile.TopP,
		ReasoningEffort: profile.ReasoningEffort,
		MaxTokens:       maxTokens,
	})
	if err != nil {
		return "", "", err
	}
	return resp.Content, resp.FinishReason, nil
}

func buildMessages(persona string, prompt string) []Message {
	if persona == "" {
		return []Message{{Role: "user", Content: prompt}}
	}
	return []Message{
		{Role: "system", Content: persona},
		{Role: "user", Content: prompt},
	}
}
