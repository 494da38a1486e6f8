package pipeline

import (
	"context"
	"fmt"

	"github.com/rankforge/rankforge/internal/extract"
	"github.com/rankforge/rankforge/internal/llm"
	"github.com/rankforge/rankforge/internal/store"
)

// runResearch turns a site capture into a research report. The model echoes
// the crawled site map back through the JSON format; if it mangles or drops
// it, the crawled map wins.
func runResearch(ctx context.Context, caller *llm.Caller, capture *extract.SiteCapture) (*store.ResearchData, error) {
	prompt := buildResearchPrompt(capture.ResearchInput, capture.SiteMap)

	var research store.ResearchData
	if err := caller.CompleteJSON(ctx, strategistPersona, prompt, llm.ProfileResearch, &research); err != nil {
		return nil, fmt.Errorf("research completion: %w", err)
	}
	if len(research.SiteMap) == 0 {
		research.SiteMap = capture.SiteMap
	}

	logWarnings("research", validateResearch(research))
	return &research, nil
}
