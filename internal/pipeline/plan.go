package pipeline

import (
	"context"
	"fmt"

	"github.com/rankforge/rankforge/internal/llm"
	"github.com/rankforge/rankforge/internal/store"
)

type planEnvelope struct {
	Plan []store.PlanItem `json:"plan"`
}

// runPlan produces the initial content plan from a research report. A missing
// or empty plan array is logged as a validation warning and flows on as an
// empty plan; only the LLM call itself can fail the stage.
func runPlan(ctx context.Context, caller *llm.Caller, research store.ResearchData) ([]store.PlanItem, error) {
	prompt := buildPlanPrompt(research)

	var envelope planEnvelope
	if err := caller.CompleteJSON(ctx, strategistPersona, prompt, llm.ProfilePlanning, &envelope); err != nil {
		return nil, fmt.Errorf("plan completion: %w", err)
	}

	logWarnings("plan", validatePlan(envelope.Plan))
	if envelope.Plan == nil {
		return []store.PlanItem{}, nil
	}
	return envelope.Plan, nil
}
