package pipeline

import (
	"context"
	"fmt"

	"github.com/rankforge/rankforge/internal/llm"
	"github.com/rankforge/rankforge/internal/store"
)

// ReviseResult carries the assistant's reply plus an explicit plan signal:
// PlanUpdate nil means the plan is unchanged, non-nil means replace it.
type ReviseResult struct {
	Answer     string
	PlanUpdate []store.PlanItem
}

type reviseEnvelope struct {
	Answer string           `json:"answer"`
	Plan   []store.PlanItem `json:"plan"`
}

// runRevise answers a user message against the current plan. The model's
// empty-array convention for "no change" is translated into a nil PlanUpdate
// here so callers never have to compare plans. An empty answer is a logged
// validation warning, not a failure.
func runRevise(ctx context.Context, caller *llm.Caller, research store.ResearchData, plan []store.PlanItem, userMessage string, history []store.ChatMessage) (*ReviseResult, error) {
	prompt := buildRevisePrompt(research, plan, userMessage, history)

	var envelope reviseEnvelope
	if err := caller.CompleteJSON(ctx, strategistPersona, prompt, llm.ProfileChat, &envelope); err != nil {
		return nil, fmt.Errorf("revise completion: %w", err)
	}

	logWarnings("revise", validateRevision(envelope.Answer))

	result := &ReviseResult{Answer: envelope.Answer}
	if len(envelope.Plan) > 0 {
		logWarnings("revise", validatePlan(envelope.Plan))
		result.PlanUpdate = envelope.Plan
	}
	return result, nil
}
