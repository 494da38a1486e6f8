package events

// Event types carried on the session stream.
const (
	TypeMessageAdded        = "message.added"
	TypePlanUpdated         = "plan.updated"
	TypeAnalysisCompleted   = "analysis.completed"
	TypeAnalysisFailed      = "analysis.failed"
	TypeGenerationProgress  = "generation.progress"
	TypeGenerationFailed    = "generation.failed"
	TypeGenerationCompleted = "generation.completed"
)
