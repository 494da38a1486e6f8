package pipeline

import (
	"fmt"
	"log"

	"github.com/rankforge/rankforge/internal/store"
)

// Validation here is advisory: a violated bound produces a Warning, never an
// error, and the unvalidated payload flows on. Callers that want strictness
// can reject on a non-empty warning slice.
type Warning struct {
	Field  string
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Field, w.Reason)
}

const (
	minCoreKeywords = 5
	maxCoreKeywords = 12
	minPlanItems    = 1
	maxPlanItems    = 10
	minTitleChars   = 10
	minLSIKeywords  = 3
	maxLSIKeywords  = 8
	minItemWords    = 1000
	maxItemWords    = 5000
)

func validateResearch(research store.ResearchData) []Warning {
	warnings := []Warning{}
	if research.Audience == "" {
		warnings = append(warnings, Warning{Field: "audience", Reason: "empty"})
	}
	if research.Niche == "" {
		warnings = append(warnings, Warning{Field: "niche", Reason: "empty"})
	}
	if research.Tone == "" {
		warnings = append(warnings, Warning{Field: "tone", Reason: "empty"})
	}
	if n := len(research.CoreKeywords); n < minCoreKeywords || n > maxCoreKeywords {
		warnings = append(warnings, Warning{
			Field:  "core_keywords",
			Reason: fmt.Sprintf("count %d outside [%d,%d]", n, minCoreKeywords, maxCoreKeywords),
		})
	}
	if len(research.SiteMap) == 0 {
		warnings = append(warnings, Warning{Field: "site_map", Reason: "empty"})
	}
	return warnings
}

func validatePlan(plan []store.PlanItem) []Warning {
	warnings := []Warning{}
	if n := len(plan); n < minPlanItems || n > maxPlanItems {
		warnings = append(warnings, Warning{
			Field:  "plan",
			Reason: fmt.Sprintf("item count %d outside [%d,%d]", n, minPlanItems, maxPlanItems),
		})
	}
	for i, item := range plan {
		prefix := fmt.Sprintf("plan[%d]", i)
		if len(item.Title) < minTitleChars {
			warnings = append(warnings, Warning{
				Field:  prefix + ".title",
				Reason: fmt.Sprintf("length %d below %d", len(item.Title), minTitleChars),
			})
		}
		if item.MainKeyword == "" {
			warnings = append(warnings, Warning{Field: prefix + ".main_keyword", Reason: "empty"})
		}
		if n := len(item.LSIKeywords); n < minLSIKeywords || n > maxLSIKeywords {
			warnings = append(warnings, Warning{
				Field:  prefix + ".lsi_keywords",
				Reason: fmt.Sprintf("count %d outside [%d,%d]", n, minLSIKeywords, maxLSIKeywords),
			})
		}
		if item.WordCount < minItemWords || item.WordCount > maxItemWords {
			warnings = append(warnings, Warning{
				Field:  prefix + ".word_count",
				Reason: fmt.Sprintf("%d outside [%d,%d]", item.WordCount, minItemWords, maxItemWords),
			})
		}
	}
	return warnings
}

func validateRevision(answer string) []Warning {
	if answer == "" {
		return []Warning{{Field: "answer", Reason: "empty"}}
	}
	return nil
}

func logWarnings(stage string, warnings []Warning) {
	for _, warning := range warnings {
		log.Printf("%s: validation warning: %s", stage, warning)
	}
}
