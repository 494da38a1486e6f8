package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rankforge/rankforge/internal/store"
)

func validResearch() store.ResearchData {
	return store.ResearchData{
		Audience:     "indie founders",
		Niche:        "seo tooling",
		CoreKeywords: []string{"seo", "content", "keywords", "ranking", "audit"},
		Tone:         "practical",
		SiteMap:      []store.SiteMapPage{{URL: "https://example.com", Title: "Home"}},
	}
}

func validPlanItem() store.PlanItem {
	return store.PlanItem{
		Title:       "A Complete Guide To Something",
		MainKeyword: "guide",
		LSIKeywords: []string{"how to", "steps", "basics"},
		WordCount:   1500,
	}
}

func TestValidateResearchClean(t *testing.T) {
	require.Empty(t, validateResearch(validResearch()))
}

func TestValidateResearchKeywordBounds(t *testing.T) {
	research := validResearch()
	research.CoreKeywords = []string{"seo", "content", "ranking"}

	warnings := validateResearch(research)

	require.Len(t, warnings, 1)
	require.Equal(t, "core_keywords", warnings[0].Field)
}

func TestValidateResearchEmptyFields(t *testing.T) {
	warnings := validateResearch(store.ResearchData{})

	fields := make(map[string]bool)
	for _, w := range warnings {
		fields[w.Field] = true
	}
	for _, field := range []string{"audience", "niche", "tone", "core_keywords", "site_map"} {
		require.True(t, fields[field], field)
	}
}

func TestValidatePlanClean(t *testing.T) {
	require.Empty(t, validatePlan([]store.PlanItem{validPlanItem()}))
}

func TestValidatePlanItemBounds(t *testing.T) {
	item := validPlanItem()
	item.Title = "Short"
	item.MainKeyword = ""
	item.LSIKeywords = []string{"one"}
	item.WordCount = 800

	warnings := validatePlan([]store.PlanItem{item})

	require.Len(t, warnings, 4)
	require.Equal(t, "plan[0].title", warnings[0].Field)
	require.Equal(t, "plan[0].main_keyword", warnings[1].Field)
	require.Equal(t, "plan[0].lsi_keywords", warnings[2].Field)
	require.Equal(t, "plan[0].word_count", warnings[3].Field)
}

func TestValidatePlanEmpty(t *testing.T) {
	warnings := validatePlan(nil)

	require.Len(t, warnings, 1)
	require.Equal(t, "plan", warnings[0].Field)
}

func TestValidateRevision(t *testing.T) {
	require.Empty(t, validateRevision("a fine answer"))
	require.Len(t, validateRevision(""), 1)
}
