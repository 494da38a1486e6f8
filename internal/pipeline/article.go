package pipeline

import (
	"context"
	"log"
	"strings"

	"github.com/rankforge/rankforge/internal/llm"
	"github.com/rankforge/rankforge/internal/store"
)

const (
	defaultArticleWords = 1500
	tokensPerWord       = 2
	tokenPadding        = 600
)

// Limits bounds article generation. Zero values fall back to the defaults
// used in config.Load.
type Limits struct {
	MinWords int
	MinChars int
	TokenCap int
}

func (l Limits) withDefaults() Limits {
	if l.MinWords <= 0 {
		l.MinWords = 500
	}
	if l.MinChars <= 0 {
		l.MinChars = 100
	}
	if l.TokenCap <= 0 {
		l.TokenCap = 8192
	}
	return l
}

// Draft is a generated article before persistence.
type Draft struct {
	Title     string
	Content   string
	Keywords  []string
	WordCount int
}

// runArticle writes one long-form article for a plan item. A truncated
// completion is kept as long as it clears the length floor; only empty or
// stub output is treated as a failure.
func runArticle(ctx context.Context, caller *llm.Caller, item store.PlanItem, research store.ResearchData, limits Limits) (*Draft, error) {
	limits = limits.withDefaults()

	wordCount := item.WordCount
	if wordCount <= 0 {
		wordCount = defaultArticleWords
	}
	tokenBudget := wordCount*tokensPerWord + tokenPadding
	if tokenBudget > limits.TokenCap {
		tokenBudget = limits.TokenCap
	}

	keywords := append([]string{item.MainKeyword}, item.LSIKeywords...)
	prompt := buildArticlePrompt(item.Title, keywords, wordCount, research)

	content, finishReason, err := caller.CompleteText(ctx, writerPersona, prompt, llm.ProfileContent, tokenBudget)
	if err != nil {
		return nil, &ArticleGenerationError{Topic: item.Title, Reason: "completion failed", Err: err}
	}
	if finishReason == llm.FinishReasonLength {
		log.Printf("article: completion for %q hit the token budget (%d), keeping truncated output", item.Title, tokenBudget)
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, &ArticleGenerationError{Topic: item.Title, Reason: "model returned empty content"}
	}
	if len(content) < limits.MinChars {
		return nil, &ArticleGenerationError{Topic: item.Title, Reason: "model returned a stub"}
	}

	audit := auditMarkdown(content)
	if audit.WordCount < limits.MinWords {
		return nil, &ArticleGenerationError{Topic: item.Title, Reason: "article too short"}
	}

	var warnings []Warning
	if !audit.HasH1 {
		warnings = append(warnings, Warning{Field: "structure", Reason: "missing H1 title"})
	}
	warnings = append(warnings, auditLinks(audit.Links, research.SiteMap)...)
	logWarnings("article", warnings)

	return &Draft{
		Title:     item.Title,
		Content:   content,
		Keywords:  keywords,
		WordCount: audit.WordCount,
	}, nil
}
