package orchestrator

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rankforge/rankforge/internal/store"
)

// Headline is one plan item reduced to its UI shape: title plus a difficulty
// and volume label derived from the target word count.
type Headline struct {
	Title      string `json:"title"`
	Difficulty string `json:"difficulty"`
	Volume     string `json:"volume"`
}

// WebsiteSummary is the site overview shown once analysis completes.
type WebsiteSummary struct {
	Domain    string     `json:"domain"`
	About     string     `json:"about"`
	Features  []string   `json:"features"`
	Headlines []Headline `json:"headlines"`
	BlogFocus string     `json:"blog_focus"`
}

func BuildSummary(session *store.Session) WebsiteSummary {
	summary := WebsiteSummary{Domain: domainOf(session.URL)}
	if session.Research != nil {
		summary.About = fmt.Sprintf("%s for %s", session.Research.Niche, session.Research.Audience)
		summary.Features = append(summary.Features, session.Research.CoreKeywords...)
		summary.BlogFocus = session.Research.Tone
	}
	for _, item := range session.Plan {
		summary.Headlines = append(summary.Headlines, Headline{
			Title:      item.Title,
			Difficulty: difficultyOf(item.WordCount),
			Volume:     volumeOf(item.WordCount),
		})
	}
	return summary
}

// Render formats the full summary for a chat reply.
func (s WebsiteSummary) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Site: %s\n", s.Domain)
	if s.About != "" {
		fmt.Fprintf(&b, "About: %s\n", s.About)
	}
	if len(s.Features) > 0 {
		fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(s.Features, ", "))
	}
	b.WriteString("\nProposed articles:\n")
	b.WriteString(s.RenderHeadlines())
	return strings.TrimRight(b.String(), "\n")
}

// RenderHeadlines formats only the plan list.
func (s WebsiteSummary) RenderHeadlines() string {
	var b strings.Builder
	for i, h := range s.Headlines {
		fmt.Fprintf(&b, "%d. %s (difficulty: %s, %s)\n", i+1, h.Title, h.Difficulty, h.Volume)
	}
	return strings.TrimRight(b.String(), "\n")
}

func domainOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	return strings.TrimPrefix(parsed.Host, "www.")
}

func difficultyOf(wordCount int) string {
	switch {
	case wordCount < 1500:
		return "low"
	case wordCount <= 3000:
		return "medium"
	default:
		return "high"
	}
}

func volumeOf(wordCount int) string {
	return fmt.Sprintf("%.1fk words", float64(wordCount)/1000)
}
