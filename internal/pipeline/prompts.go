package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rankforge/rankforge/internal/store"
)

const (
	strategistPersona = "You are a professional SEO content strategist."
	writerPersona     = "You are a professional SEO writer specializing in high-authority guides."
)

// The site map is produced by the extractor and echoed back verbatim through
// the prompt so the model never invents URLs.
func buildResearchPrompt(researchInput string, siteMap []store.SiteMapPage) string {
	siteMapJSON, _ := json.Marshal(siteMap)
	return fmt.Sprintf(`Analyze the following website data and provide a comprehensive research report in JSON format.
Focus on:
1. Target Audience: Who is this site for?
2. Niche/Industry: What is the specific market?
3. Core Keywords: 8 primary keywords the site is (or should be) ranking for.
4. Content Tone: How should articles be written?
5. Internal Link Hubs: A short list of the most important existing pages for internal linking.

Website Data:
%s

JSON Output Format:
{
    "audience": "...",
    "niche": "...",
    "core_keywords": ["...", "..."],
    "tone": "...",
    "site_map": %s
}`, researchInput, siteMapJSON)
}

func buildPlanPrompt(research store.ResearchData) string {
	researchJSON, _ := json.Marshal(research)
	return fmt.Sprintf(`Based on this website research, generate a content plan of 5 high-potential SEO article topics.
Research Data: %s

Provide the plan in JSON format.
Each item must have:
- title: Catchy SEO title
- main_keyword: Primary target keyword
- lsi_keywords: Array of 3-5 sub-keywords
- word_count: Recommended word count (1500-3000)

JSON Output Format:
{
    "plan": [
        { "title": "...", "main_keyword": "...", "lsi_keywords": ["...", "..."], "word_count": 2500 },
        ...
    ]
}`, researchJSON)
}

func buildRevisePrompt(research store.ResearchData, plan []store.PlanItem, userMessage string, history []store.ChatMessage) string {
	researchJSON, _ := json.Marshal(research)
	planJSON, _ := json.Marshal(plan)

	historyLines := make([]string, 0, len(history))
	for _, msg := range history {
		historyLines = append(historyLines, fmt.Sprintf("%s: %s", strings.ToUpper(msg.Role), msg.Content))
	}

	return fmt.Sprintf(`Below is the website research, the current content plan, and our conversation history.

RESEARCH DATA:
%s

CURRENT PLAN:
%s

CHAT HISTORY:
%s

USER MESSAGE:
"%s"

YOUR TASK:
1. Answer the user's message naturally. If they ask a question, answer it based on the research. Keep the answer short and to the point.
2. If the user requests changes to the content plan (add, remove, modify topics), update the plan accordingly.
3. If they don't ask for plan changes, only return the answer and do not update plan at all.

OUTPUT FORMAT:
You MUST return ONLY a valid JSON object with two fields:
- "answer": Your natural language response to the user.
- "plan": The (potentially updated) list of 5-8 content plan items. If no changes, return empty array.

JSON Structure:

For plan changes:
{
    "answer": "...",
    "plan": [
        { "title": "...", "main_keyword": "...", "lsi_keywords": ["...", "..."], "word_count": 2500 },
        ...
    ]
}

For only general queries:
{
    "answer": "...",
    "plan": []
}`, researchJSON, planJSON, strings.Join(historyLines, "\n"), userMessage)
}

func buildArticlePrompt(topic string, keywords []string, wordCount int, research store.ResearchData) string {
	siteMapLines := make([]string, 0, len(research.SiteMap))
	for _, page := range research.SiteMap {
		siteMapLines = append(siteMapLines, fmt.Sprintf("- Title: %s | URL: %s", page.Title, page.URL))
	}
	researchContext := fmt.Sprintf(
		"Target Audience: %s\nTone: %s\nInternal Linking Hub (Site Map): %s\n",
		research.Audience, research.Tone, strings.Join(siteMapLines, "\n"),
	)

	return fmt.Sprintf(`## ROLE
You are a senior SEO strategist and authoritative content writer. Write a high-ranking, original, long-form blog article in clean, valid Markdown.

## TOPIC
"%s"

## STRATEGIC CONTEXT
%s

## ARTICLE REQUIREMENTS
- Length: Up to %d words (do not exceed).
- Audience-focused, expert-level, practical, and trustworthy (E-E-A-T).
- Natural flow with clear hierarchy using H1, H2, and H3 only.
- No filler, repetition, or generic sections.

## STRUCTURE (MANDATORY)
1. Meta Description (1-2 lines, include primary keyword)
2. # H1 Title (Primary keyword at the beginning, benefit-driven)
3. ## Introduction (problem + promise)
4. Multiple sections with supporting subsections where needed (Use markdown: ## for H2 headings and ### for H3 headings or further if necessary, only include a good catchy heading title). Avoid using numbering in headings.
5. ## Frequently Asked Questions (5-8 unique, search-intent-driven FAQs) in question and answer format, not bullets or list.
6. ## Conclusion (clear takeaway + next step)

Do NOT use generic headings like "Overview", "Section", "H2", "H3" or "Conclusion Summary".

## SEO RULES (STRICT)
- Naturally include these keywords where relevant: %s
- Avoid keyword stuffing.
- Use semantic variations and related terms.
- Prefer active voice.
- 75%% of sentences under 20 words.
- Embed at most ONE relevant YouTube video inside the blog for support.
    - Use this format: <iframe src="YOUTUBE_EMBED_URL"></iframe>
    - Place it after a relevant H2 section intro.
- Include 1-2 Markdown tables (comparisons, steps, or data) only when absolutely needed.
- Bullet or numbered lists only where they improve clarity.
- Avoid excessive tables or long lists.
- Use > blockquotes only for key insights or takeaways.
- Insert 2-4 contextual internal links from the provided site map within the blog in places where needed. Never mention the words "internal linking".
    - Only link to URLs from the site map.
    - Format: [Page Title](URL)
    - Place links naturally inside body paragraphs.
    - Do NOT link in H1.
    - Do NOT repeat the same links.

## FORMATTING RULES
- Use **bold** sparingly for emphasis.
- No emojis.
- No promotional fluff.
- No external links unless explicitly required.
- Output ONLY the final Markdown article.`, topic, researchContext, wordCount, strings.Join(keywords, ", "))
}
