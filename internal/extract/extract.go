// Package extract fetches a page plus a few same-host sub-pages and reduces
// them to the bounded plain text the research stage feeds to the model.
package extract

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rankforge/rankforge/internal/store"
)

var (
	titleRe   = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	metaRe    = regexp.MustCompile(`(?is)<meta[^>]+name=["']description["'][^>]*content=["']([^"']*)["']`)
	metaRevRe = regexp.MustCompile(`(?is)<meta[^>]+content=["']([^"']*)["'][^>]*name=["']description["']`)
	scriptRe  = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	paraRe    = regexp.MustCompile(`(?is)<p[^>]*>(.*?)</p>`)
	hrefRe    = regexp.MustCompile(`(?i)href=["']([^"'#]+)["']`)
	tagRe     = regexp.MustCompile(`<[^>]+>`)
	spaceRe   = regexp.MustCompile(`\s+`)
)

// Pages whose URL mentions one of these get crawled after the homepage.
var priorityKeywords = []string{"about", "pricing", "product", "service", "feature"}

type Page struct {
	URL             string
	Title           string
	MetaDescription string
	Paragraphs      []string
	BodyText        string
	InternalLinks   []string
}

// SiteCapture is the extractor's full output for one site: the deterministic
// site map plus the combined text sample handed to the research prompt.
type SiteCapture struct {
	Home          Page
	SiteMap       []store.SiteMapPage
	ResearchInput string
}

type Options struct {
	UserAgent   string
	MaxBody     int
	MaxLinks    int
	MaxSubPages int
	Client      *http.Client
}

type Extractor struct {
	client      *http.Client
	userAgent   string
	maxBody     int
	maxLinks    int
	maxSubPages int
}

func New(opts Options) *Extractor {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Extractor{
		client:      client,
		userAgent:   defaultIfZero(opts.UserAgent, "Mozilla/5.0"),
		maxBody:     defaultIfZeroInt(opts.MaxBody, 8000),
		maxLinks:    defaultIfZeroInt(opts.MaxLinks, 10),
		maxSubPages: defaultIfZeroInt(opts.MaxSubPages, 3),
	}
}

// Extract fetches one page and reduces it to title, meta description,
// paragraph text and deduplicated same-host links.
func (e *Extractor) Extract(ctx context.Context, pageURL string) (*Page, error) {
	rawHTML, err := e.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return e.parse(pageURL, rawHTML)
}

// Crawl runs Extract on the URL, then on up to maxSubPages priority sub-pages.
// Sub-page failures are skipped; a partial site map is acceptable.
func (e *Extractor) Crawl(ctx context.Context, pageURL string) (*SiteCapture, error) {
	home, err := e.Extract(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	capture := &SiteCapture{
		Home:    *home,
		SiteMap: []store.SiteMapPage{{URL: pageURL, Title: home.Title}},
	}

	subSamples := []string{}
	for _, subURL := range e.selectSubPages(home.InternalLinks) {
		sub, err := e.Extract(ctx, subURL)
		if err != nil {
			continue
		}
		title := sub.Title
		if title == "" {
			title = subURL
		}
		capture.SiteMap = append(capture.SiteMap, store.SiteMapPage{URL: subURL, Title: title})
		subSamples = append(subSamples, fmt.Sprintf("Page: %s\nContent: %s", title, joinParagraphs(sub.Paragraphs, 5)))
	}

	capture.ResearchInput = fmt.Sprintf(
		"Homepage Title: %s\nHomepage Description: %s\nHomepage Sample: %s\n\nSub-page Data:\n%s",
		home.Title,
		home.MetaDescription,
		truncate(joinParagraphs(home.Paragraphs, 10), 2000),
		strings.Join(subSamples, "\n"),
	)
	return capture, nil
}

func (e *Extractor) fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch %s: status %s", pageURL, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	return string(body), nil
}

func (e *Extractor) parse(pageURL string, rawHTML string) (*Page, error) {
	page := &Page{URL: pageURL}

	if match := titleRe.FindStringSubmatch(rawHTML); match != nil {
		page.Title = cleanText(match[1])
	}
	if match := metaRe.FindStringSubmatch(rawHTML); match != nil {
		page.MetaDescription = cleanText(match[1])
	} else if match := metaRevRe.FindStringSubmatch(rawHTML); match != nil {
		page.MetaDescription = cleanText(match[1])
	}

	stripped := scriptRe.ReplaceAllString(rawHTML, " ")
	for _, match := range paraRe.FindAllStringSubmatch(stripped, -1) {
		text := cleanText(match[1])
		if text != "" {
			page.Paragraphs = append(page.Paragraphs, text)
		}
	}
	page.BodyText = truncate(strings.Join(page.Paragraphs, " "), e.maxBody)
	page.InternalLinks = e.internalLinks(pageURL, rawHTML)
	return page, nil
}

// internalLinks keeps root-relative hrefs (resolved against the origin) and
// absolute hrefs on the same host, deduplicated and capped.
func (e *Extractor) internalLinks(pageURL string, rawHTML string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	origin := base.Scheme + "://" + base.Host

	seen := map[string]struct{}{}
	links := []string{}
	for _, match := range hrefRe.FindAllStringSubmatch(rawHTML, -1) {
		href := strings.TrimSpace(match[1])
		var resolved string
		switch {
		case strings.HasPrefix(href, "/"):
			resolved = origin + href
		case strings.Contains(href, base.Host):
			resolved = href
		default:
			continue
		}
		if resolved == pageURL || resolved == origin || resolved == origin+"/" {
			continue
		}
		if _, ok := seen[resolved]; ok {
			continue
		}
		seen[resolved] = struct{}{}
		links = append(links, resolved)
		if len(links) >= e.maxLinks {
			break
		}
	}
	return links
}

func (e *Extractor) selectSubPages(links []string) []string {
	selected := []string{}
	for _, link := range links {
		lower := strings.ToLower(link)
		for _, keyword := range priorityKeywords {
			if strings.Contains(lower, keyword) {
				selected = append(selected, link)
				break
			}
		}
		if len(selected) >= e.maxSubPages {
			break
		}
	}
	return selected
}

func cleanText(fragment string) string {
	text := tagRe.ReplaceAllString(fragment, " ")
	text = html.UnescapeString(text)
	return strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
}

func joinParagraphs(paragraphs []string, limit int) string {
	if len(paragraphs) > limit {
		paragraphs = paragraphs[:limit]
	}
	return strings.Join(paragraphs, " ")
}

// truncate cuts on a rune boundary so a multi-byte character straddling the
// limit never leaves invalid UTF-8 behind.
func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

func defaultIfZero(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func defaultIfZeroInt(value int, fallback int) int {
	if value == 0 {
		return fallback
	}
	return value
}
