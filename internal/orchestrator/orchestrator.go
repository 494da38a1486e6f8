// Package orchestrator drives the conversational flow: a URL in the first
// message triggers analysis, "proceed" triggers article generation for every
// plan item, anything else is routed to plan revision.
package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rankforge/rankforge/internal/events"
	"github.com/rankforge/rankforge/internal/pipeline"
	"github.com/rankforge/rankforge/internal/store"
)

type State string

const (
	StateIdle       State = "idle"
	StateAnalyzing  State = "analyzing"
	StatePlanReady  State = "plan_ready"
	StateGenerating State = "generating"
)

var urlRe = regexp.MustCompile(`(?i)\b(?:https?://\S+|(?:[a-z0-9](?:[a-z0-9-]*[a-z0-9])?\.)+[a-z]{2,}(?:/\S*)?)`)

// Conversation is one user's chat loop over one session. Stage work runs with
// the busy flag set and the lock released, so Busy stays readable mid-stage
// and a second message arriving mid-stage gets an immediate busy reply
// instead of racing the first.
type Conversation struct {
	mu        sync.Mutex
	svc       *pipeline.Service
	publisher *events.Publisher
	ownerID   string

	state      State
	session    *store.Session
	transcript []store.ChatMessage
	articles   []store.Article
	busy       bool
}

func NewConversation(svc *pipeline.Service, publisher *events.Publisher, ownerID string) *Conversation {
	return &Conversation{
		svc:       svc,
		publisher: publisher,
		ownerID:   ownerID,
		state:     StateIdle,
	}
}

// Resume attaches an existing session so a returning user continues where
// they left off.
func (c *Conversation) Resume(session *store.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = session
	c.transcript = append([]store.ChatMessage{}, session.ChatHistory...)
	if session.Research != nil && len(session.Plan) > 0 {
		c.state = StatePlanReady
	}
}

func (c *Conversation) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Busy reports whether a stage is currently producing output.
func (c *Conversation) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

func (c *Conversation) Transcript() []store.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]store.ChatMessage{}, c.transcript...)
}

// Articles returns the successes of the most recent generation run.
func (c *Conversation) Articles() []store.Article {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]store.Article{}, c.articles...)
}

func (c *Conversation) Session() *store.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Summary derives the UI-facing site overview from the current session.
func (c *Conversation) Summary() *WebsiteSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	summary := BuildSummary(c.session)
	return &summary
}

// HandleMessage routes one user message and returns the assistant messages it
// produced, already appended to the transcript.
func (c *Conversation) HandleMessage(ctx context.Context, text string) []store.ChatMessage {
	c.mu.Lock()
	if c.busy {
		msg := c.appendAssistant("I'm still working on the previous request, one moment.")
		c.mu.Unlock()
		return []store.ChatMessage{msg}
	}
	c.busy = true
	c.appendUser(text)
	state := c.state
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()

	switch state {
	case StateIdle:
		if url, ok := detectURL(text); ok {
			return c.analyze(ctx, url)
		}
		return []store.ChatMessage{c.reply("Send me a website URL and I'll research it and draft a content plan.")}
	case StatePlanReady:
		if isProceed(text) {
			return c.generate(ctx)
		}
		return c.revise(ctx, text)
	default:
		return []store.ChatMessage{c.reply("Hold on, the current step hasn't finished yet.")}
	}
}

func (c *Conversation) analyze(ctx context.Context, url string) []store.ChatMessage {
	c.setState(StateAnalyzing)

	session, reused, err := c.svc.Analyze(ctx, c.ownerID, url)
	if err != nil {
		c.setState(StateIdle)
		return []store.ChatMessage{c.reply(fmt.Sprintf("I couldn't analyze %s: %v. Send the URL again to retry.", url, err))}
	}

	c.mu.Lock()
	c.session = session
	c.state = StatePlanReady
	c.mu.Unlock()

	summary := BuildSummary(session)
	if reused {
		c.emit(ctx, events.TypeAnalysisCompleted, map[string]any{"url": url, "reused": true})
		return []store.ChatMessage{c.reply(fmt.Sprintf("I've already analyzed %s. Here's the plan on file:\n\n%s\n\nReply with feedback to revise it, or say \"proceed\" to generate the articles.", url, summary.Render()))}
	}

	c.emit(ctx, events.TypeAnalysisCompleted, map[string]any{"url": url, "reused": false})
	c.emit(ctx, events.TypePlanUpdated, map[string]any{"items": len(session.Plan)})
	return []store.ChatMessage{c.reply(fmt.Sprintf("Here's what I found:\n\n%s\n\nReply with feedback to revise the plan, or say \"proceed\" to generate the articles.", summary.Render()))}
}

func (c *Conversation) revise(ctx context.Context, text string) []store.ChatMessage {
	c.mu.Lock()
	sessionID := c.session.ID
	c.mu.Unlock()

	updated, result, err := c.svc.Chat(ctx, c.ownerID, sessionID, text)
	if err != nil {
		return []store.ChatMessage{c.reply(fmt.Sprintf("I couldn't process that: %v", err))}
	}

	c.mu.Lock()
	c.session = updated
	c.mu.Unlock()

	msg := c.reply(result.Answer)
	c.emit(ctx, events.TypeMessageAdded, map[string]any{"role": "assistant"})
	if result.PlanUpdate != nil {
		c.emit(ctx, events.TypePlanUpdated, map[string]any{"items": len(updated.Plan)})
		summary := BuildSummary(updated)
		return []store.ChatMessage{msg, c.reply("Updated plan:\n\n" + summary.RenderHeadlines())}
	}
	return []store.ChatMessage{msg}
}

func (c *Conversation) generate(ctx context.Context) []store.ChatMessage {
	c.mu.Lock()
	c.state = StateGenerating
	sessionID := c.session.ID
	total := len(c.session.Plan)
	c.mu.Unlock()
	defer c.setState(StatePlanReady)

	replies := []store.ChatMessage{c.reply(fmt.Sprintf("Generating %d articles, one at a time.", total))}

	articles, err := c.svc.Generate(ctx, c.ownerID, sessionID, func(index, total int, article *store.Article, err error) {
		if err != nil {
			msg := c.reply(fmt.Sprintf("Article %d/%d failed: %v", index+1, total, err))
			replies = append(replies, msg)
			c.emit(ctx, events.TypeGenerationFailed, map[string]any{"index": index, "total": total, "error": err.Error()})
			return
		}
		msg := c.reply(fmt.Sprintf("Article %d/%d done: %s (%d words)", index+1, total, article.Title, article.WordCount))
		replies = append(replies, msg)
		c.emit(ctx, events.TypeGenerationProgress, map[string]any{"index": index, "total": total, "title": article.Title})
	})
	if err != nil {
		replies = append(replies, c.reply(fmt.Sprintf("Generation stopped: %v", err)))
		return replies
	}

	c.mu.Lock()
	c.articles = articles
	c.mu.Unlock()
	c.emit(ctx, events.TypeGenerationCompleted, map[string]any{"succeeded": len(articles), "total": total})
	replies = append(replies, c.reply(fmt.Sprintf("Finished: %d of %d articles generated. Say \"proceed\" to run the plan again, or keep revising it.", len(articles), total)))
	return replies
}

func (c *Conversation) setState(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

// reply appends an assistant message under the lock and returns it. Stage
// code calls this with the lock released.
func (c *Conversation) reply(text string) store.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.appendAssistant(text)
}

func (c *Conversation) appendUser(text string) store.ChatMessage {
	msg := store.ChatMessage{Role: "user", Content: text, CreatedAt: time.Now().UTC().Format(time.RFC3339)}
	c.transcript = append(c.transcript, msg)
	return msg
}

func (c *Conversation) appendAssistant(text string) store.ChatMessage {
	msg := store.ChatMessage{Role: "assistant", Content: text, CreatedAt: time.Now().UTC().Format(time.RFC3339)}
	c.transcript = append(c.transcript, msg)
	return msg
}

func (c *Conversation) emit(ctx context.Context, eventType string, payload map[string]any) {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if c.publisher == nil || session == nil {
		return
	}
	c.publisher.Emit(ctx, session.ID, eventType, payload)
}

// detectURL finds the first URL-shaped token in free text. Scheme-less
// domains get https.
func detectURL(text string) (string, bool) {
	match := urlRe.FindString(text)
	if match == "" {
		return "", false
	}
	match = strings.TrimRight(match, ".,;:!?)")
	if !strings.HasPrefix(match, "http://") && !strings.HasPrefix(match, "https://") {
		match = "https://" + match
	}
	return match, true
}

func isProceed(text string) bool {
	return strings.Contains(strings.ToLower(text), "proceed")
}
