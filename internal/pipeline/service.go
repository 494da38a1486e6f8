package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rankforge/rankforge/internal/extract"
	"github.com/rankforge/rankforge/internal/llm"
	"github.com/rankforge/rankforge/internal/store"
)

// Service runs the analyze, revise, and generate stages against a store. It
// owns session lifecycle and transcript bookkeeping; callers own event
// publishing and conversational state.
type Service struct {
	store     store.Store
	extractor *extract.Extractor
	caller    *llm.Caller
	limits    Limits
}

func NewService(st store.Store, extractor *extract.Extractor, caller *llm.Caller, limits Limits) *Service {
	return &Service{
		store:     st,
		extractor: extractor,
		caller:    caller,
		limits:    limits.withDefaults(),
	}
}

// Analyze crawls a site, researches it, and drafts a content plan. Repeat
// calls for the same owner and URL return the existing session untouched when
// research and plan are both present; a half-built session from an earlier
// failed run is completed in place.
func (s *Service) Analyze(ctx context.Context, ownerID string, url string) (*store.Session, bool, error) {
	existing, err := s.store.GetSessionByURL(ctx, ownerID, url)
	if err != nil && err != store.ErrNotFound {
		return nil, false, fmt.Errorf("look up session for %s: %w", url, err)
	}
	if existing != nil && existing.Research != nil && len(existing.Plan) > 0 {
		return existing, true, nil
	}

	capture, err := s.extractor.Crawl(ctx, url)
	if err != nil {
		return nil, false, &ResearchError{URL: url, Err: err}
	}
	research, err := runResearch(ctx, s.caller, capture)
	if err != nil {
		return nil, false, &ResearchError{URL: url, Err: err}
	}
	plan, err := runPlan(ctx, s.caller, *research)
	if err != nil {
		return nil, false, &ResearchError{URL: url, Err: err}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if existing != nil {
		existing.Research = research
		existing.Plan = plan
		updated, err := s.store.UpdateSession(ctx, *existing)
		if err != nil {
			return nil, false, fmt.Errorf("update session %s: %w", existing.ID, err)
		}
		return updated, false, nil
	}

	session := store.Session{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		URL:       url,
		Research:  research,
		Plan:      plan,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, false, fmt.Errorf("create session for %s: %w", url, err)
	}
	return &session, false, nil
}

// Session loads a session and enforces ownership. A session belonging to a
// different owner is reported as not found.
func (s *Service) Session(ctx context.Context, ownerID string, sessionID string) (*store.Session, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	return session, nil
}

// Chat answers a user message in the context of a session's research and
// plan, appends both sides of the exchange to the transcript, and swaps in
// the revised plan when the model proposes one.
func (s *Service) Chat(ctx context.Context, ownerID string, sessionID string, message string) (*store.Session, *ReviseResult, error) {
	session, err := s.Session(ctx, ownerID, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session.Research == nil || len(session.Plan) == 0 {
		return nil, nil, fmt.Errorf("session %s has no plan to discuss", sessionID)
	}

	result, err := runRevise(ctx, s.caller, *session.Research, session.Plan, message, session.ChatHistory)
	if err != nil {
		return nil, nil, fmt.Errorf("revise plan for session %s: %w", sessionID, err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	session.ChatHistory = append(session.ChatHistory,
		store.ChatMessage{Role: "user", Content: message, CreatedAt: now},
		store.ChatMessage{Role: "assistant", Content: result.Answer, CreatedAt: now},
	)
	if result.PlanUpdate != nil {
		session.Plan = result.PlanUpdate
	}

	updated, err := s.store.UpdateSession(ctx, *session)
	if err != nil {
		return nil, nil, fmt.Errorf("update session %s: %w", sessionID, err)
	}
	return updated, result, nil
}

// GenerateProgress reports the outcome of one plan item during Generate.
// Article is nil when Err is set.
type GenerateProgress func(index int, total int, article *store.Article, err error)

// Generate writes one article per plan item in order. A failed item is
// reported through progress and skipped; the remaining items still run. The
// returned error covers only session access, never item failures.
func (s *Service) Generate(ctx context.Context, ownerID string, sessionID string, progress GenerateProgress) ([]store.Article, error) {
	session, err := s.Session(ctx, ownerID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Research == nil || len(session.Plan) == 0 {
		return nil, fmt.Errorf("session %s has no plan to generate from", sessionID)
	}

	articles := make([]store.Article, 0, len(session.Plan))
	for i, item := range session.Plan {
		if err := ctx.Err(); err != nil {
			return articles, err
		}
		article, err := s.generateOne(ctx, session, item)
		if err == nil {
			articles = append(articles, *article)
		}
		if progress != nil {
			progress(i, len(session.Plan), article, err)
		}
	}
	return articles, nil
}

func (s *Service) generateOne(ctx context.Context, session *store.Session, item store.PlanItem) (*store.Article, error) {
	draft, err := runArticle(ctx, s.caller, item, *session.Research, s.limits)
	if err != nil {
		return nil, err
	}
	article := store.Article{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		OwnerID:   session.OwnerID,
		Title:     draft.Title,
		Content:   draft.Content,
		Keywords:  draft.Keywords,
		WordCount: draft.WordCount,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.store.CreateArticle(ctx, article); err != nil {
		return nil, &ArticleGenerationError{Topic: item.Title, Reason: "persist article", Err: err}
	}
	return &article, nil
}

// Articles lists a session's generated articles, oldest first.
func (s *Service) Articles(ctx context.Context, ownerID string, sessionID string) ([]store.Article, error) {
	if _, err := s.Session(ctx, ownerID, sessionID); err != nil {
		return nil, err
	}
	return s.store.ListArticles(ctx, sessionID)
}

// Sessions lists the owner's sessions, most recently updated first.
func (s *Service) Sessions(ctx context.Context, ownerID string) ([]store.SessionSummary, error) {
	return s.store.ListSessions(ctx, ownerID)
}

// Delete removes a session after an ownership check.
func (s *Service) Delete(ctx context.Context, ownerID string, sessionID string) error {
	if _, err := s.Session(ctx, ownerID, sessionID); err != nil {
		return err
	}
	return s.store.DeleteSession(ctx, sessionID)
}

// Store exposes the backing store for event bookkeeping.
func (s *Service) Store() store.Store {
	return s.store
}
