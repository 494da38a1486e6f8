package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rankforge/rankforge/internal/extract"
	"github.com/rankforge/rankforge/internal/llm"
	"github.com/rankforge/rankforge/internal/store"
	"github.com/rankforge/rankforge/internal/store/memory"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Name() string  { return "mock" }
func (m *mockProvider) Model() string { return "mock-model" }

func (m *mockProvider) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(llm.Response), args.Error(1)
}

const researchJSON = `{
	"audience": "indie founders",
	"niche": "seo tooling",
	"core_keywords": ["seo", "content", "keywords", "ranking", "audit", "backlinks", "serp", "topics"],
	"tone": "practical",
	"site_map": [{"url": "https://example.com", "title": "Example"}]
}`

const planJSON = `{
	"plan": [
		{"title": "A Complete Guide To Something", "main_keyword": "guide", "lsi_keywords": ["how to", "steps", "basics"], "word_count": 1500},
		{"title": "Ten Mistakes Everyone Makes", "main_keyword": "mistakes", "lsi_keywords": ["errors", "pitfalls", "fixes"], "word_count": 2000}
	]
}`

func articleOfWords(n int) string {
	var b strings.Builder
	b.WriteString("# Generated Title\n\n")
	for i := 0; i < n-2; i++ {
		fmt.Fprintf(&b, "word%d ", i)
	}
	return b.String()
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Example</title></head><body><p>Example paragraph about the product.</p></body></html>`)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestService(t *testing.T, provider llm.Provider) (*Service, *memory.MemoryStore, string) {
	t.Helper()
	server := newTestServer(t)
	st := memory.New()
	extractor := extract.New(extract.Options{Client: server.Client()})
	svc := NewService(st, extractor, llm.NewCaller(provider), Limits{})
	return svc, st, server.URL
}

func TestAnalyzeCreatesSession(t *testing.T) {
	provider := &mockProvider{}
	provider.On("Complete", mock.Anything, mock.Anything).Return(llm.Response{Content: researchJSON}, nil).Once()
	provider.On("Complete", mock.Anything, mock.Anything).Return(llm.Response{Content: planJSON}, nil).Once()

	svc, _, url := newTestService(t, provider)

	session, reused, err := svc.Analyze(context.Background(), "owner-1", url)
	require.NoError(t, err)
	require.False(t, reused)
	require.NotEmpty(t, session.ID)
	require.Equal(t, "indie founders", session.Research.Audience)
	require.Len(t, session.Plan, 2)
	provider.AssertNumberOfCalls(t, "Complete", 2)
}

func TestAnalyzeReturnsExistingSession(t *testing.T) {
	provider := &mockProvider{}
	provider.On("Complete", mock.Anything, mock.Anything).Return(llm.Response{Content: researchJSON}, nil).Once()
	provider.On("Complete", mock.Anything, mock.Anything).Return(llm.Response{Content: planJSON}, nil).Once()

	svc, _, url := newTestService(t, provider)

	first, _, err := svc.Analyze(context.Background(), "owner-1", url)
	require.NoError(t, err)

	second, reused, err := svc.Analyze(context.Background(), "owner-1", url)
	require.NoError(t, err)
	require.True(t, reused)
	require.Equal(t, first.ID, second.ID)
	// No further model calls for the repeat.
	provider.AssertNumberOfCalls(t, "Complete", 2)
}

func TestAnalyzeCompletesHalfBuiltSession(t *testing.T) {
	provider := &mockProvider{}
	provider.On("Complete", mock.Anything, mock.Anything).Return(llm.Response{Content: researchJSON}, nil).Once()
	provider.On("Complete", mock.Anything, mock.Anything).Return(llm.Response{Content: planJSON}, nil).Once()

	svc, st, url := newTestService(t, provider)

	require.NoError(t, st.CreateSession(context.Background(), store.Session{
		ID:      "stale-session",
		OwnerID: "owner-1",
		URL:     url,
		Version: 1,
	}))

	session, reused, err := svc.Analyze(context.Background(), "owner-1", url)
	require.NoError(t, err)
	require.False(t, reused)
	require.Equal(t, "stale-session", session.ID)
	require.NotNil(t, session.Research)
	require.Len(t, session.Plan, 2)
}

func TestAnalyzeSparseResearchStillSucceeds(t *testing.T) {
	sparse := `{"audience": "founders", "niche": "seo", "core_keywords": ["seo", "content", "ranking"], "tone": "practical", "site_map": []}`
	provider := &mockProvider{}
	provider.On("Complete", mock.Anything, mock.Anything).Return(llm.Response{Content: sparse}, nil).Once()
	provider.On("Complete", mock.Anything, mock.Anything).Return(llm.Response{Content: planJSON}, nil).Once()

	svc, _, url := newTestService(t, provider)

	session, _, err := svc.Analyze(context.Background(), "owner-1", url)
	require.NoError(t, err)
	// Three keywords is below the advisory floor but never a failure, and the
	// crawled site map backfills an empty echo.
	require.Len(t, session.Research.CoreKeywords, 3)
	require.NotEmpty(t, session.Research.SiteMap)
}

func TestAnalyzeEmptyPlanStillCreatesSession(t *testing.T) {
	provider := &mockProvider{}
	provider.On("Complete", mock.Anything, mock.Anything).Return(llm.Response{Content: researchJSON}, nil).Once()
	provider.On("Complete", mock.Anything, mock.Anything).Return(llm.Response{Content: `{"plan": []}`}, nil).Once()

	svc, st, url := newTestService(t, provider)

	session, reused, err := svc.Analyze(context.Background(), "owner-1", url)
	require.NoError(t, err)
	require.False(t, reused)
	// An empty plan array is a logged warning, not a failure. The session is
	// persisted without topics and a later analyze runs the planner again.
	require.NotNil(t, session.Research)
	require.Empty(t, session.Plan)

	persisted, err := st.GetSession(context.Background(), session.ID)
	require.NoError(t, err)
	require.Empty(t, persisted.Plan)
}

func TestAnalyzeWrapsCrawlFailure(t *testing.T) {
	provider := &mockProvider{}
	svc, _, _ := newTestService(t, provider)

	_, _, err := svc.Analyze(context.Background(), "owner-1", "http://127.0.0.1:1/unreachable")
	require.Error(t, err)
	var researchErr *ResearchError
	require.True(t, errors.As(err, &researchErr))
	provider.AssertNumberOfCalls(t, "Complete", 0)
}

func TestChatKeepsPlanWhenModelReturnsNoUpdate(t *testing.T) {
	provider := &mockProvider{}
	provider.On("Complete", mock.Anything, mock.Anything).Return(llm.Response{Content: researchJSON}, nil).Once()
	provider.On("Complete", mock.Anything, mock.Anything).Return(llm.Response{Content: planJSON}, nil).Once()
	provider.On("Complete", mock.Anything, mock.Anything).Return(llm.Response{Content: `{"answer": "The plan targets indie founders.", "plan": []}`}, nil).Once()

	svc, _, url := newTestService(t, provider)

	session, _, err := svc.Analyze(context.Background(), "owner-1", url)
	require.NoError(t, err)
	originalPlan := session.Plan

	updated, result, err := svc.Chat(context.Background(), "owner-1", session.ID, "who is this plan for?")
	require.NoError(t, err)
	require.Nil(t, result.PlanUpdate)
	require.Equal(t, originalPlan, updated.Plan)
	require.Len(t, updated.ChatHistory, 2)
	require.Equal(t, "user", updated.ChatHistory[0].Role)
	require.Equal(t, "assistant", updated.ChatHistory[1].Role)
}

func TestChatEmptyAnswerIsAdvisory(t *testing.T) {
	provider := &mockProvider{}
	provider.On("Complete", mock.Anything, mock.Anything).Return(llm.Response{Content: researchJSON}, nil).Once()
	provider.On("Complete", mock.Anything, mock.Anything).Return(llm.Response{Content: planJSON}, nil).Once()
	provider.On("Complete", mock.Anything, mock.Anything).Return(llm.Response{Content: `{"answer": "", "plan": []}`}, nil).Once()

	svc, _, url := newTestService(t, provider)

	session, _, err := svc.Analyze(context.Background(), "owner-1", url)
	require.NoError(t, err)

	updated, result, err := svc.Chat(context.Background(), "owner-1", session.ID, "thoughts?")
	require.NoError(t, err)
	require.Empty(t, result.Answer)
	require.Nil(t, result.PlanUpdate)
	require.Len(t, updated.ChatHistory, 2)
	require.Equal(t, session.Plan, updated.Plan)
}

func TestChatSwapsPlanWhenModelRevisesIt(t *testing.T) {
	revised := `{"answer": "Swapped the second topic.", "plan": [
		{"title": "A Complete Guide To Something", "main_keyword": "guide", "lsi_keywords": ["how to", "steps", "basics"], "word_count": 1500},
		{"title": "Pricing Strategies That Convert", "main_keyword": "pricing", "lsi_keywords": ["plans", "tiers", "upgrade"], "word_count": 1800}
	]}`
	provider := &mockProvider{}
	provider.On("Complete", mock.Anything, mock.Anything).Return(llm.Response{Content: researchJSON}, nil).Once()
	provider.On("Complete", mock.Anything, mock.Anything).Return(llm.Response{Content: planJSON}, nil).Once()
	provider.On("Complete", mock.Anything, mock.Anything).Return(llm.Response{Content: revised}, nil).Once()

	svc, _, url := newTestService(t, provider)

	session, _, err := svc.Analyze(context.Background(), "owner-1", url)
	require.NoError(t, err)

	updated, result, err := svc.Chat(context.Background(), "owner-1", session.ID, "replace the mistakes topic with one about pricing")
	require.NoError(t, err)
	require.NotNil(t, result.PlanUpdate)
	require.Equal(t, "Pricing Strategies That Convert", updated.Plan[1].Title)
	require.Greater(t, updated.Version, session.Version)
}

func TestChatRejectsForeignOwner(t *testing.T) {
	provider := &mockProvider{}
	provider.On("Complete", mock.Anything, mock.Anything).Return(llm.Response{Content: researchJSON}, nil).Once()
	provider.On("Complete", mock.Anything, mock.Anything).Return(llm.Response{Content: planJSON}, nil).Once()

	svc, _, url := newTestService(t, provider)

	session, _, err := svc.Analyze(context.Background(), "owner-1", url)
	require.NoError(t, err)

	_, _, err = svc.Chat(context.Background(), "owner-2", session.ID, "hello")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestGenerateSurvivesSingleItemFailure(t *testing.T) {
	threeItems := `{"plan": [
		{"title": "First Topic Guide", "main_keyword": "first", "lsi_keywords": ["a", "b", "c"], "word_count": 1500},
		{"title": "Second Topic Guide", "main_keyword": "second", "lsi_keywords": ["d", "e", "f"], "word_count": 1500},
		{"title": "Third Topic Guide", "main_keyword": "third", "lsi_keywords": ["g", "h", "i"], "word_count": 1500}
	]}`
	provider := &mockProvider{}
	provider.On("Complete", mock.Anything, mock.Anything).Return(llm.Response{Content: researchJSON}, nil).Once()
	provider.On("Complete", mock.Anything, mock.Anything).Return(llm.Response{Content: threeItems}, nil).Once()
	provider.On("Complete", mock.Anything, mock.Anything).Return(llm.Response{Content: articleOfWords(900)}, nil).Once()
	provider.On("Complete", mock.Anything, mock.Anything).Return(llm.Response{Content: ""}, nil).Once()
	provider.On("Complete", mock.Anything, mock.Anything).Return(llm.Response{Content: articleOfWords(1200)}, nil).Once()

	svc, st, url := newTestService(t, provider)

	session, _, err := svc.Analyze(context.Background(), "owner-1", url)
	require.NoError(t, err)

	var failures []error
	articles, err := svc.Generate(context.Background(), "owner-1", session.ID, func(index, total int, article *store.Article, err error) {
		if err != nil {
			failures = append(failures, err)
		}
	})
	require.NoError(t, err)
	require.Len(t, articles, 2)
	require.Len(t, failures, 1)

	var genErr *ArticleGenerationError
	require.True(t, errors.As(failures[0], &genErr))
	require.Equal(t, "Second Topic Guide", genErr.Topic)

	persisted, err := st.ListArticles(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, persisted, 2)
}

func TestGenerateRejectsShortArticle(t *testing.T) {
	provider := &mockProvider{}
	provider.On("Complete", mock.Anything, mock.Anything).Return(llm.Response{Content: researchJSON}, nil).Once()
	provider.On("Complete", mock.Anything, mock.Anything).Return(llm.Response{Content: planJSON}, nil).Once()
	provider.On("Complete", mock.Anything, mock.Anything).Return(llm.Response{Content: articleOfWords(480)}, nil).Once()
	provider.On("Complete", mock.Anything, mock.Anything).Return(llm.Response{Content: articleOfWords(700)}, nil).Once()

	svc, _, url := newTestService(t, provider)

	session, _, err := svc.Analyze(context.Background(), "owner-1", url)
	require.NoError(t, err)

	var failures []error
	articles, err := svc.Generate(context.Background(), "owner-1", session.ID, func(index, total int, article *store.Article, err error) {
		if err != nil {
			failures = append(failures, err)
		}
	})
	require.NoError(t, err)
	require.Len(t, articles, 1)
	require.Len(t, failures, 1)
	require.Contains(t, failures[0].Error(), "too short")
}

func TestGenerateTruncatedArticleKept(t *testing.T) {
	provider := &mockProvider{}
	provider.On("Complete", mock.Anything, mock.Anything).Return(llm.Response{Content: researchJSON}, nil).Once()
	provider.On("Complete", mock.Anything, mock.Anything).Return(llm.Response{Content: planJSON}, nil).Once()
	provider.On("Complete", mock.Anything, mock.Anything).Return(llm.Response{Content: articleOfWords(900), FinishReason: llm.FinishReasonLength}, nil).Twice()

	svc, _, url := newTestService(t, provider)

	session, _, err := svc.Analyze(context.Background(), "owner-1", url)
	require.NoError(t, err)

	articles, err := svc.Generate(context.Background(), "owner-1", session.ID, nil)
	require.NoError(t, err)
	require.Len(t, articles, 2)
}
