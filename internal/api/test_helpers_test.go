package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rankforge/rankforge/internal/config"
	"github.com/rankforge/rankforge/internal/events"
	"github.com/rankforge/rankforge/internal/extract"
	"github.com/rankforge/rankforge/internal/llm"
	"github.com/rankforge/rankforge/internal/pipeline"
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

type testEnv struct {
	server  *Server
	store   *memory.MemoryStore
	siteURL string
}

func newTestEnv(t *testing.T, provider llm.Provider) *testEnv {
	t.Helper()
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Example</title></head><body><p>Example paragraph about the product.</p></body></html>`)
	}))
	t.Cleanup(site.Close)

	st := memory.New()
	extractor := extract.New(extract.Options{Client: site.Client()})
	service := pipeline.NewService(st, extractor, llm.NewCaller(provider), pipeline.Limits{})
	publisher := events.NewPublisher(st, events.NewBroker(), "api")
	cfg := config.Config{LLMProvider: "openai"}

	return &testEnv{
		server:  NewServer(st, service, publisher, cfg),
		store:   st,
		siteURL: site.URL,
	}
}

func (e *testEnv) do(t *testing.T, method string, path string, owner string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if owner != "" {
		req.Header.Set("X-User-ID", owner)
	}
	recorder := httptest.NewRecorder()
	e.server.Router().ServeHTTP(recorder, req)
	return recorder
}

func decodeBody[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &out))
	return out
}
