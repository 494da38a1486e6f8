package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rankforge/rankforge/internal/events"
	"github.com/rankforge/rankforge/internal/store"
)

type sessionResponse struct {
	ID          string              `json:"id"`
	URL         string              `json:"url"`
	Research    *store.ResearchData `json:"research,omitempty"`
	Plan        []store.PlanItem    `json:"plan,omitempty"`
	ChatHistory []store.ChatMessage `json:"chat_history,omitempty"`
	Version     int64               `json:"version"`
	CreatedAt   string              `json:"created_at"`
	UpdatedAt   string              `json:"updated_at"`
}

func toSessionResponse(session *store.Session) sessionResponse {
	return sessionResponse{
		ID:          session.ID,
		URL:         session.URL,
		Research:    session.Research,
		Plan:        session.Plan,
		ChatHistory: session.ChatHistory,
		Version:     session.Version,
		CreatedAt:   session.CreatedAt,
		UpdatedAt:   session.UpdatedAt,
	}
}

type sessionSummaryResponse struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	PlanItems    int    `json:"plan_items"`
	MessageCount int64  `json:"message_count"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type articleResponse struct {
	ID        string   `json:"id"`
	SessionID string   `json:"session_id"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Keywords  []string `json:"keywords"`
	WordCount int      `json:"word_count"`
	CreatedAt string   `json:"created_at"`
}

func toArticleResponse(article store.Article) articleResponse {
	return articleResponse{
		ID:        article.ID,
		SessionID: article.SessionID,
		Title:     article.Title,
		Content:   article.Content,
		Keywords:  article.Keywords,
		WordCount: article.WordCount,
		CreatedAt: article.CreatedAt,
	}
}

type analyzeRequest struct {
	URL string `json:"url"`
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONStatus(w, map[string]string{"error": "invalid request"}, http.StatusBadRequest)
		return
	}
	url := strings.TrimSpace(req.URL)
	if url == "" {
		writeJSONStatus(w, map[string]string{"error": "url required"}, http.StatusBadRequest)
		return
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}

	session, reused, err := s.service.Analyze(r.Context(), ownerFrom(r), url)
	if err != nil {
		writeError(w, err)
		return
	}

	if !reused {
		s.publisher.Emit(r.Context(), session.ID, events.TypeAnalysisCompleted, map[string]any{"url": url})
		s.publisher.Emit(r.Context(), session.ID, events.TypePlanUpdated, map[string]any{"items": len(session.Plan)})
	}

	status := http.StatusCreated
	if reused {
		status = http.StatusOK
	}
	writeJSONStatus(w, map[string]any{"session": toSessionResponse(session), "reused": reused}, status)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.service.Sessions(r.Context(), ownerFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]sessionSummaryResponse, 0, len(summaries))
	for _, summary := range summaries {
		out = append(out, sessionSummaryResponse{
			ID:           summary.ID,
			URL:          summary.URL,
			PlanItems:    summary.PlanItems,
			MessageCount: summary.MessageCount,
			CreatedAt:    summary.CreatedAt,
			UpdatedAt:    summary.UpdatedAt,
		})
	}
	writeJSONStatus(w, map[string]any{"sessions": out}, http.StatusOK)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.service.Session(r.Context(), ownerFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, toSessionResponse(session), http.StatusOK)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Delete(r.Context(), ownerFrom(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONStatus(w, map[string]string{"error": "invalid request"}, http.StatusBadRequest)
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeJSONStatus(w, map[string]string{"error": "message required"}, http.StatusBadRequest)
		return
	}

	session, result, err := s.service.Chat(r.Context(), ownerFrom(r), sessionID, message)
	if err != nil {
		writeError(w, err)
		return
	}

	s.publisher.Emit(r.Context(), sessionID, events.TypeMessageAdded, map[string]any{"role": "assistant"})
	if result.PlanUpdate != nil {
		s.publisher.Emit(r.Context(), sessionID, events.TypePlanUpdated, map[string]any{"items": len(session.Plan)})
	}

	writeJSONStatus(w, map[string]any{
		"answer":       result.Answer,
		"plan_updated": result.PlanUpdate != nil,
		"session":      toSessionResponse(session),
	}, http.StatusOK)
}

type generateFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// generate runs the whole plan in request scope. Items fail independently;
// the response reports both the articles written and the items that failed.
func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	var failures []generateFailure
	articles, err := s.service.Generate(r.Context(), ownerFrom(r), sessionID, func(index, total int, article *store.Article, err error) {
		if err != nil {
			failures = append(failures, generateFailure{Index: index, Error: err.Error()})
			s.publisher.Emit(r.Context(), sessionID, events.TypeGenerationFailed, map[string]any{"index": index, "total": total, "error": err.Error()})
			return
		}
		s.publisher.Emit(r.Context(), sessionID, events.TypeGenerationProgress, map[string]any{"index": index, "total": total, "title": article.Title})
	})
	if err != nil {
		writeError(w, err)
		return
	}

	s.publisher.Emit(r.Context(), sessionID, events.TypeGenerationCompleted, map[string]any{"succeeded": len(articles), "failed": len(failures)})

	out := make([]articleResponse, 0, len(articles))
	for _, article := range articles {
		out = append(out, toArticleResponse(article))
	}
	writeJSONStatus(w, map[string]any{"articles": out, "failures": failures}, http.StatusOK)
}

func (s *Server) listArticles(w http.ResponseWriter, r *http.Request) {
	articles, err := s.service.Articles(r.Context(), ownerFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]articleResponse, 0, len(articles))
	for _, article := range articles {
		out = append(out, toArticleResponse(article))
	}
	writeJSONStatus(w, map[string]any{"articles": out}, http.StatusOK)
}
