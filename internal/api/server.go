package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rankforge/rankforge/internal/config"
	"github.com/rankforge/rankforge/internal/events"
	"github.com/rankforge/rankforge/internal/pipeline"
	"github.com/rankforge/rankforge/internal/store"
)

type ownerKeyType struct{}

var ownerKey ownerKeyType

type Server struct {
	store     store.Store
	service   *pipeline.Service
	publisher *events.Publisher
	cfg       config.Config
}

func NewServer(st store.Store, service *pipeline.Service, publisher *events.Publisher, cfg config.Config) *Server {
	return &Server{
		store:     st,
		service:   service,
		publisher: publisher,
		cfg:       cfg,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(quietRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/health", s.health)
	r.Get("/ready", s.ready)

	r.Group(func(r chi.Router) {
		r.Use(requireOwner)
		r.Post("/analyze", s.analyze)
		r.Get("/sessions", s.listSessions)
		r.Get("/sessions/{id}", s.getSession)
		r.Delete("/sessions/{id}", s.deleteSession)
		r.Post("/sessions/{id}/chat", s.chat)
		r.Post("/sessions/{id}/generate", s.generate)
		r.Get("/sessions/{id}/articles", s.listArticles)
		r.Get("/sessions/{id}/events", s.streamEvents)
	})

	return r
}

// requireOwner resolves the caller's identity from the X-User-ID header. The
// surrounding auth layer is expected to have validated it upstream.
func requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := strings.TrimSpace(r.Header.Get("X-User-ID"))
		if owner == "" {
			writeJSONStatus(w, map[string]string{"error": "X-User-ID header required"}, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey, owner)))
	})
}

func ownerFrom(r *http.Request) string {
	owner, _ := r.Context().Value(ownerKey).(string)
	return owner
}

func quietRequestLogger(next http.Handler) http.Handler {
	logged := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSuppressRequestLog(r.Method, r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		logged.ServeHTTP(w, r)
	})
}

func shouldSuppressRequestLog(method string, path string) bool {
	cleanPath := strings.TrimSpace(path)
	if method == http.MethodGet && strings.HasSuffix(cleanPath, "/events") {
		return true
	}
	if method == http.MethodGet && (cleanPath == "/health" || cleanPath == "/ready") {
		return true
	}
	if method == http.MethodOptions {
		return true
	}
	return false
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type subsystemStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status     string                     `json:"status"`
	Subsystems map[string]subsystemStatus `json:"subsystems"`
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	subsystems := map[string]subsystemStatus{}
	overall := http.StatusOK

	if _, err := s.store.ListSessions(ctx, "readiness-probe"); err != nil {
		status := subsystemStatus{Status: "error", Error: err.Error()}
		if errors.Is(err, store.ErrSchemaMissing) {
			status.Status = "schema_missing"
		}
		subsystems["store"] = status
		overall = http.StatusServiceUnavailable
	} else {
		subsystems["store"] = subsystemStatus{Status: "ok"}
	}

	if s.cfg.LLMProvider == "" {
		subsystems["llm"] = subsystemStatus{Status: "skipped"}
	} else {
		subsystems["llm"] = subsystemStatus{Status: "ok"}
	}

	status := "ok"
	if overall != http.StatusOK {
		status = "degraded"
	}
	writeJSONStatus(w, readinessResponse{Status: status, Subsystems: subsystems}, overall)
}

func writeJSONStatus(w http.ResponseWriter, value any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

// writeError maps store and pipeline failures onto distinguishable statuses.
// A missing schema is reported as such because retrying cannot fix it.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSONStatus(w, map[string]string{"error": "not found"}, http.StatusNotFound)
	case errors.Is(err, store.ErrVersionConflict):
		writeJSONStatus(w, map[string]string{"error": "session was modified concurrently, reload and retry"}, http.StatusConflict)
	case errors.Is(err, store.ErrSchemaMissing):
		writeJSONStatus(w, map[string]string{"error": err.Error(), "code": "schema_missing"}, http.StatusInternalServerError)
	default:
		var researchErr *pipeline.ResearchError
		if errors.As(err, &researchErr) {
			writeJSONStatus(w, map[string]string{"error": err.Error()}, http.StatusUnprocessableEntity)
			return
		}
		writeJSONStatus(w, map[string]string{"error": err.Error()}, http.StatusInternalServerError)
	}
}

func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r)
	sessionID := chi.URLParam(r, "id")
	if _, err := s.service.Session(r.Context(), owner, sessionID); err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	afterSeq := parseAfterSeq(sessionID, r)
	stored, err := s.store.ListEvents(ctx, sessionID, afterSeq)
	if err != nil {
		writeError(w, err)
		return
	}
	for _, event := range stored {
		sendSSE(w, events.FromRecord(event))
		flusher.Flush()
	}

	eventsChan := s.publisher.Broker().Subscribe(ctx, sessionID)
	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case event, ok := <-eventsChan:
			if !ok {
				return
			}
			sendSSE(w, event)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func sendSSE(w http.ResponseWriter, event events.SessionEvent) {
	payload, _ := json.Marshal(event)
	fmt.Fprintf(w, "id: %s:%d\n", event.SessionID, event.Seq)
	fmt.Fprint(w, "event: session_event\n")
	fmt.Fprintf(w, "data: %s\n\n", payload)
}

func parseAfterSeq(sessionID string, r *http.Request) int64 {
	afterParam := strings.TrimSpace(r.URL.Query().Get("after_seq"))
	if afterParam != "" {
		if parsed, err := strconv.ParseInt(afterParam, 10, 64); err == nil {
			return parsed
		}
	}
	lastEventID := r.Header.Get("Last-Event-ID")
	if lastEventID == "" {
		return 0
	}
	parts := strings.Split(lastEventID, ":")
	if len(parts) != 2 {
		return 0
	}
	if parts[0] != sessionID {
		return 0
	}
	seq, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0
	}
	return seq
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Last-Event-ID, X-User-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()
	return server.ListenAndServe()
}
