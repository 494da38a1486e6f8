package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rankforge/rankforge/internal/store"
)

type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]store.Session
	articles map[string][]store.Article
	events   map[string][]store.SessionEvent
	seq      map[string]int64
}

func New() *MemoryStore {
	return &MemoryStore{
		sessions: map[string]store.Session{},
		articles: map[string][]store.Article{},
		events:   map[string][]store.SessionEvent{},
		seq:      map[string]int64{},
	}
}

func (m *MemoryStore) CreateSession(ctx context.Context, session store.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session.Version == 0 {
		session.Version = 1
	}
	m.sessions[session.ID] = cloneSession(session)
	return nil
}

func (m *MemoryStore) GetSession(ctx context.Context, sessionID string) (*store.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := cloneSession(session)
	return &copied, nil
}

func (m *MemoryStore) GetSessionByURL(ctx context.Context, ownerID string, url string) (*store.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, session := range m.sessions {
		if session.OwnerID == ownerID && session.URL == url {
			copied := cloneSession(session)
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

// UpdateSession replaces the stored record only when the caller holds the
// current version, then bumps it. A stale version returns ErrVersionConflict.
func (m *MemoryStore) UpdateSession(ctx context.Context, session store.Session) (*store.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.sessions[session.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if current.Version != session.Version {
		return nil, store.ErrVersionConflict
	}
	session.Version = current.Version + 1
	session.CreatedAt = current.CreatedAt
	session.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	m.sessions[session.ID] = cloneSession(session)
	copied := cloneSession(session)
	return &copied, nil
}

func (m *MemoryStore) ListSessions(ctx context.Context, ownerID string) ([]store.SessionSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	summaries := []store.SessionSummary{}
	for _, session := range m.sessions {
		if session.OwnerID != ownerID {
			continue
		}
		summaries = append(summaries, store.SessionSummary{
			ID:           session.ID,
			OwnerID:      session.OwnerID,
			URL:          session.URL,
			PlanItems:    len(session.Plan),
			MessageCount: int64(len(session.ChatHistory)),
			CreatedAt:    session.CreatedAt,
			UpdatedAt:    session.UpdatedAt,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt > summaries[j].UpdatedAt
	})
	return summaries, nil
}

func (m *MemoryStore) DeleteSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	delete(m.articles, sessionID)
	delete(m.events, sessionID)
	delete(m.seq, sessionID)
	return nil
}

func (m *MemoryStore) CreateArticle(ctx context.Context, article store.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.articles[article.SessionID] = append(m.articles[article.SessionID], article)
	return nil
}

func (m *MemoryStore) ListArticles(ctx context.Context, sessionID string) ([]store.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]store.Article{}, m.articles[sessionID]...), nil
}

func (m *MemoryStore) AppendEvent(ctx context.Context, event store.SessionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[event.SessionID] = append(m.events[event.SessionID], event)
	return nil
}

func (m *MemoryStore) ListEvents(ctx context.Context, sessionID string, afterSeq int64) ([]store.SessionEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	events := m.events[sessionID]
	if afterSeq <= 0 {
		return append([]store.SessionEvent{}, events...), nil
	}
	filtered := []store.SessionEvent{}
	for _, event := range events {
		if event.Seq > afterSeq {
			filtered = append(filtered, event)
		}
	}
	return filtered, nil
}

func (m *MemoryStore) NextSeq(ctx context.Context, sessionID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq[sessionID] += 1
	return m.seq[sessionID], nil
}

func cloneSession(session store.Session) store.Session {
	copied := session
	if session.Research != nil {
		research := *session.Research
		research.CoreKeywords = append([]string{}, session.Research.CoreKeywords...)
		research.SiteMap = append([]store.SiteMapPage{}, session.Research.SiteMap...)
		copied.Research = &research
	}
	copied.Plan = append([]store.PlanItem{}, session.Plan...)
	copied.ChatHistory = append([]store.ChatMessage{}, session.ChatHistory...)
	return copied
}

var _ store.Store = (*MemoryStore)(nil)
