package store

import (
	"context"
	"errors"
)

// Sentinel errors shared by all store implementations.
var (
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("session version conflict")
	ErrSchemaMissing   = errors.New("database schema missing (run migrations/001_init.sql)")
)

type SiteMapPage struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type ResearchData struct {
	Audience     string        `json:"audience"`
	Niche        string        `json:"niche"`
	CoreKeywords []string      `json:"core_keywords"`
	Tone         string        `json:"tone"`
	SiteMap      []SiteMapPage `json:"site_map"`
}

type PlanItem struct {
	Title       string   `json:"title"`
	MainKeyword string   `json:"main_keyword"`
	LSIKeywords []string `json:"lsi_keywords"`
	WordCount   int      `json:"word_count"`
}

type ChatMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Session ties one analyzed URL to its research findings, content plan and
// chat transcript for one owner. Version is compared and incremented on every
// update so concurrent writers cannot silently clobber each other.
type Session struct {
	ID          string
	OwnerID     string
	URL         string
	Research    *ResearchData
	Plan        []PlanItem
	ChatHistory []ChatMessage
	Version     int64
	CreatedAt   string
	UpdatedAt   string
}

type SessionSummary struct {
	ID           string
	OwnerID      string
	URL          string
	PlanItems    int
	MessageCount int64
	CreatedAt    string
	UpdatedAt    string
}

type Article struct {
	ID        string
	SessionID string
	OwnerID   string
	Title     string
	Content   string
	Keywords  []string
	WordCount int
	CreatedAt string
}

type SessionEvent struct {
	SessionID string
	Seq       int64
	Type      string
	Timestamp string
	Source    string
	TraceID   string
	Payload   map[string]any
}

type Store interface {
	CreateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	GetSessionByURL(ctx context.Context, ownerID string, url string) (*Session, error)
	UpdateSession(ctx context.Context, session Session) (*Session, error)
	ListSessions(ctx context.Context, ownerID string) ([]SessionSummary, error)
	DeleteSession(ctx context.Context, sessionID string) error

	CreateArticle(ctx context.Context, article Article) error
	ListArticles(ctx context.Context, sessionID string) ([]Article, error)

	AppendEvent(ctx context.Context, event SessionEvent) error
	ListEvents(ctx context.Context, sessionID string, afterSeq int64) ([]SessionEvent, error)
	NextSeq(ctx context.Context, sessionID string) (int64, error)
}
