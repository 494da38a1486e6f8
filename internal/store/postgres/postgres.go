package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/rankforge/rankforge/internal/store"
)

type PostgresStore struct {
	db *sql.DB
}

var openDB = sql.Open

func New(conn string) (*PostgresStore, error) {
	db, err := openDB("pgx", conn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := verifySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}

func verifySchema(ctx context.Context, db *sql.DB) error {
	required := []string{
		"sessions",
		"articles",
		"session_events",
		"session_event_sequences",
	}
	for _, table := range required {
		var regclass sql.NullString
		if err := db.QueryRowContext(ctx, "SELECT to_regclass($1)", fmt.Sprintf("public.%s", table)).Scan(&regclass); err != nil {
			return err
		}
		if !regclass.Valid {
			return fmt.Errorf("%w: %s table not found (run migrations/001_init.sql)", store.ErrSchemaMissing, table)
		}
	}
	return nil
}

// classifyErr maps an undefined_table SQLSTATE onto ErrSchemaMissing so
// callers can tell "run the migration" apart from a retryable failure.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42P01" {
		return fmt.Errorf("%w: %s", store.ErrSchemaMissing, pgErr.Message)
	}
	return err
}

func (p *PostgresStore) CreateSession(ctx context.Context, session store.Session) error {
	researchBytes, planBytes, historyBytes, err := encodeSessionJSON(session)
	if err != nil {
		return err
	}
	version := session.Version
	if version == 0 {
		version = 1
	}
	const query = `
		INSERT INTO sessions (id, owner_id, url, research_data, plan, chat_history, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = p.db.ExecContext(ctx, query,
		session.ID,
		session.OwnerID,
		session.URL,
		researchBytes,
		planBytes,
		historyBytes,
		version,
		parseTimestampValue(session.CreatedAt),
		parseTimestampValue(session.UpdatedAt),
	)
	return classifyErr(err)
}

const sessionColumns = "id, owner_id, url, research_data, plan, chat_history, version, created_at, updated_at"

func (p *PostgresStore) GetSession(ctx context.Context, sessionID string) (*store.Session, error) {
	query := fmt.Sprintf("SELECT %s FROM sessions WHERE id = $1", sessionColumns)
	row := p.db.QueryRowContext(ctx, query, sessionID)
	return scanSession(row)
}

func (p *PostgresStore) GetSessionByURL(ctx context.Context, ownerID string, url string) (*store.Session, error) {
	query := fmt.Sprintf("SELECT %s FROM sessions WHERE owner_id = $1 AND url = $2", sessionColumns)
	row := p.db.QueryRowContext(ctx, query, ownerID, url)
	return scanSession(row)
}

func (p *PostgresStore) UpdateSession(ctx context.Context, session store.Session) (*store.Session, error) {
	researchBytes, planBytes, historyBytes, err := encodeSessionJSON(session)
	if err != nil {
		return nil, err
	}
	const query = `
		UPDATE sessions
		SET research_data = $1, plan = $2, chat_history = $3, version = version + 1, updated_at = now()
		WHERE id = $4 AND version = $5
		RETURNING ` + sessionColumns
	row := p.db.QueryRowContext(ctx, query, researchBytes, planBytes, historyBytes, session.ID, session.Version)
	updated, err := scanSession(row)
	if errors.Is(err, store.ErrNotFound) {
		// Either the session is gone or the version is stale; look again to
		// report the right condition.
		if _, getErr := p.GetSession(ctx, session.ID); getErr == nil {
			return nil, store.ErrVersionConflict
		}
		return nil, store.ErrNotFound
	}
	return updated, err
}

func (p *PostgresStore) ListSessions(ctx context.Context, ownerID string) ([]store.SessionSummary, error) {
	const query = `
		SELECT s.id, s.owner_id, s.url, s.plan, s.chat_history, s.created_at, s.updated_at
		FROM sessions s
		WHERE s.owner_id = $1
		ORDER BY s.updated_at DESC
	`
	rows, err := p.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, classifyErr(err)
	}
	defer rows.Close()

	summaries := []store.SessionSummary{}
	for rows.Next() {
		var summary store.SessionSummary
		var planBytes, historyBytes []byte
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&summary.ID, &summary.OwnerID, &summary.URL, &planBytes, &historyBytes, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		var plan []store.PlanItem
		if len(planBytes) > 0 {
			if err := json.Unmarshal(planBytes, &plan); err != nil {
				return nil, err
			}
		}
		var history []store.ChatMessage
		if len(historyBytes) > 0 {
			if err := json.Unmarshal(historyBytes, &history); err != nil {
				return nil, err
			}
		}
		summary.PlanItems = len(plan)
		summary.MessageCount = int64(len(history))
		summary.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
		summary.UpdatedAt = updatedAt.UTC().Format(time.RFC3339Nano)
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return summaries, nil
}

func (p *PostgresStore) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := p.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = $1", sessionID)
	return classifyErr(err)
}

func (p *PostgresStore) CreateArticle(ctx context.Context, article store.Article) error {
	keywordsBytes, err := json.Marshal(article.Keywords)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO articles (id, session_id, owner_id, title, content, keywords, word_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = p.db.ExecContext(ctx, query,
		article.ID,
		article.SessionID,
		article.OwnerID,
		article.Title,
		article.Content,
		keywordsBytes,
		article.WordCount,
		parseTimestampValue(article.CreatedAt),
	)
	return classifyErr(err)
}

func (p *PostgresStore) ListArticles(ctx context.Context, sessionID string) ([]store.Article, error) {
	const query = `
		SELECT id, session_id, owner_id, title, content, keywords, word_count, created_at
		FROM articles
		WHERE session_id = $1
		ORDER BY created_at ASC
	`
	rows, err := p.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, classifyErr(err)
	}
	defer rows.Close()

	articles := []store.Article{}
	for rows.Next() {
		var article store.Article
		var keywordsBytes []byte
		var createdAt time.Time
		if err := rows.Scan(&article.ID, &article.SessionID, &article.OwnerID, &article.Title, &article.Content, &keywordsBytes, &article.WordCount, &createdAt); err != nil {
			return nil, err
		}
		if len(keywordsBytes) > 0 {
			if err := json.Unmarshal(keywordsBytes, &article.Keywords); err != nil {
				return nil, err
			}
		}
		article.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
		articles = append(articles, article)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return articles, nil
}

func (p *PostgresStore) AppendEvent(ctx context.Context, event store.SessionEvent) error {
	payload := event.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	timestamp := event.Timestamp
	if timestamp == "" {
		timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	const query = `
		INSERT INTO session_events (session_id, seq, type, timestamp, source, trace_id, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = p.db.ExecContext(ctx, query,
		event.SessionID,
		event.Seq,
		event.Type,
		parseTimestampValue(timestamp),
		event.Source,
		nullIfEmpty(event.TraceID),
		encoded,
	)
	return classifyErr(err)
}

func (p *PostgresStore) ListEvents(ctx context.Context, sessionID string, afterSeq int64) ([]store.SessionEvent, error) {
	const query = `
		SELECT session_id, seq, type, timestamp, source, trace_id, payload
		FROM session_events
		WHERE session_id = $1 AND seq > $2
		ORDER BY seq ASC
	`
	rows, err := p.db.QueryContext(ctx, query, sessionID, afterSeq)
	if err != nil {
		return nil, classifyErr(err)
	}
	defer rows.Close()

	results := []store.SessionEvent{}
	for rows.Next() {
		var event store.SessionEvent
		var timestamp time.Time
		var traceID sql.NullString
		var payloadBytes []byte
		if err := rows.Scan(&event.SessionID, &event.Seq, &event.Type, &timestamp, &event.Source, &traceID, &payloadBytes); err != nil {
			return nil, err
		}
		event.Timestamp = timestamp.UTC().Format(time.RFC3339Nano)
		if traceID.Valid {
			event.TraceID = traceID.String
		}
		if len(payloadBytes) > 0 {
			payload := map[string]any{}
			if err := json.Unmarshal(payloadBytes, &payload); err != nil {
				return nil, err
			}
			event.Payload = payload
		} else {
			event.Payload = map[string]any{}
		}
		results = append(results, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *PostgresStore) NextSeq(ctx context.Context, sessionID string) (int64, error) {
	const query = `
		INSERT INTO session_event_sequences (session_id, last_seq)
		VALUES ($1, 1)
		ON CONFLICT (session_id)
		DO UPDATE SET last_seq = session_event_sequences.last_seq + 1
		RETURNING last_seq
	`
	var seq int64
	if err := p.db.QueryRowContext(ctx, query, sessionID).Scan(&seq); err != nil {
		return 0, classifyErr(err)
	}
	return seq, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*store.Session, error) {
	var session store.Session
	var researchBytes, planBytes, historyBytes []byte
	var createdAt, updatedAt time.Time
	err := row.Scan(
		&session.ID,
		&session.OwnerID,
		&session.URL,
		&researchBytes,
		&planBytes,
		&historyBytes,
		&session.Version,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, classifyErr(err)
	}
	if len(researchBytes) > 0 && string(researchBytes) != "null" {
		research := store.ResearchData{}
		if err := json.Unmarshal(researchBytes, &research); err != nil {
			return nil, err
		}
		session.Research = &research
	}
	if len(planBytes) > 0 {
		if err := json.Unmarshal(planBytes, &session.Plan); err != nil {
			return nil, err
		}
	}
	if len(historyBytes) > 0 {
		if err := json.Unmarshal(historyBytes, &session.ChatHistory); err != nil {
			return nil, err
		}
	}
	session.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
	session.UpdatedAt = updatedAt.UTC().Format(time.RFC3339Nano)
	return &session, nil
}

func encodeSessionJSON(session store.Session) (research []byte, plan []byte, history []byte, err error) {
	research, err = json.Marshal(session.Research)
	if err != nil {
		return nil, nil, nil, err
	}
	if session.Plan == nil {
		session.Plan = []store.PlanItem{}
	}
	plan, err = json.Marshal(session.Plan)
	if err != nil {
		return nil, nil, nil, err
	}
	if session.ChatHistory == nil {
		session.ChatHistory = []store.ChatMessage{}
	}
	history, err = json.Marshal(session.ChatHistory)
	if err != nil {
		return nil, nil, nil, err
	}
	return research, plan, history, nil
}

func parseTimestampValue(value string) any {
	if value == "" {
		return time.Now().UTC()
	}
	if parsed, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return parsed.UTC()
	}
	return time.Now().UTC()
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

var _ store.Store = (*PostgresStore)(nil)
