package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitelore-ai/sitelore/internal/domain"
)

// previewMaxChars bounds the first-message preview in session listings
const previewMaxChars = 80

// SessionRepository handles persistence of chat sessions. Appends run in
// a transaction that locks the session row, so concurrent appends to one
// session serialize while different sessions proceed independently.
type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) Create(ctx context.Context, session *domain.ChatSession) error {
	if err := domain.ValidateChatSession(session); err != nil {
		return err
	}
	createdAt := session.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO chat_sessions (id, sources, created_at) VALUES ($1, $2, $3)`,
		session.ID, session.Sources, createdAt,
	)
	return err
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*domain.ChatSession, error) {
	var session domain.ChatSession
	err := r.pool.QueryRow(ctx,
		`SELECT id, sources, created_at FROM chat_sessions WHERE id = $1`,
		id,
	).Scan(&session.ID, &session.Sources, &session.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT role, content, cited_sources, created_at
		 FROM chat_messages WHERE session_id = $1 ORDER BY position ASC`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.Role, &m.Content, &m.Sources, &m.CreatedAt); err != nil {
			return nil, err
		}
		session.Messages = append(session.Messages, m)
	}
	return &session, rows.Err()
}

// List returns session summaries, newest first. The preview is the first
// user message, truncated.
func (r *SessionRepository) List(ctx context.Context) ([]*domain.SessionSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.sources, s.created_at,
			COALESCE((SELECT m.content FROM chat_messages m
				WHERE m.session_id = s.id AND m.role = 'user'
				ORDER BY m.position ASC LIMIT 1), '') AS preview
		 FROM chat_sessions s
		 ORDER BY s.created_at DESC, s.id DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []*domain.SessionSummary
	for rows.Next() {
		var s domain.SessionSummary
		if err := rows.Scan(&s.ID, &s.Sources, &s.CreatedAt, &s.Preview); err != nil {
			return nil, err
		}
		s.Preview = domain.TruncateEllipsis(s.Preview, previewMaxChars)
		summaries = append(summaries, &s)
	}
	return summaries, rows.Err()
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM chat_sessions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// AppendMessages appends messages to a session in arrival order. The
// session row is locked for the duration of the transaction, so two
// concurrent appends to the same session cannot interleave positions.
func (r *SessionRepository) AppendMessages(ctx context.Context, sessionID string, messages []domain.Message) error {
	if len(messages) == 0 {
		return nil
	}
	for i := range messages {
		if err := domain.ValidateMessage(&messages[i]); err != nil {
			return err
		}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var lockedID string
	err = tx.QueryRow(ctx,
		`SELECT id FROM chat_sessions WHERE id = $1 FOR UPDATE`,
		sessionID,
	).Scan(&lockedID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrSessionNotFound
		}
		return err
	}

	var next int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(position) + 1, 0) FROM chat_messages WHERE session_id = $1`,
		sessionID,
	).Scan(&next)
	if err != nil {
		return err
	}

	for i, m := range messages {
		cited := m.Sources
		if cited == nil {
			cited = []string{}
		}
		createdAt := m.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO chat_messages (session_id, position, role, content, cited_sources, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			sessionID, next+i, m.Role, m.Content, cited, createdAt,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
