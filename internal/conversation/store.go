package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgxpool.Pool the store needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists conversations and their transcripts. Every read and write is
// scoped to the owning user through the conversation's agent; a conversation
// belonging to someone else is indistinguishable from one that doesn't exist.
type Store interface {
	Create(ctx context.Context, userID, agentID string) (*Conversation, error)
	Get(ctx context.Context, userID, id string) (*Conversation, error)
	ListByUser(ctx context.Context, userID string) ([]*Conversation, error)
	ListByAgent(ctx context.Context, userID, agentID string) ([]*Conversation, error)
	AppendMessage(ctx context.Context, userID, conversationID, role, content string) (*Message, error)
	ListMessages(ctx context.Context, userID, conversationID string) ([]Message, error)
	End(ctx context.Context, userID, id string) (*Conversation, error)
	SetSummary(ctx context.Context, userID, id, summary string, sentiment Sentiment) error
	Delete(ctx context.Context, userID, id string) error
}

const conversationColumns = `c.id, c.agent_id, c.started_at, c.ended_at,
		c.duration_seconds, c.message_count, c.sentiment, c.summary`

// PostgresStore is the pgx-backed Store.
type PostgresStore struct {
	db Querier
}

// NewPostgresStore initializes a store backed by pgx.
func NewPostgresStore(db Querier) *PostgresStore {
	if db == nil {
		panic("conversation: pgx querier required")
	}
	return &PostgresStore{db: db}
}

// Create opens a conversation against one of the user's agents. The agent
// ownership check happens in the INSERT's subquery so a foreign agent id
// yields not-found rather than a row.
func (s *PostgresStore) Create(ctx context.Context, userID, agentID string) (*Conversation, error) {
	query := `
		INSERT INTO conversations (agent_id)
		SELECT a.id FROM agents a WHERE a.id = $1 AND a.user_id = $2
		RETURNING id, agent_id, started_at
	`
	var conv Conversation
	err := s.db.QueryRow(ctx, query, agentID, userID).Scan(&conv.ID, &conv.AgentID, &conv.StartedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("conversation: insert failed: %w", err)
	}
	conv.Sentiment = SentimentUnset
	return &conv, nil
}

// Get fetches one conversation scoped to its owner.
func (s *PostgresStore) Get(ctx context.Context, userID, id string) (*Conversation, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM conversations c
		JOIN agents a ON a.id = c.agent_id
		WHERE c.id = $1 AND a.user_id = $2
	`, conversationColumns)
	conv, err := scanConversation(s.db.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("conversation: select failed: %w", err)
	}
	return conv, nil
}

// ListByUser returns every conversation across the user's agents, newest first.
func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]*Conversation, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM conversations c
		JOIN agents a ON a.id = c.agent_id
		WHERE a.user_id = $1
		ORDER BY c.started_at DESC
	`, conversationColumns)
	return s.list(ctx, query, userID)
}

// ListByAgent returns the conversations of one of the user's agents, newest first.
func (s *PostgresStore) ListByAgent(ctx context.Context, userID, agentID string) ([]*Conversation, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM conversations c
		JOIN agents a ON a.id = c.agent_id
		WHERE a.user_id = $1 AND c.agent_id = $2
		ORDER BY c.started_at DESC
	`, conversationColumns)
	return s.list(ctx, query, userID, agentID)
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*Conversation, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("conversation: list failed: %w", err)
	}
	defer rows.Close()

	var out []*Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("conversation: scan failed: %w", err)
		}
		out = append(out, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: list rows failed: %w", err)
	}
	return out, nil
}

// AppendMessage stamps the next ordinal and bumps the denormalized message
// count in one statement, so concurrent appends to different conversations
// never race on application state. The ownership join in the CTE makes a
// foreign conversation id come back as not-found.
func (s *PostgresStore) AppendMessage(ctx context.Context, userID, conversationID, role, content string) (*Message, error) {
	query := `
		WITH owned AS (
			SELECT c.id FROM conversations c
			JOIN agents a ON a.id = c.agent_id
			WHERE c.id = $1 AND a.user_id = $2
		), bumped AS (
			UPDATE conversations
			SET message_count = message_count + 1
			WHERE id IN (SELECT id FROM owned)
			RETURNING id, message_count
		)
		INSERT INTO messages (conversation_id, role, content, ordinal)
		SELECT id, $3, $4, message_count FROM bumped
		RETURNING id, ordinal, created_at
	`
	msg := Message{ConversationID: conversationID, Role: role, Content: content}
	err := s.db.QueryRow(ctx, query, conversationID, userID, role, content).
		Scan(&msg.ID, &msg.Ordinal, &msg.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("conversation: append message failed: %w", err)
	}
	return &msg, nil
}

// ListMessages returns the full transcript in ordinal order.
func (s *PostgresStore) ListMessages(ctx context.Context, userID, conversationID string) ([]Message, error) {
	query := `
		SELECT m.id, m.conversation_id, m.role, m.content, m.ordinal, m.created_at
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		JOIN agents a ON a.id = c.agent_id
		WHERE m.conversation_id = $1 AND a.user_id = $2
		ORDER BY m.ordinal ASC
	`
	rows, err := s.db.Query(ctx, query, conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("conversation: list messages failed: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.Ordinal, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("conversation: scan message failed: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: message rows failed: %w", err)
	}
	return out, nil
}

// End stamps ended_at and the derived duration. Ending an already-ended
// conversation is a no-op that returns the stored row unchanged.
func (s *PostgresStore) End(ctx context.Context, userID, id string) (*Conversation, error) {
	query := fmt.Sprintf(`
		UPDATE conversations
		SET ended_at = now(),
			duration_seconds = GREATEST(0, EXTRACT(EPOCH FROM now() - started_at))::int
		FROM agents a
		WHERE conversations.id = $1 AND a.id = conversations.agent_id AND a.user_id = $2
			AND conversations.ended_at IS NULL
		RETURNING %s
	`, columnsAlias("conversations"))
	conv, err := scanConversation(s.db.QueryRow(ctx, query, id, userID))
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("conversation: end failed: %w", err)
	}
	// Either already ended or not owned; Get disambiguates.
	return s.Get(ctx, userID, id)
}

// SetSummary overwrites the stored summary and sentiment. Re-summarizing a
// call replaces the prior result rather than appending to it.
func (s *PostgresStore) SetSummary(ctx context.Context, userID, id, summary string, sentiment Sentiment) error {
	query := `
		UPDATE conversations
		SET summary = $3, sentiment = $4
		FROM agents a
		WHERE conversations.id = $1 AND a.id = conversations.agent_id AND a.user_id = $2
	`
	tag, err := s.db.Exec(ctx, query, id, userID, summary, string(sentiment))
	if err != nil {
		return fmt.Errorf("conversation: set summary failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// Delete removes the conversation and, via cascade, its messages.
func (s *PostgresStore) Delete(ctx context.Context, userID, id string) error {
	query := `
		DELETE FROM conversations
		USING agents a
		WHERE conversations.id = $1 AND a.id = conversations.agent_id AND a.user_id = $2
	`
	tag, err := s.db.Exec(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("conversation: delete failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConversationNotFound
	}
	return nil
}

func columnsAlias(alias string) string {
	return fmt.Sprintf(`%[1]s.id, %[1]s.agent_id, %[1]s.started_at, %[1]s.ended_at,
		%[1]s.duration_seconds, %[1]s.message_count, %[1]s.sentiment, %[1]s.summary`, alias)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*Conversation, error) {
	var (
		conv      Conversation
		sentiment string
	)
	if err := row.Scan(
		&conv.ID,
		&conv.AgentID,
		&conv.StartedAt,
		&conv.EndedAt,
		&conv.DurationSeconds,
		&conv.MessageCount,
		&sentiment,
		&conv.Summary,
	); err != nil {
		return nil, err
	}
	conv.Sentiment = Sentiment(sentiment)
	conv.Lead = conv.Sentiment.IsLead()
	return &conv, nil
}
