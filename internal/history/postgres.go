package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"github.com/alanmarkz/promptifi/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversation_turns (
	id              BIGSERIAL PRIMARY KEY,
	conversation_id TEXT        NOT NULL,
	wallet          TEXT        NOT NULL,
	role            TEXT        NOT NULL,
	content         TEXT        NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS conversation_turns_conversation_idx
	ON conversation_turns (conversation_id, id);
CREATE INDEX IF NOT EXISTS conversation_turns_wallet_idx
	ON conversation_turns (wallet, id DESC);
`

// PostgresStore persists transcripts in a conversation_turns table.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPostgresStore connects to the database and ensures the schema exists.
func NewPostgresStore(ctx context.Context, databaseURL string, logger zerolog.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.Connect(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &PostgresStore{
		pool:   pool,
		logger: logger.With().Str("component", "history").Logger(),
	}, nil
}

func (s *PostgresStore) Append(ctx context.Context, conversationID, wallet string, messages []models.ConversationMessage) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, msg := range messages {
		_, err := tx.Exec(ctx,
			`INSERT INTO conversation_turns (conversation_id, wallet, role, content) VALUES ($1, $2, $3, $4)`,
			conversationID, wallet, string(msg.Role), msg.Content)
		if err != nil {
			return fmt.Errorf("failed to insert turn: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) Load(ctx context.Context, conversationID string) ([]models.ConversationMessage, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT role, content FROM conversation_turns WHERE conversation_id = $1 ORDER BY id`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	defer rows.Close()

	var messages []models.ConversationMessage
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		messages = append(messages, models.ConversationMessage{
			Role:    models.MessageRole(role),
			Content: content,
		})
	}
	return messages, rows.Err()
}

func (s *PostgresStore) Conversations(ctx context.Context, wallet string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT conversation_id FROM conversation_turns WHERE wallet = $1 GROUP BY conversation_id ORDER BY max(id) DESC`,
		wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan conversation id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}
