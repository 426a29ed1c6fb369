package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore keeps conversations in the conversations and
// conversation_messages tables.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) CreateConversation(teacherID string) (string, error) {
	if teacherID == "" {
		return "", fmt.Errorf("teacher_id is required")
	}
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	id := uuid.NewString()
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO conversations (id, teacher_id, started_at) VALUES ($1::uuid, $2, $3)`,
		id, teacherID, time.Now(),
	); err != nil {
		return "", fmt.Errorf("create conversation: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) GetConversation(id string) (*Conversation, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	conv, err := s.conversationByQuery(ctx,
		`SELECT id::text, teacher_id, summary, compacted_at, started_at, ended_at
		 FROM conversations WHERE id = $1::uuid`,
		id,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadMessages(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *PostgresStore) GetActiveConversation(teacherID string) (*Conversation, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	conv, err := s.conversationByQuery(ctx,
		`SELECT id::text, teacher_id, summary, compacted_at, started_at, ended_at
		 FROM conversations
		 WHERE teacher_id = $1 AND ended_at IS NULL
		 ORDER BY started_at DESC
		 LIMIT 1`,
		teacherID,
	)
	if err != nil {
		return nil, false
	}
	if err := s.loadMessages(ctx, conv); err != nil {
		return nil, false
	}
	return conv, true
}

func (s *PostgresStore) AddMessage(conversationID string, msg StoredMessage) error {
	if msg.Role == "" || msg.Content == "" {
		return fmt.Errorf("message role and content are required")
	}
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	cmd, err := s.pool.Exec(ctx,
		`INSERT INTO conversation_messages (conversation_id, role, content, model, input_tokens, output_tokens, created_at)
		 SELECT c.id, $2, $3, $4, $5, $6, $7
		 FROM conversations c
		 WHERE c.id = $1::uuid`,
		conversationID,
		msg.Role,
		msg.Content,
		nullIfEmpty(msg.Model),
		nullIfZero(msg.InputTokens),
		nullIfZero(msg.OutputTokens),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}
	return nil
}

func (s *PostgresStore) SetSummary(conversationID string, summary string, compactedAt int) error {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	cmd, err := s.pool.Exec(ctx,
		`UPDATE conversations SET summary = $2, compacted_at = $3 WHERE id = $1::uuid`,
		conversationID, summary, compactedAt,
	)
	if err != nil {
		return fmt.Errorf("set summary: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}
	return nil
}

// FlagMessage flags the index-th message in insertion order.
func (s *PostgresStore) FlagMessage(conversationID string, index int) error {
	if index < 0 {
		return fmt.Errorf("%w: %d", ErrMessageNotFound, index)
	}
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	cmd, err := s.pool.Exec(ctx,
		`UPDATE conversation_messages SET flagged = true
		 WHERE id = (
		   SELECT id FROM conversation_messages
		   WHERE conversation_id = $1::uuid
		   ORDER BY id ASC
		   OFFSET $2 LIMIT 1
		 )`,
		conversationID, index,
	)
	if err != nil {
		return fmt.Errorf("flag message: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d of %s", ErrMessageNotFound, index, conversationID)
	}
	return nil
}

func (s *PostgresStore) EndConversation(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	cmd, err := s.pool.Exec(ctx,
		`UPDATE conversations SET ended_at = NOW() WHERE id = $1::uuid`,
		id,
	)
	if err != nil {
		return fmt.Errorf("end conversation: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	return nil
}

// PurgeEndedBefore deletes conversations that ended before cutoff. Their
// messages go with them.
func (s *PostgresStore) PurgeEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	cmd, err := s.pool.Exec(ctx,
		`DELETE FROM conversations WHERE ended_at IS NOT NULL AND ended_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("purge conversations: %w", err)
	}
	return cmd.RowsAffected(), nil
}

func (s *PostgresStore) conversationByQuery(ctx context.Context, query string, args ...any) (*Conversation, error) {
	conv := &Conversation{Messages: []StoredMessage{}}
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&conv.ID,
		&conv.TeacherID,
		&conv.Summary,
		&conv.CompactedAt,
		&conv.StartedAt,
		&conv.EndedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return conv, nil
}

func (s *PostgresStore) loadMessages(ctx context.Context, conv *Conversation) error {
	rows, err := s.pool.Query(ctx,
		`SELECT role, content, model, input_tokens, output_tokens, flagged, created_at
		 FROM conversation_messages
		 WHERE conversation_id = $1::uuid
		 ORDER BY id ASC`,
		conv.ID,
	)
	if err != nil {
		return fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			msg          StoredMessage
			model        *string
			inputTokens  *int
			outputTokens *int
		)
		if err := rows.Scan(&msg.Role, &msg.Content, &model, &inputTokens, &outputTokens, &msg.Flagged, &msg.CreatedAt); err != nil {
			return fmt.Errorf("scan message: %w", err)
		}
		if model != nil {
			msg.Model = *model
		}
		if inputTokens != nil {
			msg.InputTokens = *inputTokens
		}
		if outputTokens != nil {
			msg.OutputTokens = *outputTokens
		}
		conv.Messages = append(conv.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate messages: %w", err)
	}
	return nil
}

func nullIfZero(v int) any {
	if v == 0 {
		return nil
	}
	return v
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
