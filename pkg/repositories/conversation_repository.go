package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nimbusworks/nimbus-migrate/pkg/database"
	"github.com/nimbusworks/nimbus-migrate/pkg/models"
)

// ConversationRepository defines target-side data access for migrated
// conversations. A conversation lands atomically with its messages and
// content blocks: either the whole aggregate is visible or none of it is,
// so a rerun after a crash never sees a half-written chat.
type ConversationRepository interface {
	InsertAggregate(ctx context.Context, conv *models.Conversation, messages []*models.Message, blocks []*models.ContentBlock) error
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	Count(ctx context.Context) (int64, error)
	MessageCount(ctx context.Context) (int64, error)
}

type conversationRepository struct {
	db *database.DB
}

// NewConversationRepository creates a new conversation repository.
func NewConversationRepository(db *database.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) InsertAggregate(ctx context.Context, conv *models.Conversation, messages []*models.Message, blocks []*models.ContentBlock) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	convQuery := `
		INSERT INTO conversations (id, title, message_count, total_tokens, is_active,
		                           user_id, created_at, updated_at, last_interacted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = tx.Exec(ctx, convQuery,
		conv.ID,
		conv.Title,
		conv.MessageCount,
		conv.TotalTokens,
		conv.IsActive,
		conv.UserID,
		conv.CreatedAt,
		conv.UpdatedAt,
		conv.LastInteractedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}

	msgQuery := `
		INSERT INTO messages (id, conversation_id, parent_message_id, role, has_tool_calls,
		                      iteration_count, content_block_count, finish_reason, user_id,
		                      metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	for _, m := range messages {
		_, err = tx.Exec(ctx, msgQuery,
			m.ID,
			m.ConversationID,
			m.ParentMessageID,
			m.Role,
			m.HasToolCalls,
			m.IterationCount,
			m.ContentBlockCount,
			m.FinishReason,
			m.UserID,
			m.Metadata,
			m.CreatedAt,
			m.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	blockQuery := `
		INSERT INTO message_content_blocks (id, message_id, sequence, type, content,
		                                    execution_time_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for _, b := range blocks {
		_, err = tx.Exec(ctx, blockQuery,
			b.ID,
			b.MessageID,
			b.Sequence,
			b.Type,
			b.Content,
			b.ExecutionTimeMS,
			b.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert content block: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit conversation aggregate: %w", err)
	}
	return nil
}

func (r *conversationRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM conversations WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check conversation existence: %w", err)
	}
	return exists, nil
}

func (r *conversationRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count conversations: %w", err)
	}
	return count, nil
}

func (r *conversationRepository) MessageCount(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

var _ ConversationRepository = (*conversationRepository)(nil)
