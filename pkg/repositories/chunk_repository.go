package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nimbusworks/nimbus-migrate/pkg/database"
	"github.com/nimbusworks/nimbus-migrate/pkg/models"
)

// ChunkRepository defines target-side data access for migrated chunks and
// their embeddings. Chunk ids are derived from the legacy key, so identity
// is the duplicate check. A chunk and its embedding land in one transaction.
type ChunkRepository interface {
	Insert(ctx context.Context, chunk *models.Chunk, embedding *models.Embedding) error
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	Count(ctx context.Context) (int64, error)
	EmbeddingCount(ctx context.Context) (int64, error)
}

type chunkRepository struct {
	db *database.DB
}

// NewChunkRepository creates a new chunk repository.
func NewChunkRepository(db *database.DB) ChunkRepository {
	return &chunkRepository{db: db}
}

func (r *chunkRepository) Insert(ctx context.Context, chunk *models.Chunk, embedding *models.Embedding) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	chunkQuery := `
		INSERT INTO chunks (id, document_id, chunk_index, content, content_type, page_number,
		                    char_count, word_count, metadata, translated_content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = tx.Exec(ctx, chunkQuery,
		chunk.ID,
		chunk.DocumentID,
		chunk.ChunkIndex,
		chunk.Content,
		chunk.ContentType,
		chunk.PageNumber,
		chunk.CharCount,
		chunk.WordCount,
		chunk.Metadata,
		chunk.TranslatedContent,
		chunk.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}

	if embedding != nil {
		embQuery := `
			INSERT INTO embeddings (id, chunk_id, document_id, vector, model_name, created_at)
			VALUES ($1, $2, $3, $4::vector, $5, $6)`

		_, err = tx.Exec(ctx, embQuery,
			embedding.ID,
			embedding.ChunkID,
			embedding.DocumentID,
			embedding.Vector,
			embedding.ModelName,
			embedding.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert embedding: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit chunk: %w", err)
	}
	return nil
}

func (r *chunkRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM chunks WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check chunk existence: %w", err)
	}
	return exists, nil
}

func (r *chunkRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

func (r *chunkRepository) EmbeddingCount(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count embeddings: %w", err)
	}
	return count, nil
}

var _ ChunkRepository = (*chunkRepository)(nil)
