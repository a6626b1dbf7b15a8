package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nimbusworks/nimbus-migrate/pkg/database"
	"github.com/nimbusworks/nimbus-migrate/pkg/models"
)

// DocumentRepository defines target-side data access for migrated documents.
// Documents get fresh ids, so the duplicate check goes through the legacy
// doc_id preserved in metadata.
type DocumentRepository interface {
	Insert(ctx context.Context, doc *models.Document) error
	ExistsByLegacyID(ctx context.Context, legacyDocID string) (bool, error)
	// LegacyIDMap returns legacy doc_id -> target document id for every
	// migrated document. The chunk phase resolves parents through it.
	LegacyIDMap(ctx context.Context) (map[string]uuid.UUID, error)
	Count(ctx context.Context) (int64, error)
}

type documentRepository struct {
	db *database.DB
}

// NewDocumentRepository creates a new document repository.
func NewDocumentRepository(db *database.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Insert(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documents (id, status, file_name, file_size, storage_type, storage_path,
		                       content_type, source_type, metadata, folder_id, user_id,
		                       created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.Exec(ctx, query,
		doc.ID,
		doc.Status,
		doc.FileName,
		doc.FileSize,
		doc.StorageType,
		doc.StoragePath,
		doc.ContentType,
		doc.SourceType,
		doc.Metadata,
		doc.FolderID,
		doc.UserID,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

func (r *documentRepository) ExistsByLegacyID(ctx context.Context, legacyDocID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM documents WHERE metadata->'legacyData'->>'doc_id' = $1)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, legacyDocID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check document existence: %w", err)
	}
	return exists, nil
}

func (r *documentRepository) LegacyIDMap(ctx context.Context) (map[string]uuid.UUID, error) {
	query := `
		SELECT metadata->'legacyData'->>'doc_id', id
		FROM documents
		WHERE metadata->'legacyData'->>'doc_id' IS NOT NULL`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load legacy document map: %w", err)
	}
	defer rows.Close()

	out := make(map[string]uuid.UUID)
	for rows.Next() {
		var legacyID string
		var id uuid.UUID
		if err := rows.Scan(&legacyID, &id); err != nil {
			return nil, fmt.Errorf("failed to scan legacy document mapping: %w", err)
		}
		out[legacyID] = id
	}
	return out, rows.Err()
}

func (r *documentRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

var _ DocumentRepository = (*documentRepository)(nil)
