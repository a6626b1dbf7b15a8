package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nimbusworks/nimbus-migrate/pkg/database"
	"github.com/nimbusworks/nimbus-migrate/pkg/models"
)

// FolderRepository defines target-side data access for migrated folders.
// Folder ids are derived deterministically from the legacy key, so identity
// alone is the duplicate check.
type FolderRepository interface {
	Insert(ctx context.Context, folder *models.Folder) error
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	Count(ctx context.Context) (int64, error)
}

type folderRepository struct {
	db *database.DB
}

// NewFolderRepository creates a new folder repository.
func NewFolderRepository(db *database.DB) FolderRepository {
	return &folderRepository{db: db}
}

func (r *folderRepository) Insert(ctx context.Context, folder *models.Folder) error {
	query := `
		INSERT INTO folders (id, folder_name, parent_id, folder_type, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		folder.ID,
		folder.FolderName,
		folder.ParentID,
		folder.FolderType,
		folder.UserID,
		folder.CreatedAt,
		folder.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert folder: %w", err)
	}
	return nil
}

func (r *folderRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM folders WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check folder existence: %w", err)
	}
	return exists, nil
}

func (r *folderRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM folders`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count folders: %w", err)
	}
	return count, nil
}

var _ FolderRepository = (*folderRepository)(nil)
