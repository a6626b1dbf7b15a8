package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nimbusworks/nimbus-migrate/pkg/database"
	"github.com/nimbusworks/nimbus-migrate/pkg/models"
)

// UserRepository defines target-side data access for migrated users.
type UserRepository interface {
	Insert(ctx context.Context, user *models.User) error
	// Exists reports whether a user with this email, or one already migrated
	// from this legacy id, is present. Either match makes a rerun skip the row.
	Exists(ctx context.Context, email, legacyID string) (bool, error)
	// LegacyIDMap returns legacy user id -> target user id for every user
	// carrying a legacy id in metadata. Downstream phases resolve owners
	// through this map.
	LegacyIDMap(ctx context.Context) (map[string]uuid.UUID, error)
	Count(ctx context.Context) (int64, error)
}

// userRepository implements UserRepository using PostgreSQL.
type userRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *database.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Insert(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, first_name, last_name, username, metadata,
		                   organization_id, is_owner, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(ctx, query,
		user.ID,
		user.Email,
		user.FirstName,
		user.LastName,
		user.Username,
		user.Metadata,
		user.OrganizationID,
		user.IsOwner,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (r *userRepository) Exists(ctx context.Context, email, legacyID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM users
			WHERE email = $1
			   OR ($2 <> '' AND metadata->'legacyData'->>'id' = $2)
		)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, email, legacyID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

func (r *userRepository) LegacyIDMap(ctx context.Context) (map[string]uuid.UUID, error) {
	query := `
		SELECT metadata->'legacyData'->>'id', id
		FROM users
		WHERE metadata->'legacyData'->>'id' IS NOT NULL`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load legacy user map: %w", err)
	}
	defer rows.Close()

	out := make(map[string]uuid.UUID)
	for rows.Next() {
		var legacyID string
		var id uuid.UUID
		if err := rows.Scan(&legacyID, &id); err != nil {
			return nil, fmt.Errorf("failed to scan legacy user mapping: %w", err)
		}
		out[legacyID] = id
	}
	return out, rows.Err()
}

func (r *userRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// Ensure userRepository implements UserRepository at compile time.
var _ UserRepository = (*userRepository)(nil)
