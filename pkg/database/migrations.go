package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for golang-migrate
	"go.uber.org/zap"

	"github.com/nimbusworks/nimbus-migrate/pkg/apperrors"
)

// VerifyTargetSchema checks that the target tables exist before a direct
// run, so a missing `setup` surfaces as one clear error instead of a failure
// halfway through the first phase.
func VerifyTargetSchema(ctx context.Context, db *DB) error {
	for _, table := range []string{
		"users", "folders", "documents",
		"conversations", "messages", "message_content_blocks",
		"chunks", "embeddings",
	} {
		var reg *string
		err := db.QueryRow(ctx, "SELECT to_regclass('public.' || $1)::text", table).Scan(&reg)
		if err != nil {
			return fmt.Errorf("failed to check table %s: %w", table, err)
		}
		if reg == nil {
			return fmt.Errorf("%w: table %s missing (run setup first)", apperrors.ErrSchemaNotReady, table)
		}
	}
	return nil
}

// OpenSQL opens a database/sql handle for the target store. golang-migrate
// needs database/sql rather than pgx's native interface.
func OpenSQL(connString string) (*sql.DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open target database: %w", err)
	}
	return db, nil
}

// ApplyTargetSchema executes pending target-schema migrations from the
// specified directory. Idempotent: only pending migrations run, so calling
// it before every migration run is safe and catches missing-table
// configuration errors up front.
func ApplyTargetSchema(db *sql.DB, migrationsPath string, logger *zap.Logger) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			logger.Warn("Failed to close migration source", zap.Error(srcErr))
		}
		if dbErr != nil {
			logger.Warn("Failed to close migration database", zap.Error(dbErr))
		}
	}()

	err = m.Up()
	if err == migrate.ErrNoChange {
		logger.Info("Target schema up-to-date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to apply target schema: %w", err)
	}

	newVersion, _, _ := m.Version()
	logger.Info("Applied target schema", zap.Uint("version", newVersion))
	return nil
}
