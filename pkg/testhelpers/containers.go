// Package testhelpers provides shared infrastructure for integration tests:
// a single PostgreSQL container carrying both the legacy tables and the
// target schema. Legacy tables are prefix-templated and the target tables
// are not, so the two schemas coexist in one database the same way a
// staging migration would run.
package testhelpers

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/nimbusworks/nimbus-migrate/pkg/database"
)

// PostgresTestImage carries pgvector, which the embeddings table needs.
const PostgresTestImage = "pgvector/pgvector:pg16"

// TestDB holds the shared test container with the target schema applied.
type TestDB struct {
	Container testcontainers.Container
	DB        *database.DB
	ConnStr   string
}

var (
	sharedTestDB     *TestDB
	sharedTestDBOnce sync.Once
	sharedTestDBErr  error
)

// GetTestDB returns a shared PostgreSQL container for integration tests.
// The container is created once per test run, with target-schema migrations
// already applied.
func GetTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestDBOnce.Do(func() {
		sharedTestDB, sharedTestDBErr = setupTestDB()
	})

	if sharedTestDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedTestDBErr)
	}

	return sharedTestDB
}

func setupTestDB() (*TestDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresTestImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "migrate_test",
			"POSTGRES_USER":     "migrate",
			"POSTGRES_PASSWORD": "test_password",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://migrate:test_password@%s:%s/migrate_test?sslmode=disable",
		host, port.Port())

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            connStr,
		MaxConnections: 5,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	sqlDB, err := database.OpenSQL(connStr)
	if err != nil {
		return nil, err
	}
	defer sqlDB.Close()

	if err := database.ApplyTargetSchema(sqlDB, MigrationsPath(), zap.NewNop()); err != nil {
		return nil, fmt.Errorf("failed to apply target schema: %w", err)
	}

	return &TestDB{
		Container: container,
		DB:        db,
		ConnStr:   connStr,
	}, nil
}

// MigrationsPath returns the repository's migrations directory regardless of
// which package the test runs from.
func MigrationsPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}

// CreateLegacyTables creates the prefix-templated legacy tables. Idempotent
// so multiple test packages can share the container.
func CreateLegacyTables(t *testing.T, db *database.DB, prefix string) {
	t.Helper()
	ctx := context.Background()

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS public.%s_users (
			id TEXT PRIMARY KEY,
			name TEXT, last_name TEXT, email TEXT, job TEXT, department TEXT,
			phone_number TEXT, company_name TEXT, company_name_in_hebrew TEXT,
			__group_id__ TEXT, token_limit TEXT,
			token_used DOUBLE PRECISION, words_used DOUBLE PRECISION,
			last_connected DOUBLE PRECISION, times_connected DOUBLE PRECISION,
			letter_checkbox TEXT, azure_oid TEXT,
			model JSONB, history_categories JSONB, enabled_features JSONB, subfeatures JSONB,
			created_at TIMESTAMPTZ
		)`, prefix),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS public.%s_folders (
			id TEXT PRIMARY KEY,
			folder_name TEXT, owner_id TEXT, parent_id TEXT, folder_type TEXT,
			created_at TIMESTAMPTZ
		)`, prefix),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS public.%s_custom_documents (
			doc_id TEXT,
			owner_id TEXT, doc_name_origin TEXT, doc_title TEXT,
			doc_size DOUBLE PRECISION, folder_id TEXT, doc_description TEXT,
			doc_type TEXT, doc_summery TEXT, doc_summery_modified_by TEXT,
			doc_summery_modified_at TEXT, embedding_model TEXT, blob_source TEXT,
			version TEXT, doc_checksum TEXT,
			tags JSONB, vector_methods JSONB, data_integration_doc_metadata JSONB,
			created_at TIMESTAMPTZ
		)`, prefix),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS public.%s_logs (
			id TEXT PRIMARY KEY,
			user_id TEXT, chat_id TEXT, title TEXT,
			question JSONB, question_in_english TEXT, answer TEXT,
			token_amount BIGINT, words_amount BIGINT, calculated_time BIGINT,
			type TEXT, bot_id TEXT, is_like JSONB, toolkit_settings JSONB,
			category TEXT, sentiment TEXT, sourcetext TEXT, sourcelink TEXT,
			webpagelink TEXT, documents_selected TEXT,
			created_at TIMESTAMPTZ
		)`, prefix),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS public.%s (
			id TEXT PRIMARY KEY,
			external_id TEXT, collection TEXT, document TEXT,
			metadata JSONB, embeddings TEXT
		)`, prefix),
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(ctx, stmt); err != nil {
			t.Fatalf("Failed to create legacy table: %v", err)
		}
	}
}

// TruncateAll clears both schemas so tests start from a known-empty state.
func TruncateAll(t *testing.T, db *database.DB, prefix string) {
	t.Helper()
	ctx := context.Background()

	target := []string{
		"embeddings", "chunks", "message_content_blocks", "messages",
		"conversations", "documents", "folders", "users",
	}
	for _, table := range target {
		if _, err := db.Exec(ctx, "TRUNCATE public."+table+" CASCADE"); err != nil {
			t.Fatalf("Failed to truncate %s: %v", table, err)
		}
	}

	legacy := []string{
		prefix + "_users", prefix + "_folders", prefix + "_custom_documents",
		prefix + "_logs", prefix,
	}
	for _, table := range legacy {
		if _, err := db.Exec(ctx, "TRUNCATE public."+table+" CASCADE"); err != nil {
			t.Fatalf("Failed to truncate %s: %v", table, err)
		}
	}
}
