package config

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for nimbus-migrate.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (database passwords) must only come from environment variables.
type Config struct {
	Env     string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version string `yaml:"-"` // Set at load time, not from config

	// Source store (legacy schema, read-only)
	Source DatabaseConfig `yaml:"source" env-prefix:"SOURCE_"`

	// Target store (redesigned schema, insert + point lookup)
	Target DatabaseConfig `yaml:"target" env-prefix:"TARGET_"`

	// Migration behavior
	Migration MigrationConfig `yaml:"migration"`

	// Logging output
	Logging LoggingConfig `yaml:"logging"`
}

// DatabaseConfig holds PostgreSQL connection configuration for one store.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"postgres"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:""`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"5"`
	// StatementTimeoutMS bounds every statement on this store. A timeout is
	// treated as a retryable transient failure, not a fatal error.
	StatementTimeoutMS int `yaml:"statement_timeout_ms" env:"PGSTATEMENT_TIMEOUT_MS" env-default:"30000"`
}

// MigrationConfig holds the knobs that shape a migration run. The namespace
// and organization ID are deliberate constants per deployment: changing the
// namespace between runs breaks every derived reference.
type MigrationConfig struct {
	// TablePrefix is the legacy deployment's table name prefix (e.g.
	// "jeen_dev" gives jeen_dev_users, jeen_dev_folders, ...).
	TablePrefix string `yaml:"table_prefix" env:"MIGRATION_TABLE_PREFIX" env-default:"jeen_dev"`

	// NamespaceUUID is the fixed namespace for deterministic UUID
	// derivation. Must match the value used by any previous run against the
	// same target.
	NamespaceUUID string `yaml:"namespace_uuid" env:"MIGRATION_NAMESPACE_UUID" env-default:"0b1e4c6a-1f4a-4b6e-8c3d-2a5f7e9d0c1b"`

	// OrganizationID is the target organization every migrated user joins.
	OrganizationID string `yaml:"organization_id" env:"MIGRATION_ORGANIZATION_ID" env-default:"356b50f7-bcbd-42aa-9392-e1605f42f7a1"`

	// BatchSize bounds how many source rows are read and processed at once.
	BatchSize int `yaml:"batch_size" env:"MIGRATION_BATCH_SIZE" env-default:"500"`

	// DefaultEmbeddingModel is recorded on migrated embeddings when the
	// source row does not name one.
	DefaultEmbeddingModel string `yaml:"default_embedding_model" env:"MIGRATION_DEFAULT_EMBEDDING_MODEL" env-default:"BAAI/bge-m3"`

	// SkipEmptyEmbeddings drops chunk rows that carry no vector instead of
	// migrating the chunk without an embedding.
	SkipEmptyEmbeddings bool `yaml:"skip_empty_embeddings" env:"MIGRATION_SKIP_EMPTY_EMBEDDINGS" env-default:"false"`

	// FlattenFolders clears parent references on migrated folders. Declared
	// transformation policy for targets that do not support nesting yet.
	FlattenFolders bool `yaml:"flatten_folders" env:"MIGRATION_FLATTEN_FOLDERS" env-default:"false"`

	// TitleMaxLength bounds conversation titles taken from the first user
	// question.
	TitleMaxLength int `yaml:"title_max_length" env:"MIGRATION_TITLE_MAX_LENGTH" env-default:"120"`

	// ScriptDir is where script-mode SQL artifacts are written.
	ScriptDir string `yaml:"script_dir" env:"MIGRATION_SCRIPT_DIR" env-default:"./out"`

	// MaxRecordsPerInsert caps rows per multi-row INSERT in script mode.
	MaxRecordsPerInsert int `yaml:"max_records_per_insert" env:"MIGRATION_MAX_RECORDS_PER_INSERT" env-default:"50"`

	// MigrationsPath is the directory holding target schema DDL for the
	// setup command.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATION_MIGRATIONS_PATH" env-default:"./migrations"`
}

// LoggingConfig controls logger construction.
type LoggingConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	// File, if set, receives JSON logs rotated by size alongside console
	// output.
	File       string `yaml:"file" env:"LOG_FILE" env-default:""`
	MaxSizeMB  int    `yaml:"max_size_mb" env:"LOG_MAX_SIZE_MB" env-default:"50"`
	MaxBackups int    `yaml:"max_backups" env:"LOG_MAX_BACKUPS" env-default:"3"`
}

// Load reads configuration from the given YAML file with environment
// variable overrides. The version parameter is injected at build time and
// set on the returned Config. If the file does not exist, configuration
// comes from environment variables alone.
func Load(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the fields that every command depends on.
func (c *Config) Validate() error {
	if _, err := uuid.Parse(c.Migration.NamespaceUUID); err != nil {
		return fmt.Errorf("invalid migration.namespace_uuid %q: %w", c.Migration.NamespaceUUID, err)
	}
	if _, err := uuid.Parse(c.Migration.OrganizationID); err != nil {
		return fmt.Errorf("invalid migration.organization_id %q: %w", c.Migration.OrganizationID, err)
	}
	if c.Migration.TablePrefix == "" {
		return fmt.Errorf("migration.table_prefix must not be empty")
	}
	if c.Migration.BatchSize <= 0 {
		return fmt.Errorf("migration.batch_size must be positive, got %d", c.Migration.BatchSize)
	}
	return nil
}

// Namespace returns the parsed namespace UUID. Call after Validate.
func (c *MigrationConfig) Namespace() uuid.UUID {
	return uuid.MustParse(c.NamespaceUUID)
}

// Organization returns the parsed organization UUID. Call after Validate.
func (c *MigrationConfig) Organization() uuid.UUID {
	return uuid.MustParse(c.OrganizationID)
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
