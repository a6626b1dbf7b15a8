package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Migration: MigrationConfig{
			TablePrefix:    "jeen_dev",
			NamespaceUUID:  "0b1e4c6a-1f4a-4b6e-8c3d-2a5f7e9d0c1b",
			OrganizationID: "356b50f7-bcbd-42aa-9392-e1605f42f7a1",
			BatchSize:      500,
		},
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})

	t.Run("bad namespace uuid", func(t *testing.T) {
		cfg := validConfig()
		cfg.Migration.NamespaceUUID = "not-a-uuid"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "namespace_uuid")
	})

	t.Run("bad organization id", func(t *testing.T) {
		cfg := validConfig()
		cfg.Migration.OrganizationID = ""
		require.Error(t, cfg.Validate())
	})

	t.Run("empty table prefix", func(t *testing.T) {
		cfg := validConfig()
		cfg.Migration.TablePrefix = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "table_prefix")
	})

	t.Run("non-positive batch size", func(t *testing.T) {
		cfg := validConfig()
		cfg.Migration.BatchSize = 0
		require.Error(t, cfg.Validate())
	})
}

func TestParsedUUIDs(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uuid.MustParse("0b1e4c6a-1f4a-4b6e-8c3d-2a5f7e9d0c1b"), cfg.Migration.Namespace())
	assert.Equal(t, uuid.MustParse("356b50f7-bcbd-42aa-9392-e1605f42f7a1"), cfg.Migration.Organization())
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
env: test
source:
  host: legacy-db
  port: 5433
  database: legacy
target:
  host: target-db
  database: engine
migration:
  table_prefix: acme
  batch_size: 100
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path, "1.2.3")
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Env)
	assert.Equal(t, "1.2.3", cfg.Version)
	assert.Equal(t, "legacy-db", cfg.Source.Host)
	assert.Equal(t, 5433, cfg.Source.Port)
	assert.Equal(t, "engine", cfg.Target.Database)
	assert.Equal(t, "acme", cfg.Migration.TablePrefix)
	assert.Equal(t, 100, cfg.Migration.BatchSize)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Unset fields keep their declared defaults.
	assert.Equal(t, "0b1e4c6a-1f4a-4b6e-8c3d-2a5f7e9d0c1b", cfg.Migration.NamespaceUUID)
	assert.Equal(t, 50, cfg.Migration.MaxRecordsPerInsert)
}

func TestLoadMissingFileUsesEnv(t *testing.T) {
	t.Setenv("MIGRATION_TABLE_PREFIX", "envprefix")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), "dev")
	require.NoError(t, err)
	assert.Equal(t, "envprefix", cfg.Migration.TablePrefix)
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("migration:\n  namespace_uuid: not-a-uuid\n"), 0o644))

	_, err := Load(path, "dev")
	assert.Error(t, err)
}

func TestConnectionString(t *testing.T) {
	db := DatabaseConfig{
		Host: "h", Port: 5432, User: "u", Password: "p", Database: "d", SSLMode: "disable",
	}
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=d sslmode=disable", db.ConnectionString())
}
