// Package source reads the legacy schema. It is the only package that knows
// legacy table names and column sets; everything it returns is already a
// typed models.Legacy* row. Read access only — the source pool is opened
// read-only and no statement here mutates.
package source

import (
	"fmt"

	"github.com/nimbusworks/nimbus-migrate/pkg/apperrors"
)

// Logical table names within the legacy schema.
const (
	TableUsers     = "users"
	TableFolders   = "folders"
	TableDocuments = "custom_documents"
	TableLogs      = "logs"
	TableChunks    = "embeddings"
)

// tableTemplates maps logical names to prefix-templated physical names.
// The legacy vector-store table is the bare prefix itself, a quirk of the
// original deployment kept here verbatim.
var tableTemplates = map[string]string{
	TableUsers:     "%s_users",
	TableFolders:   "%s_folders",
	TableDocuments: "%s_custom_documents",
	TableLogs:      "%s_logs",
	TableChunks:    "%s",
}

// TableName resolves a logical table to its physical name under a prefix.
func TableName(logical, prefix string) (string, error) {
	tmpl, ok := tableTemplates[logical]
	if !ok {
		return "", fmt.Errorf("%w: %q", apperrors.ErrUnknownTable, logical)
	}
	return fmt.Sprintf(tmpl, prefix), nil
}

// AllTables lists every logical legacy table the engine touches.
func AllTables() []string {
	return []string{TableUsers, TableFolders, TableDocuments, TableLogs, TableChunks}
}
