package script

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SQL literal rendering for generated artifacts. Everything is escaped by
// single-quote doubling; the artifacts target standard_conforming_strings,
// which every supported Postgres defaults to.

func escapeString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func quote(s string) string {
	return "'" + escapeString(s) + "'"
}

// quoteNullable renders a *string, NULL when absent.
func quoteNullable(s *string) string {
	if s == nil {
		return "NULL"
	}
	return quote(*s)
}

func uuidLiteral(id uuid.UUID) string {
	return "'" + id.String() + "'::uuid"
}

func uuidNullable(id *uuid.UUID) string {
	if id == nil {
		return "NULL"
	}
	return uuidLiteral(*id)
}

func timestampLiteral(t time.Time) string {
	return "'" + t.UTC().Format("2006-01-02 15:04:05.999999+00") + "'::timestamptz"
}

func jsonLiteral(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "'{}'::jsonb"
	}
	return "'" + escapeString(string(raw)) + "'::jsonb"
}

func intLiteral[T int | int64](v T) string {
	return fmt.Sprintf("%d", v)
}

func intNullable(v *int64) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%d", *v)
}

func boolLiteral(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func vectorLiteral(v string) string {
	return quote(v) + "::vector"
}
