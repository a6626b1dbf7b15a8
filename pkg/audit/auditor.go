// Package audit inspects the legacy schema before a migration run and
// reports what a run would skip or lose: orphaned references, malformed
// payloads, duplicate keys, username collisions. Read-only; never touches
// the target.
package audit

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nimbusworks/nimbus-migrate/pkg/database"
	"github.com/nimbusworks/nimbus-migrate/pkg/logging"
	"github.com/nimbusworks/nimbus-migrate/pkg/source"
)

// Auditor runs the pre-migration check suite against the source store.
type Auditor struct {
	db     *database.DB
	prefix string
	logger *zap.Logger
}

// NewAuditor creates an Auditor over the source store for one table prefix.
func NewAuditor(db *database.DB, prefix string, logger *zap.Logger) *Auditor {
	return &Auditor{db: db, prefix: prefix, logger: logger}
}

// check is one named audit query. Queries are generated from the table
// prefix, never from user input.
type check struct {
	name  string
	query string
}

type section struct {
	name   string
	checks []check
}

// Run executes every check and returns the assembled report. A failing
// check is recorded in the report and does not stop the others: a partial
// audit of a flaky source is still worth reading.
func (a *Auditor) Run(ctx context.Context) (*Report, error) {
	report := NewReport(a.prefix)

	for _, sec := range a.sections() {
		rs := report.Section(sec.name)
		for _, c := range sec.checks {
			result := a.runCheck(ctx, c)
			if result.Err != nil {
				a.logger.Warn("audit check failed",
					zap.String("section", sec.name),
					zap.String("check", c.name),
					zap.String("query", logging.SanitizeQuery(c.query)),
					zap.Error(result.Err))
			}
			rs.Add(result)
		}
	}

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (a *Auditor) runCheck(ctx context.Context, c check) CheckResult {
	result := CheckResult{Name: c.name}

	rows, err := a.db.Query(ctx, c.query)
	if err != nil {
		result.Err = fmt.Errorf("failed to run check: %w", err)
		return result
	}
	defer rows.Close()

	for _, fd := range rows.FieldDescriptions() {
		result.Columns = append(result.Columns, string(fd.Name))
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			result.Err = fmt.Errorf("failed to read check row: %w", err)
			return result
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = formatValue(v)
		}
		result.Rows = append(result.Rows, row)
	}
	result.Err = rows.Err()
	return result
}

func formatValue(v any) string {
	if v == nil {
		return "(null)"
	}
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func (a *Auditor) table(logical string) string {
	name, err := source.TableName(logical, a.prefix)
	if err != nil {
		// Logical names here are package constants; an unknown one is a
		// programming error.
		panic(err)
	}
	return "public." + name
}

func (a *Auditor) sections() []section {
	users := a.table(source.TableUsers)
	folders := a.table(source.TableFolders)
	docs := a.table(source.TableDocuments)
	logs := a.table(source.TableLogs)
	chunks := a.table(source.TableChunks)

	return []section{
		{
			name: "row counts",
			checks: []check{
				{"table sizes", fmt.Sprintf(`
					SELECT 'users' AS tbl, COUNT(*) AS rows FROM %s
					UNION ALL SELECT 'folders', COUNT(*) FROM %s
					UNION ALL SELECT 'documents', COUNT(*) FROM %s
					UNION ALL SELECT 'logs', COUNT(*) FROM %s
					UNION ALL SELECT 'vector rows', COUNT(*) FROM %s
					ORDER BY tbl`, users, folders, docs, logs, chunks)},
			},
		},
		{
			name: "users",
			checks: []check{
				{"top users by logs", fmt.Sprintf(`
					SELECT u.id::text, u.email, COUNT(l.id) AS log_count
					FROM %s u JOIN %s l ON l.user_id = u.id
					GROUP BY u.id, u.email
					ORDER BY log_count DESC
					LIMIT 10`, users, logs)},
				{"top users by documents", fmt.Sprintf(`
					SELECT u.id::text, u.email, COUNT(d.doc_id) AS doc_count
					FROM %s u JOIN %s d ON d.owner_id = u.id
					GROUP BY u.id, u.email
					ORDER BY doc_count DESC
					LIMIT 10`, users, docs)},
				{"top users by chunks", fmt.Sprintf(`
					SELECT u.id::text, u.email, COUNT(c.id) AS chunk_count
					FROM %s u JOIN %s c ON c.metadata->>'user_id' = u.id::text
					WHERE c.metadata->>'type' = 'chunk-data'
					GROUP BY u.id, u.email
					ORDER BY chunk_count DESC
					LIMIT 10`, users, chunks)},
				{"users without email (will be skipped)", fmt.Sprintf(`
					SELECT id::text, name, last_name, created_at::text
					FROM %s
					WHERE TRIM(COALESCE(email, '')) = ''`, users)},
				{"username collisions", fmt.Sprintf(`
					SELECT REPLACE(LOWER(SPLIT_PART(email, '@', 1)), '.', '') AS username,
					       COUNT(*) AS occurrences,
					       STRING_AGG(email, ', ') AS emails
					FROM %s
					WHERE TRIM(COALESCE(email, '')) <> ''
					GROUP BY 1
					HAVING COUNT(*) > 1
					ORDER BY occurrences DESC`, users)},
			},
		},
		{
			name: "folders",
			checks: []check{
				{"hierarchy depth", fmt.Sprintf(`
					WITH RECURSIVE tree AS (
						SELECT id, parent_id, 1 AS depth FROM %s WHERE parent_id IS NULL
						UNION ALL
						SELECT f.id, f.parent_id, t.depth + 1
						FROM %s f JOIN tree t ON f.parent_id = t.id
					)
					SELECT depth, COUNT(*) AS folder_count
					FROM tree GROUP BY depth ORDER BY depth`, folders, folders)},
				{"type distribution", fmt.Sprintf(`
					SELECT COALESCE(folder_type, '(none)') AS folder_type, COUNT(*) AS cnt
					FROM %s GROUP BY folder_type ORDER BY cnt DESC`, folders)},
				{"orphaned parent references", fmt.Sprintf(`
					SELECT f.id::text, f.folder_name, f.parent_id::text
					FROM %s f
					WHERE f.parent_id IS NOT NULL
					  AND NOT EXISTS (SELECT 1 FROM %s p WHERE p.id = f.parent_id)
					LIMIT 50`, folders, folders)},
			},
		},
		{
			name: "documents",
			checks: []check{
				{"doc type distribution", fmt.Sprintf(`
					SELECT COALESCE(doc_type, '(none)') AS doc_type, COUNT(*) AS cnt
					FROM %s GROUP BY doc_type ORDER BY cnt DESC`, docs)},
				{"blob source distribution", fmt.Sprintf(`
					SELECT COALESCE(blob_source, '(none)') AS blob_source, COUNT(*) AS cnt
					FROM %s GROUP BY blob_source ORDER BY cnt DESC`, docs)},
				{"documents without valid owner (will be skipped)", fmt.Sprintf(`
					SELECT COUNT(*) AS orphaned_docs
					FROM %s d
					WHERE NOT EXISTS (SELECT 1 FROM %s u WHERE u.id = d.owner_id)`, docs, users)},
				{"documents with missing folder (migrated anyway)", fmt.Sprintf(`
					SELECT COUNT(*) AS docs_with_missing_folder
					FROM %s d
					WHERE d.folder_id IS NOT NULL
					  AND NOT EXISTS (SELECT 1 FROM %s f WHERE f.id = d.folder_id)`, docs, folders)},
				{"duplicate doc_ids", fmt.Sprintf(`
					SELECT doc_id::text, COUNT(*) AS occurrences
					FROM %s
					GROUP BY doc_id
					HAVING COUNT(*) > 1
					ORDER BY occurrences DESC
					LIMIT 20`, docs)},
			},
		},
		{
			name: "chunks",
			checks: []check{
				{"metadata type distribution", fmt.Sprintf(`
					SELECT COALESCE(metadata->>'type', '(none)') AS metadata_type, COUNT(*) AS cnt
					FROM %s GROUP BY 1 ORDER BY cnt DESC`, chunks)},
				{"chunks per document (top 20)", fmt.Sprintf(`
					SELECT metadata->>'doc_id' AS doc_id, COUNT(*) AS chunk_count
					FROM %s
					WHERE metadata->>'type' = 'chunk-data'
					GROUP BY 1
					ORDER BY chunk_count DESC
					LIMIT 20`, chunks)},
				{"chunks without valid document (will be skipped)", fmt.Sprintf(`
					SELECT COUNT(*) AS orphaned_chunks,
					       COUNT(DISTINCT metadata->>'doc_id') AS orphaned_doc_ids
					FROM %s c
					WHERE c.metadata->>'type' = 'chunk-data'
					  AND NOT EXISTS (
						SELECT 1 FROM %s d WHERE d.doc_id::text = c.metadata->>'doc_id'
					  )`, chunks, docs)},
				{"chunks without embeddings", fmt.Sprintf(`
					SELECT COUNT(*) AS chunks_without_embeddings
					FROM %s
					WHERE metadata->>'type' = 'chunk-data'
					  AND embeddings IS NULL`, chunks)},
				{"embedding dimension histogram", fmt.Sprintf(`
					SELECT array_length(string_to_array(TRIM(BOTH '[]' FROM embeddings::text), ','), 1) AS dimension,
					       COUNT(*) AS cnt
					FROM %s
					WHERE metadata->>'type' = 'chunk-data'
					  AND embeddings IS NOT NULL
					GROUP BY 1
					ORDER BY cnt DESC`, chunks)},
			},
		},
		{
			name: "conversations",
			checks: []check{
				{"top users by conversations", fmt.Sprintf(`
					SELECT u.id::text, u.email, COUNT(DISTINCT l.chat_id) AS conversation_count
					FROM %s u JOIN %s l ON l.user_id = u.id
					WHERE l.chat_id IS NOT NULL
					GROUP BY u.id, u.email
					ORDER BY conversation_count DESC
					LIMIT 10`, users, logs)},
				{"conversation size distribution", fmt.Sprintf(`
					WITH sizes AS (
						SELECT chat_id, COUNT(*) AS cnt
						FROM %s
						WHERE user_id IS NOT NULL AND chat_id IS NOT NULL
						GROUP BY chat_id
					)
					SELECT CASE
						WHEN cnt = 1 THEN '1 turn'
						WHEN cnt <= 5 THEN '2-5 turns'
						WHEN cnt <= 20 THEN '6-20 turns'
						ELSE '21+ turns'
					END AS bucket, COUNT(*) AS conversations
					FROM sizes GROUP BY 1 ORDER BY 1`, logs)},
				{"logs without user (invisible to migration)", fmt.Sprintf(`
					SELECT COUNT(*) AS logs_without_user,
					       COUNT(DISTINCT chat_id) AS chats_affected
					FROM %s WHERE user_id IS NULL`, logs)},
				{"logs without chat key (invisible to migration)", fmt.Sprintf(`
					SELECT COUNT(*) AS logs_without_chat_id
					FROM %s
					WHERE chat_id IS NULL OR TRIM(chat_id::text) = ''`, logs)},
				{"non-uuid chat keys (conversation id will be derived)", fmt.Sprintf(`
					SELECT chat_id::text, COUNT(*) AS log_count
					FROM %s
					WHERE user_id IS NOT NULL AND chat_id IS NOT NULL
					  AND chat_id::text !~ '^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$'
					GROUP BY chat_id
					ORDER BY log_count DESC
					LIMIT 20`, logs)},
				{"question extraction issues (text falls back to empty)", fmt.Sprintf(`
					SELECT id::text AS legacy_log_id,
					       LEFT(COALESCE(question_in_english, ''), 80) AS fallback_question,
					       LEFT(COALESCE(answer, ''), 80) AS answer_preview
					FROM %s
					WHERE user_id IS NOT NULL AND chat_id IS NOT NULL
					  AND (question::jsonb->1->>'value' IS NULL
					       OR TRIM(question::jsonb->1->>'value') = '')
					LIMIT 20`, logs)},
				{"bot usage distribution", fmt.Sprintf(`
					SELECT COALESCE(bot_id::text, '(none)') AS bot_id, COUNT(*) AS usage_count
					FROM %s
					WHERE user_id IS NOT NULL
					GROUP BY 1
					ORDER BY usage_count DESC
					LIMIT 20`, logs)},
				{"model usage distribution", fmt.Sprintf(`
					SELECT COALESCE(toolkit_settings::jsonb->>'model', '(unknown)') AS model_name,
					       COUNT(*) AS usage_count
					FROM %s
					WHERE user_id IS NOT NULL
					GROUP BY 1
					ORDER BY usage_count DESC`, logs)},
				{"token statistics", fmt.Sprintf(`
					SELECT COUNT(*) AS total_turns,
					       SUM(token_amount)::bigint AS total_tokens,
					       ROUND(AVG(token_amount), 0) AS avg_tokens_per_turn,
					       MAX(token_amount) AS max_tokens,
					       PERCENTILE_CONT(0.95) WITHIN GROUP (ORDER BY token_amount) AS p95_tokens
					FROM %s
					WHERE user_id IS NOT NULL AND token_amount IS NOT NULL`, logs)},
			},
		},
		{
			name: "data loss risk",
			checks: []check{
				{"rows a run would skip, by cause", fmt.Sprintf(`
					SELECT 'users without email' AS risk, COUNT(*) AS rows_at_risk
					FROM %s WHERE TRIM(COALESCE(email, '')) = ''
					UNION ALL
					SELECT 'folders without valid user', COUNT(*)
					FROM %s f
					WHERE NOT EXISTS (SELECT 1 FROM %s u WHERE u.id = f.owner_id)
					UNION ALL
					SELECT 'documents without valid user', COUNT(*)
					FROM %s d
					WHERE NOT EXISTS (SELECT 1 FROM %s u WHERE u.id = d.owner_id)
					UNION ALL
					SELECT 'logs without valid user', COUNT(*)
					FROM %s l
					WHERE l.user_id IS NOT NULL
					  AND NOT EXISTS (SELECT 1 FROM %s u WHERE u.id = l.user_id)
					UNION ALL
					SELECT 'chunks without valid document', COUNT(*)
					FROM %s c
					WHERE c.metadata->>'type' = 'chunk-data'
					  AND NOT EXISTS (
						SELECT 1 FROM %s d WHERE d.doc_id::text = c.metadata->>'doc_id'
					  )
					ORDER BY rows_at_risk DESC`,
					users, folders, users, docs, users, logs, users, chunks, docs)},
			},
		},
	}
}
