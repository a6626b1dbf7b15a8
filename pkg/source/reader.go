package source

import (
	"context"
	"fmt"

	"github.com/nimbusworks/nimbus-migrate/pkg/database"
	"github.com/nimbusworks/nimbus-migrate/pkg/models"
)

// Reader pages through legacy tables in bounded batches. Ordering is always
// by primary key so paging is stable under concurrent source writes (the
// legacy system stays live during migration; late rows are picked up by a
// rerun thanks to idempotence).
type Reader struct {
	db     *database.DB
	prefix string
}

// NewReader creates a Reader over the source store for one table prefix.
func NewReader(db *database.DB, prefix string) *Reader {
	return &Reader{db: db, prefix: prefix}
}

// Count returns the row count of one logical table.
func (r *Reader) Count(ctx context.Context, logical string) (int64, error) {
	table, err := TableName(logical, r.prefix)
	if err != nil {
		return 0, err
	}
	var count int64
	err = r.db.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM public.%s", table)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return count, nil
}

// Users reads one batch of legacy user rows ordered by id.
func (r *Reader) Users(ctx context.Context, offset, limit int) ([]*models.LegacyUser, error) {
	table, _ := TableName(TableUsers, r.prefix)
	query := fmt.Sprintf(`
		SELECT id::text, name, last_name, email, job, department, phone_number,
		       company_name, company_name_in_hebrew, __group_id__::text, token_limit::text,
		       token_used, words_used, last_connected, times_connected,
		       letter_checkbox::text, azure_oid, model, history_categories,
		       enabled_features, subfeatures, created_at
		FROM public.%s
		ORDER BY id
		OFFSET $1 LIMIT $2`, table)

	rows, err := r.db.Query(ctx, query, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var out []*models.LegacyUser
	for rows.Next() {
		u := &models.LegacyUser{}
		err := rows.Scan(
			&u.ID, &u.Name, &u.LastName, &u.Email, &u.Job, &u.Department, &u.PhoneNumber,
			&u.CompanyName, &u.CompanyNameHebrew, &u.GroupID, &u.TokenLimit,
			&u.TokenUsed, &u.WordsUsed, &u.LastConnected, &u.TimesConnected,
			&u.LetterCheckbox, &u.AzureOID, &u.Model, &u.HistoryCategories,
			&u.EnabledFeatures, &u.Subfeatures, &u.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Folders reads one batch of legacy folder rows, parents before children
// (null parent_id sorts first) so a direct-write run inserts in a valid
// order even if the target ever enforces the parent FK.
func (r *Reader) Folders(ctx context.Context, offset, limit int) ([]*models.LegacyFolder, error) {
	table, _ := TableName(TableFolders, r.prefix)
	query := fmt.Sprintf(`
		SELECT id::text, folder_name, owner_id::text, parent_id::text, folder_type, created_at
		FROM public.%s
		ORDER BY COALESCE(parent_id::text, ''), id
		OFFSET $1 LIMIT $2`, table)

	rows, err := r.db.Query(ctx, query, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var out []*models.LegacyFolder
	for rows.Next() {
		f := &models.LegacyFolder{}
		if err := rows.Scan(&f.ID, &f.FolderName, &f.OwnerID, &f.ParentID, &f.FolderType, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Documents reads one batch of legacy document rows ordered by doc_id.
func (r *Reader) Documents(ctx context.Context, offset, limit int) ([]*models.LegacyDocument, error) {
	table, _ := TableName(TableDocuments, r.prefix)
	query := fmt.Sprintf(`
		SELECT doc_id::text, owner_id::text, doc_name_origin, doc_title, doc_size,
		       folder_id::text, doc_description, doc_type, doc_summery,
		       doc_summery_modified_by, doc_summery_modified_at::text, embedding_model,
		       blob_source, version::text, doc_checksum, tags, vector_methods,
		       data_integration_doc_metadata, created_at
		FROM public.%s
		ORDER BY doc_id
		OFFSET $1 LIMIT $2`, table)

	rows, err := r.db.Query(ctx, query, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var out []*models.LegacyDocument
	for rows.Next() {
		d := &models.LegacyDocument{}
		err := rows.Scan(
			&d.DocID, &d.OwnerID, &d.DocNameOrigin, &d.DocTitle, &d.DocSize,
			&d.FolderID, &d.DocDescription, &d.DocType, &d.DocSummery,
			&d.DocSummeryModifiedBy, &d.DocSummeryModifiedAt, &d.EmbeddingModel,
			&d.BlobSource, &d.Version, &d.DocChecksum, &d.Tags, &d.VectorMethods,
			&d.DataIntegrationDocMeta, &d.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Chunks reads one batch of legacy vector-store rows ordered for stable
// per-document chunk numbering: by the doc reference inside the metadata
// blob, then by row id. The vector table mixes chunk rows with index
// bookkeeping rows; only rows tagged chunk-data are chunks.
func (r *Reader) Chunks(ctx context.Context, offset, limit int) ([]*models.LegacyChunk, error) {
	table, _ := TableName(TableChunks, r.prefix)
	query := fmt.Sprintf(`
		SELECT id::text, external_id::text, collection, document, metadata, embeddings::text
		FROM public.%s
		WHERE metadata->>'type' = $1
		ORDER BY metadata->>'doc_id', id
		OFFSET $2 LIMIT $3`, table)

	rows, err := r.db.Query(ctx, query, models.ChunkMetadataType, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var out []*models.LegacyChunk
	for rows.Next() {
		c := &models.LegacyChunk{}
		if err := rows.Scan(&c.ID, &c.ExternalID, &c.Collection, &c.Document, &c.Metadata, &c.Embeddings); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ChatKeys reads one batch of distinct chat identifiers that have both an
// owner and a chat key; rows missing either are invisible to the
// conversation phase (the auditor reports how many there are).
func (r *Reader) ChatKeys(ctx context.Context, offset, limit int) ([]string, error) {
	table, _ := TableName(TableLogs, r.prefix)
	query := fmt.Sprintf(`
		SELECT DISTINCT chat_id::text
		FROM public.%s
		WHERE user_id IS NOT NULL AND chat_id IS NOT NULL
		ORDER BY chat_id::text
		OFFSET $1 LIMIT $2`, table)

	rows, err := r.db.Query(ctx, query, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan chat key: %w", err)
		}
		out = append(out, key)
	}
	return out, rows.Err()
}

// LogRows reads every log row of one chat, ordered by timestamp then id.
// One chat is one aggregate; it is never split across batches.
func (r *Reader) LogRows(ctx context.Context, chatKey string) ([]*models.LegacyLogRow, error) {
	table, _ := TableName(TableLogs, r.prefix)
	query := fmt.Sprintf(`
		SELECT id::text, user_id::text, chat_id::text, title, question,
		       question_in_english, answer, token_amount, words_amount,
		       calculated_time, type, bot_id::text, is_like, toolkit_settings,
		       category, sentiment, sourcetext, sourcelink, webpagelink,
		       documents_selected::text, created_at
		FROM public.%s
		WHERE chat_id::text = $1 AND user_id IS NOT NULL
		ORDER BY created_at NULLS LAST, id`, table)

	rows, err := r.db.Query(ctx, query, chatKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var out []*models.LegacyLogRow
	for rows.Next() {
		l := &models.LegacyLogRow{}
		err := rows.Scan(
			&l.ID, &l.UserID, &l.ChatID, &l.Title, &l.Question,
			&l.QuestionInEnglish, &l.Answer, &l.TokenAmount, &l.WordsAmount,
			&l.CalculatedTime, &l.Type, &l.BotID, &l.IsLike, &l.ToolkitSettings,
			&l.Category, &l.Sentiment, &l.SourceText, &l.SourceLink, &l.WebpageLink,
			&l.DocumentsSelected, &l.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// UserLegacyKeys returns the set of user ids present in the legacy users
// table. The auditor uses it to resolve orphan references source-side.
func (r *Reader) UserLegacyKeys(ctx context.Context) (map[string]bool, error) {
	table, _ := TableName(TableUsers, r.prefix)
	rows, err := r.db.Query(ctx, fmt.Sprintf("SELECT id::text FROM public.%s", table))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	keys := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user key: %w", err)
		}
		keys[id] = true
	}
	return keys, rows.Err()
}
