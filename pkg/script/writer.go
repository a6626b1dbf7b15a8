// Package script renders migration output as reviewable SQL artifacts
// instead of writing to the target store. Every generated INSERT carries its
// own existence guard, and dependent rows look their owner up at execution
// time through the legacyData metadata, so the artifacts are safe to execute
// more than once and safe to execute after (or instead of) a direct run.
package script

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nimbusworks/nimbus-migrate/pkg/migrator"
	"github.com/nimbusworks/nimbus-migrate/pkg/models"
	"github.com/nimbusworks/nimbus-migrate/pkg/transform"
)

// Writer satisfies the migration sink contract.
var _ migrator.Sink = (*Writer)(nil)

const (
	phaseUsers         = "users"
	phaseFolders       = "folders"
	phaseDocuments     = "documents"
	phaseConversations = "conversations"
	phaseChunks        = "chunks"
)

type phase struct {
	fileName   string
	title      string
	target     string
	extensions []string
	orgNotice  bool

	buf   bytes.Buffer
	count int
}

// Writer buffers generated SQL per phase and writes one artifact per phase
// on Close. It satisfies the migrator's sink contract: existence resolution
// always comes back empty because the artifacts carry their own guards.
type Writer struct {
	dir        string
	sourceInfo string
	org        uuid.UUID
	maxRecords int
	logger     *zap.Logger

	order  []string
	phases map[string]*phase
}

// NewWriter creates a Writer emitting artifacts under dir. sourceInfo
// appears in artifact headers so a reviewer can tell which deployment the
// SQL was generated from.
func NewWriter(dir, sourceInfo string, org uuid.UUID, maxRecords int, logger *zap.Logger) *Writer {
	if maxRecords <= 0 {
		maxRecords = 50
	}
	return &Writer{
		dir:        dir,
		sourceInfo: sourceInfo,
		org:        org,
		maxRecords: maxRecords,
		logger:     logger,
		order:      []string{phaseUsers, phaseFolders, phaseDocuments, phaseConversations, phaseChunks},
		phases: map[string]*phase{
			phaseUsers: {
				fileName:  "01_users_migration.sql",
				title:     "USERS MIGRATION SQL",
				target:    "public.users",
				orgNotice: true,
			},
			phaseFolders: {
				fileName:   "02_folders_migration.sql",
				title:      "FOLDERS MIGRATION SQL",
				target:     "public.folders",
				extensions: []string{`"uuid-ossp"`},
			},
			phaseDocuments: {
				fileName:   "03_documents_migration.sql",
				title:      "DOCUMENTS MIGRATION SQL",
				target:     "public.documents",
				extensions: []string{`"uuid-ossp"`},
			},
			phaseConversations: {
				fileName:   "04_conversations_migration.sql",
				title:      "CONVERSATIONS MIGRATION SQL",
				target:     "public.conversations (+ messages, message_content_blocks)",
				extensions: []string{`"uuid-ossp"`},
			},
			phaseChunks: {
				fileName:   "05_chunks_migration.sql",
				title:      "CHUNKS MIGRATION SQL",
				target:     "public.chunks (+ embeddings)",
				extensions: []string{`"uuid-ossp"`, "vector"},
			},
		},
	}
}

func (w *Writer) PutUser(ctx context.Context, user *models.User) (bool, error) {
	p := w.phases[phaseUsers]
	fmt.Fprintf(&p.buf, `
-- User: %s
DO $$
BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM public.users
        WHERE email = %s OR metadata->'legacyData'->>'id' = %s
    ) THEN
        INSERT INTO public.users (
            id, email, first_name, last_name, username,
            metadata, organization_id, is_owner, created_at, updated_at
        ) VALUES (
            %s, %s, %s, %s, %s,
            %s, %s, %s, %s, now()
        );
    END IF;
END $$;
`,
		escapeString(user.Email),
		quote(user.Email), quote(user.LegacyID),
		uuidLiteral(user.ID), quote(user.Email), quoteNullable(user.FirstName),
		quoteNullable(user.LastName), quoteNullable(user.Username),
		jsonLiteral(user.Metadata), uuidLiteral(user.OrganizationID),
		boolLiteral(user.IsOwner), timestampLiteral(user.CreatedAt),
	)
	p.count++
	return true, nil
}

// PutFolder resolves the owner at execution time: the user UUID assigned
// during generation only exists if the guarded users artifact actually
// inserted that user, so the artifact looks it up through the legacyData
// metadata instead and skips the folder when the owner is absent.
func (w *Writer) PutFolder(ctx context.Context, folder *models.Folder) (bool, error) {
	p := w.phases[phaseFolders]
	fmt.Fprintf(&p.buf, `
-- Folder: %s (legacy %s, owner %s)
DO $$
DECLARE
    v_user_id uuid;
BEGIN
    SELECT id INTO v_user_id
    FROM public.users
    WHERE metadata->'legacyData'->>'id' = %s;

    IF v_user_id IS NULL THEN
        RAISE NOTICE 'Skipping folder %% - user %% not found', %s, %s;
        RETURN;
    END IF;

    IF NOT EXISTS (SELECT 1 FROM public.folders WHERE id = %s) THEN
        INSERT INTO public.folders (
            id, folder_name, parent_id, folder_type, user_id, created_at, updated_at
        ) VALUES (
            %s, %s, %s, %s, v_user_id, %s, now()
        );
    END IF;
END $$;
`,
		folder.ID, escapeString(folder.LegacyID), escapeString(folder.LegacyOwnerID),
		quote(folder.LegacyOwnerID),
		quote(folder.LegacyID), quote(folder.LegacyOwnerID),
		uuidLiteral(folder.ID),
		uuidLiteral(folder.ID), quoteNullable(folder.FolderName), uuidNullable(folder.ParentID),
		quote(folder.FolderType), timestampLiteral(folder.CreatedAt),
	)
	p.count++
	return true, nil
}

func (w *Writer) PutDocument(ctx context.Context, doc *models.Document) (bool, error) {
	p := w.phases[phaseDocuments]
	fmt.Fprintf(&p.buf, `
-- Document: %s (legacy %s, owner %s)
DO $$
DECLARE
    v_user_id uuid;
BEGIN
    SELECT id INTO v_user_id
    FROM public.users
    WHERE metadata->'legacyData'->>'id' = %s;

    IF v_user_id IS NULL THEN
        RAISE NOTICE 'Skipping document %% - user %% not found', %s, %s;
        RETURN;
    END IF;

    IF NOT EXISTS (
        SELECT 1 FROM public.documents
        WHERE metadata->'legacyData'->>'doc_id' = %s
    ) THEN
        INSERT INTO public.documents (
            id, status, file_name, file_size, storage_type, storage_path,
            content_type, source_type, metadata, folder_id, user_id,
            created_at, updated_at
        ) VALUES (
            %s, %s, %s, %s, %s, %s,
            %s, %s, %s, %s, v_user_id,
            %s, now()
        );
    END IF;
END $$;
`,
		escapeString(doc.FileName), escapeString(doc.LegacyID), escapeString(doc.LegacyOwnerID),
		quote(doc.LegacyOwnerID),
		quote(doc.LegacyID), quote(doc.LegacyOwnerID),
		quote(doc.LegacyID),
		uuidLiteral(doc.ID), quote(doc.Status), quote(doc.FileName),
		intLiteral(doc.FileSize), quoteNullable(doc.StorageType), quote(doc.StoragePath),
		quote(doc.ContentType), quote(doc.SourceType), jsonLiteral(doc.Metadata),
		uuidNullable(doc.FolderID),
		timestampLiteral(doc.CreatedAt),
	)
	p.count++
	return true, nil
}

func (w *Writer) PutConversation(ctx context.Context, agg *transform.ConversationAggregate) (bool, error) {
	p := w.phases[phaseConversations]
	conv := &agg.Conversation

	fmt.Fprintf(&p.buf, `
-- Conversation: %s (legacy chat %s, owner %s, %d turns)
DO $$
DECLARE
    v_user_id uuid;
BEGIN
    SELECT id INTO v_user_id
    FROM public.users
    WHERE metadata->'legacyData'->>'id' = %s;

    IF v_user_id IS NULL THEN
        RAISE NOTICE 'Skipping conversation %% - user %% not found', %s, %s;
        RETURN;
    END IF;

    IF NOT EXISTS (SELECT 1 FROM public.conversations WHERE id = %s) THEN
        INSERT INTO public.conversations (
            id, title, message_count, total_tokens, is_active,
            user_id, created_at, updated_at, last_interacted_at
        ) VALUES (
            %s, %s, %s, %s, %s,
            v_user_id, %s, %s, %s
        );
`,
		conv.ID, escapeString(conv.LegacyChatID), escapeString(conv.LegacyOwnerID), len(agg.Turns),
		quote(conv.LegacyOwnerID),
		quote(conv.LegacyChatID), quote(conv.LegacyOwnerID),
		uuidLiteral(conv.ID),
		uuidLiteral(conv.ID), quoteNullable(conv.Title), intLiteral(conv.MessageCount),
		intLiteral(conv.TotalTokens), boolLiteral(conv.IsActive),
		timestampLiteral(conv.CreatedAt),
		timestampLiteral(conv.UpdatedAt), timestampLiteral(conv.LastInteractedAt),
	)

	messages := make([]*models.Message, 0, len(agg.Turns)*2)
	blocks := make([]*models.ContentBlock, 0, len(agg.Turns)*2)
	for i := range agg.Turns {
		t := &agg.Turns[i]
		messages = append(messages, &t.UserMessage, &t.AssistantMessage)
		blocks = append(blocks, &t.UserBlock, &t.AssistantBlock)
	}

	for start := 0; start < len(messages); start += w.maxRecords {
		end := min(start+w.maxRecords, len(messages))
		p.buf.WriteString(`
        INSERT INTO public.messages (
            id, conversation_id, parent_message_id, role, has_tool_calls,
            iteration_count, content_block_count, finish_reason, user_id,
            metadata, created_at, updated_at
        ) VALUES`)
		for i, m := range messages[start:end] {
			sep := ","
			if i == end-start-1 {
				sep = ";"
			}
			fmt.Fprintf(&p.buf, `
            (%s, %s, %s, %s, %s, %s, %s, %s, v_user_id, %s, %s, %s)%s`,
				uuidLiteral(m.ID), uuidLiteral(m.ConversationID), uuidNullable(m.ParentMessageID),
				quote(m.Role), boolLiteral(m.HasToolCalls), intLiteral(m.IterationCount),
				intLiteral(m.ContentBlockCount), quoteNullable(m.FinishReason),
				jsonLiteral(m.Metadata),
				timestampLiteral(m.CreatedAt), timestampLiteral(m.UpdatedAt), sep)
		}
		p.buf.WriteString("\n")
	}

	for start := 0; start < len(blocks); start += w.maxRecords {
		end := min(start+w.maxRecords, len(blocks))
		p.buf.WriteString(`
        INSERT INTO public.message_content_blocks (
            id, message_id, sequence, type, content, execution_time_ms, created_at
        ) VALUES`)
		for i, b := range blocks[start:end] {
			sep := ","
			if i == end-start-1 {
				sep = ";"
			}
			fmt.Fprintf(&p.buf, `
            (%s, %s, %s, %s, %s, %s, %s)%s`,
				uuidLiteral(b.ID), uuidLiteral(b.MessageID), intLiteral(b.Sequence),
				quote(b.Type), jsonLiteral(b.Content), intNullable(b.ExecutionTimeMS),
				timestampLiteral(b.CreatedAt), sep)
		}
		p.buf.WriteString("\n")
	}

	p.buf.WriteString(`
    END IF;
END $$;
`)
	p.count++
	return true, nil
}

func (w *Writer) PutChunk(ctx context.Context, chunk *models.Chunk, embedding *models.Embedding) (bool, error) {
	p := w.phases[phaseChunks]
	fmt.Fprintf(&p.buf, `
-- Chunk: legacy %s (doc %s, index %d)
DO $$
DECLARE
    v_document_id uuid;
BEGIN
    SELECT id INTO v_document_id
    FROM public.documents
    WHERE metadata->'legacyData'->>'doc_id' = %s;

    IF v_document_id IS NULL THEN
        RAISE NOTICE 'Skipping chunk %% - document %% not found', %s, %s;
        RETURN;
    END IF;

    IF NOT EXISTS (SELECT 1 FROM public.chunks WHERE id = %s) THEN
        INSERT INTO public.chunks (
            id, document_id, chunk_index, content, content_type, page_number,
            char_count, word_count, metadata, translated_content, created_at
        ) VALUES (
            %s, v_document_id, %s, %s, %s, %s,
            %s, %s, %s, %s, %s
        );
`,
		escapeString(chunk.LegacyID), escapeString(chunk.LegacyDocID), chunk.ChunkIndex,
		quote(chunk.LegacyDocID),
		quote(chunk.LegacyID), quote(chunk.LegacyDocID),
		uuidLiteral(chunk.ID),
		uuidLiteral(chunk.ID), intLiteral(chunk.ChunkIndex),
		quote(chunk.Content), quote(chunk.ContentType), intNullablePage(chunk.PageNumber),
		intLiteral(chunk.CharCount), intLiteral(chunk.WordCount), jsonLiteral(chunk.Metadata),
		quoteNullable(chunk.TranslatedContent), timestampLiteral(chunk.CreatedAt),
	)

	if embedding != nil {
		fmt.Fprintf(&p.buf, `
        INSERT INTO public.embeddings (
            id, chunk_id, document_id, vector, model_name, created_at
        ) VALUES (
            %s, %s, v_document_id, %s, %s, %s
        );
`,
			uuidLiteral(embedding.ID), uuidLiteral(embedding.ChunkID),
			vectorLiteral(embedding.Vector),
			quote(embedding.ModelName), timestampLiteral(embedding.CreatedAt),
		)
	}

	p.buf.WriteString(`
    END IF;
END $$;
`)
	p.count++
	return true, nil
}

// ExistingUserIDs always comes back empty: script mode never reads the
// target, the generated guards handle reruns instead.
func (w *Writer) ExistingUserIDs(ctx context.Context) (map[string]uuid.UUID, error) {
	return map[string]uuid.UUID{}, nil
}

func (w *Writer) ExistingDocumentIDs(ctx context.Context) (map[string]uuid.UUID, error) {
	return map[string]uuid.UUID{}, nil
}

// Close writes one artifact per phase. Phases with no records still get an
// artifact, so a reviewer sees an explicit empty file rather than a gap.
func (w *Writer) Close(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create script directory: %w", err)
	}

	for _, name := range w.order {
		p := w.phases[name]
		path := filepath.Join(w.dir, p.fileName)

		var out bytes.Buffer
		w.writeHeader(&out, p)
		out.Write(p.buf.Bytes())
		fmt.Fprintf(&out, "\n-- Total records: %d\n", p.count)

		if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		w.logger.Info("artifact written",
			zap.String("file", path),
			zap.Int("records", p.count))
	}
	return nil
}

func (w *Writer) writeHeader(out *bytes.Buffer, p *phase) {
	timestamp := time.Now().UTC().Format(time.RFC3339)

	fmt.Fprintf(out, `-- ============================================================
-- %s
-- ============================================================
-- Generated: %s
-- Source: %s
-- Destination: %s
-- Records to migrate: %d
--
-- IMPORTANT: This script will INSERT records into the target database!
-- IMPORTANT: Review organization_id and other constants before execution!
--
-- Each INSERT checks if the record already exists before inserting.
-- ============================================================

`, p.title, timestamp, w.sourceInfo, p.target, p.count)

	for _, ext := range p.extensions {
		fmt.Fprintf(out, "CREATE EXTENSION IF NOT EXISTS %s;\n", ext)
	}
	if len(p.extensions) > 0 {
		out.WriteString("\n")
	}

	fmt.Fprintf(out, `DO $$
BEGIN
    RAISE NOTICE '============================================================';
    RAISE NOTICE '%s - STARTING';
    RAISE NOTICE 'Migrating %d records to: %s';
`, p.title, p.count, p.target)
	if p.orgNotice {
		fmt.Fprintf(out, "    RAISE NOTICE 'Organization ID: %s';\n", w.org)
	}
	fmt.Fprintf(out, `    RAISE NOTICE 'Generated: %s';
    RAISE NOTICE '============================================================';
END $$;
`, timestamp)
}

func intNullablePage(v *int) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%d", *v)
}
