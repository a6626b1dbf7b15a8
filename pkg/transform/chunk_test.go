package transform

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusworks/nimbus-migrate/pkg/models"
)

func chunkContext(docs map[string]uuid.UUID) *Context {
	ctx := testContext()
	ctx.ResolveDocument = resolverFor(docs)
	ctx.DefaultEmbeddingModel = "text-embedding-ada-002"
	return ctx
}

func TestSplitChunkContent(t *testing.T) {
	tests := []struct {
		name       string
		document   string
		original   string
		translated *string
	}{
		{
			name:     "no markers returns whole text",
			document: "plain chunk text",
			original: "plain chunk text",
		},
		{
			name:     "empty document",
			document: "",
			original: "",
		},
		{
			name:       "both sections",
			document:   "excerptKeywords: kw\n\ntranslated_content:\nHello\n\noriginal_content:\nשלום",
			original:   "שלום",
			translated: strPtr("Hello"),
		},
		{
			name:     "original only",
			document: "original_content:\nbody text",
			original: "body text",
		},
		{
			name:     "empty original falls back to whole document",
			document: "original_content:",
			original: "original_content:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original, translated := splitChunkContent(tt.document)
			assert.Equal(t, tt.original, original)
			if tt.translated == nil {
				assert.Nil(t, translated)
			} else {
				require.NotNil(t, translated)
				assert.Equal(t, *tt.translated, *translated)
			}
		})
	}
}

func TestFileTypeFor(t *testing.T) {
	assert.Equal(t, "pdf", fileTypeFor("Report.PDF"))
	assert.Equal(t, "docx", fileTypeFor("letter.docx"))
	assert.Equal(t, "unknown", fileTypeFor("archive.zip"))
	assert.Equal(t, "unknown", fileTypeFor(""))
}

func TestChunkSkips(t *testing.T) {
	docID := uuid.New()
	ctx := chunkContext(map[string]uuid.UUID{"doc-1": docID})

	t.Run("missing id", func(t *testing.T) {
		_, _, skip, _ := Chunk(&models.LegacyChunk{}, ctx)
		assert.Equal(t, SkipMissingRequired, skip)
	})

	t.Run("malformed metadata", func(t *testing.T) {
		row := &models.LegacyChunk{ID: strPtr("c1"), Metadata: json.RawMessage(`{broken`)}
		_, _, skip, flags := Chunk(row, ctx)
		assert.Equal(t, SkipMalformed, skip)
		assert.Contains(t, flags, FlagMalformedJSON)
	})

	t.Run("non chunk-data rows are bookkeeping", func(t *testing.T) {
		row := &models.LegacyChunk{
			ID:       strPtr("c1"),
			Metadata: json.RawMessage(`{"type": "index-info", "doc_id": "doc-1"}`),
		}
		_, _, skip, _ := Chunk(row, ctx)
		assert.Equal(t, SkipMalformed, skip)
	})

	t.Run("missing doc reference", func(t *testing.T) {
		row := &models.LegacyChunk{
			ID:       strPtr("c1"),
			Metadata: json.RawMessage(`{"type": "chunk-data"}`),
		}
		_, _, skip, _ := Chunk(row, ctx)
		assert.Equal(t, SkipNoOwner, skip)
	})

	t.Run("unresolved doc reference", func(t *testing.T) {
		row := &models.LegacyChunk{
			ID:       strPtr("c1"),
			Metadata: json.RawMessage(`{"type": "chunk-data", "doc_id": "ghost"}`),
		}
		_, _, skip, _ := Chunk(row, ctx)
		assert.Equal(t, SkipNoOwner, skip)
	})
}

func TestChunkEmptyEmbeddingPolicy(t *testing.T) {
	docID := uuid.New()
	row := &models.LegacyChunk{
		ID:       strPtr("c1"),
		Document: strPtr("text"),
		Metadata: json.RawMessage(`{"type": "chunk-data", "doc_id": "doc-1"}`),
	}

	t.Run("kept without vector by default", func(t *testing.T) {
		ctx := chunkContext(map[string]uuid.UUID{"doc-1": docID})
		chunk, embedding, skip, _ := Chunk(row, ctx)
		require.Equal(t, SkipNone, skip)
		require.NotNil(t, chunk)
		assert.Nil(t, embedding)
	})

	t.Run("skipped when policy active", func(t *testing.T) {
		ctx := chunkContext(map[string]uuid.UUID{"doc-1": docID})
		ctx.SkipEmptyEmbeddings = true
		chunk, _, skip, _ := Chunk(row, ctx)
		assert.Nil(t, chunk)
		assert.Equal(t, SkipMissingRequired, skip)
	})
}

func TestChunkFull(t *testing.T) {
	docID := uuid.New()
	ctx := chunkContext(map[string]uuid.UUID{"doc-1": docID})

	row := &models.LegacyChunk{
		ID:         strPtr("chunk-42"),
		ExternalID: strPtr("ext-42"),
		Collection: strPtr("main"),
		Document:   strPtr("translated_content:\nHello world\n\noriginal_content:\nBonjour le monde"),
		Metadata: json.RawMessage(`{
			"type": "chunk-data",
			"doc_id": "doc-1",
			"file_title": "notes.pdf",
			"create_date": "2024-02-03 10:30:00",
			"user_id": "u7"
		}`),
		Embeddings: strPtr("[0.1, 0.2, 0.3]"),
	}

	chunk, embedding, skip, flags := Chunk(row, ctx)
	require.Equal(t, SkipNone, skip)
	assert.Empty(t, flags)

	assert.Equal(t, ctx.Mapper.ChunkID("chunk-42"), chunk.ID)
	assert.Equal(t, docID, chunk.DocumentID)
	assert.Equal(t, "Bonjour le monde", chunk.Content)
	require.NotNil(t, chunk.TranslatedContent)
	assert.Equal(t, "Hello world", *chunk.TranslatedContent)
	assert.Equal(t, len("Bonjour le monde"), chunk.CharCount)
	assert.Equal(t, 3, chunk.WordCount)
	assert.Equal(t, "chunk-42", chunk.LegacyID)
	assert.Equal(t, "doc-1", chunk.LegacyDocID)
	assert.Equal(t, time.Date(2024, 2, 3, 10, 30, 0, 0, time.UTC), chunk.CreatedAt)

	var meta map[string]any
	require.NoError(t, json.Unmarshal(chunk.Metadata, &meta))
	assert.Equal(t, "notes.pdf", meta["file_name"])
	assert.Equal(t, "pdf", meta["file_type"])
	assert.Equal(t, models.MigrationSource, meta["parser"])

	require.NotNil(t, embedding)
	assert.Equal(t, chunk.ID, embedding.ChunkID)
	assert.Equal(t, docID, embedding.DocumentID)
	assert.Equal(t, "[0.1, 0.2, 0.3]", embedding.Vector)
	assert.Equal(t, "text-embedding-ada-002", embedding.ModelName)
}

func TestChunkBadCreateDateFlagged(t *testing.T) {
	docID := uuid.New()
	ctx := chunkContext(map[string]uuid.UUID{"doc-1": docID})

	row := &models.LegacyChunk{
		ID:       strPtr("c1"),
		Document: strPtr("text"),
		Metadata: json.RawMessage(`{"type": "chunk-data", "doc_id": "doc-1", "create_date": "not-a-date"}`),
	}
	chunk, _, skip, flags := Chunk(row, ctx)
	require.Equal(t, SkipNone, skip)
	assert.Contains(t, flags, FlagMissingTimestamp)
	assert.Equal(t, ctx.Now(), chunk.CreatedAt)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		input string
		want  *time.Time
	}{
		{"2024-02-03T10:30:00Z", timePtr(time.Date(2024, 2, 3, 10, 30, 0, 0, time.UTC))},
		{"2024-02-03 10:30:00", timePtr(time.Date(2024, 2, 3, 10, 30, 0, 0, time.UTC))},
		{"2024-02-03", timePtr(time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC))},
		{"", nil},
		{"yesterday", nil},
	}
	for _, tt := range tests {
		got := parseTimestamp(tt.input)
		if tt.want == nil {
			assert.Nil(t, got, tt.input)
			continue
		}
		require.NotNil(t, got, tt.input)
		assert.True(t, tt.want.Equal(*got), tt.input)
	}
}

func timePtr(t time.Time) *time.Time { return &t }
