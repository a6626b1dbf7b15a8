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

func TestContentTypeFor(t *testing.T) {
	tests := []struct {
		tag      string
		expected string
		known    bool
	}{
		{"pdf", "application/pdf", true},
		{"PDF", "application/pdf", true},
		{" docx ", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", true},
		{"txt", "text/plain", true},
		{"csv", "text/csv", true},
		{"jpeg", "image/jpeg", true},
		{"", DefaultContentType, false},
		{"exe", DefaultContentType, false},
	}

	for _, tt := range tests {
		t.Run("tag "+tt.tag, func(t *testing.T) {
			got, known := ContentTypeFor(tt.tag)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.known, known)
		})
	}
}

func TestStorageTypeFor(t *testing.T) {
	assert.Nil(t, storageTypeFor(nil))
	assert.Nil(t, storageTypeFor(strPtr("  ")))
	assert.Equal(t, "azure", *storageTypeFor(strPtr("azure_blob")))
	assert.Equal(t, "s3", *storageTypeFor(strPtr("s3")))
}

func TestDocumentSkips(t *testing.T) {
	ctx := testContext()
	ctx.ResolveUser = resolverFor(map[string]uuid.UUID{"owner-1": uuid.New()})

	t.Run("missing doc_id", func(t *testing.T) {
		_, skip, _ := Document(&models.LegacyDocument{OwnerID: strPtr("owner-1")}, ctx)
		assert.Equal(t, SkipMissingRequired, skip)
	})

	t.Run("missing owner", func(t *testing.T) {
		_, skip, _ := Document(&models.LegacyDocument{DocID: strPtr("d1")}, ctx)
		assert.Equal(t, SkipNoOwner, skip)
	})

	t.Run("unresolved owner", func(t *testing.T) {
		row := &models.LegacyDocument{DocID: strPtr("d1"), OwnerID: strPtr("ghost")}
		_, skip, _ := Document(row, ctx)
		assert.Equal(t, SkipNoOwner, skip)
	})
}

func TestDocumentFields(t *testing.T) {
	ownerID := uuid.New()
	created := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	size := 20480.0
	ctx := testContext()
	ctx.ResolveUser = resolverFor(map[string]uuid.UUID{"owner-1": ownerID})

	row := &models.LegacyDocument{
		DocID:         strPtr("doc-abc"),
		OwnerID:       strPtr("owner-1"),
		DocNameOrigin: strPtr("report.pdf"),
		DocType:       strPtr("pdf"),
		DocSize:       &size,
		BlobSource:    strPtr("azure_blob"),
		FolderID:      strPtr("f-1"),
		Tags:          json.RawMessage(`['finance', 'q2']`),
		CreatedAt:     &created,
	}

	doc, skip, flags := Document(row, ctx)
	require.Equal(t, SkipNone, skip)
	assert.Empty(t, flags)

	assert.Equal(t, "report.pdf", doc.FileName)
	assert.Equal(t, int64(20480), doc.FileSize)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Equal(t, "azure", *doc.StorageType)
	assert.Equal(t, "doc-abc", doc.StoragePath)
	assert.Equal(t, "doc-abc", doc.LegacyID)
	assert.Equal(t, "owner-1", doc.LegacyOwnerID)
	assert.Equal(t, ownerID, doc.UserID)
	assert.Equal(t, models.DocumentStatusProcessed, doc.Status)
	assert.Equal(t, models.DocumentSourceTypeUpload, doc.SourceType)

	require.NotNil(t, doc.FolderID)
	assert.Equal(t, ctx.Mapper.FolderID("f-1"), *doc.FolderID)

	var meta map[string]any
	require.NoError(t, json.Unmarshal(doc.Metadata, &meta))
	assert.Equal(t, models.MigrationSource, meta["source"])
	legacy := meta[models.LegacyDataKey].(map[string]any)
	assert.Equal(t, "doc-abc", legacy["doc_id"])
	assert.Equal(t, []any{"finance", "q2"}, legacy["tags"])
}

func TestDocumentFolderDerivedWithoutFolderRow(t *testing.T) {
	// The folder reference is derived even if no folder ever migrates;
	// identical keys derive identical UUIDs so the link resolves later.
	ctx := testContext()
	ctx.ResolveUser = resolverFor(map[string]uuid.UUID{"o": uuid.New()})

	row := &models.LegacyDocument{
		DocID:    strPtr("d1"),
		OwnerID:  strPtr("o"),
		FolderID: strPtr("never-migrated"),
	}
	doc, skip, _ := Document(row, ctx)
	require.Equal(t, SkipNone, skip)
	require.NotNil(t, doc.FolderID)
	assert.Equal(t, ctx.Mapper.FolderID("never-migrated"), *doc.FolderID)
}

func TestDocumentFileNameFallbacks(t *testing.T) {
	ctx := testContext()
	ctx.ResolveUser = resolverFor(map[string]uuid.UUID{"o": uuid.New()})

	t.Run("title fallback", func(t *testing.T) {
		row := &models.LegacyDocument{DocID: strPtr("d1"), OwnerID: strPtr("o"), DocTitle: strPtr("My Title")}
		doc, _, _ := Document(row, ctx)
		assert.Equal(t, "My Title", doc.FileName)
	})

	t.Run("unnamed fallback", func(t *testing.T) {
		row := &models.LegacyDocument{DocID: strPtr("d1"), OwnerID: strPtr("o")}
		doc, _, _ := Document(row, ctx)
		assert.Equal(t, "unnamed", doc.FileName)
	})
}

func TestDocumentUnknownTypeFlagged(t *testing.T) {
	ctx := testContext()
	ctx.ResolveUser = resolverFor(map[string]uuid.UUID{"o": uuid.New()})

	row := &models.LegacyDocument{DocID: strPtr("d1"), OwnerID: strPtr("o"), DocType: strPtr("weird")}
	doc, skip, flags := Document(row, ctx)
	require.Equal(t, SkipNone, skip)
	assert.Equal(t, DefaultContentType, doc.ContentType)
	assert.Contains(t, flags, FlagUnknownDocType)
}
