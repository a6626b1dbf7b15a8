package transform

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nimbusworks/nimbus-migrate/pkg/models"
)

// chunkMetadata is the shape of the legacy vector-store metadata blob.
type chunkMetadata struct {
	DocID           string `json:"doc_id"`
	UserID          string `json:"user_id"`
	Type            string `json:"type"`
	Tags            any    `json:"tags"`
	FileTitle       string `json:"file_title"`
	CreateDate      string `json:"create_date"`
	LinkToFile      string `json:"link_to_file"`
	ExcerptKeywords string `json:"excerptKeywords"`
}

// chunkFileTypes are the extensions recognized on legacy file titles.
var chunkFileTypes = []string{"pdf", "docx", "pptx", "xlsx", "txt", "csv", "html"}

func fileTypeFor(fileTitle string) string {
	lower := strings.ToLower(fileTitle)
	for _, ext := range chunkFileTypes {
		if strings.HasSuffix(lower, "."+ext) {
			return ext
		}
	}
	return "unknown"
}

// legacy content markers within the stored chunk document text
const (
	originalContentMarker   = "original_content:"
	translatedContentMarker = "translated_content:"
)

// splitChunkContent separates the original and translated parts of a legacy
// chunk document. The legacy format concatenates sections as
// "excerptKeywords: ...\n\ntranslated_content:\n...\n\noriginal_content:\n...".
// Text without markers is returned whole as the original content.
func splitChunkContent(document string) (original string, translated *string) {
	if document == "" {
		return "", nil
	}

	original = document
	if idx := strings.Index(document, originalContentMarker); idx >= 0 {
		original = strings.TrimSpace(document[idx+len(originalContentMarker):])
		if tIdx := strings.Index(document, translatedContentMarker); tIdx >= 0 && tIdx < idx {
			t := strings.TrimSpace(document[tIdx+len(translatedContentMarker) : idx])
			if t != "" {
				translated = &t
			}
		}
	}
	if original == "" {
		original = document
	}
	return original, translated
}

// Chunk converts a legacy vector-store row into a target chunk plus, when a
// vector is present, its embedding. The reader only selects rows tagged
// chunk-data; the type gate here skips anything that still slips through as
// malformed. Rows whose document reference does not resolve are skipped as
// unowned. ChunkIndex is assigned by the caller, which sees the whole
// document group.
func Chunk(row *models.LegacyChunk, ctx *Context) (*models.Chunk, *models.Embedding, SkipReason, []string) {
	var flags []string

	legacyID := cleanString(row.ID)
	if legacyID == nil {
		return nil, nil, SkipMissingRequired, nil
	}

	var meta chunkMetadata
	if !looseJSON(row.Metadata, &meta) {
		return nil, nil, SkipMalformed, []string{FlagMalformedJSON}
	}
	if meta.Type != models.ChunkMetadataType {
		return nil, nil, SkipMalformed, nil
	}
	if meta.DocID == "" {
		return nil, nil, SkipNoOwner, nil
	}

	documentID, ok := ctx.resolveDocument(meta.DocID)
	if !ok {
		return nil, nil, SkipNoOwner, nil
	}

	vector := cleanString(row.Embeddings)
	if vector == nil && ctx.SkipEmptyEmbeddings {
		return nil, nil, SkipMissingRequired, nil
	}

	original, translated := splitChunkContent(stringOrEmpty(row.Document))

	createdAt := ctx.now()
	if meta.CreateDate != "" {
		if parsed := parseTimestamp(meta.CreateDate); parsed != nil {
			createdAt = *parsed
		} else {
			flags = append(flags, FlagMissingTimestamp)
		}
	}

	chunkMeta := map[string]any{
		"parser":    models.MigrationSource,
		"file_name": meta.FileTitle,
		"file_type": fileTypeFor(meta.FileTitle),
		models.LegacyDataKey: map[string]any{
			"legacy_id":       *legacyID,
			"external_id":     nullable(cleanString(row.ExternalID)),
			"collection":      nullable(cleanString(row.Collection)),
			"type":            meta.Type,
			"tags":            meta.Tags,
			"user_id":         meta.UserID,
			"create_date":     meta.CreateDate,
			"link_to_file":    meta.LinkToFile,
			"excerptKeywords": meta.ExcerptKeywords,
		},
	}

	chunk := &models.Chunk{
		ID:                ctx.Mapper.ChunkID(*legacyID),
		DocumentID:        documentID,
		Content:           original,
		ContentType:       "text",
		CharCount:         len(original),
		WordCount:         len(strings.Fields(original)),
		Metadata:          mustJSON(chunkMeta),
		TranslatedContent: translated,
		CreatedAt:         createdAt,
		LegacyID:          *legacyID,
		LegacyDocID:       meta.DocID,
	}

	var embedding *models.Embedding
	if vector != nil {
		embedding = &models.Embedding{
			ID:         uuid.New(),
			ChunkID:    chunk.ID,
			DocumentID: documentID,
			Vector:     *vector,
			ModelName:  ctx.DefaultEmbeddingModel,
			CreatedAt:  createdAt,
		}
	}

	return chunk, embedding, SkipNone, flags
}

// timestampLayouts covers the formats legacy timestamps appear in.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestamp parses a legacy timestamp string, nil when unparseable.
func parseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
