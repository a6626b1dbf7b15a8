package transform

import (
	"strings"

	"github.com/google/uuid"

	"github.com/nimbusworks/nimbus-migrate/pkg/models"
)

// DefaultContentType is the fallback for unrecognized legacy type tags.
const DefaultContentType = "application/octet-stream"

// mimeTypes maps legacy doc_type tags (file extensions, usually) to MIME
// content types. One table, one default branch; a new legacy tag falls
// through visibly rather than growing another conditional.
var mimeTypes = map[string]string{
	"pdf":  "application/pdf",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"doc":  "application/msword",
	"ppt":  "application/vnd.ms-powerpoint",
	"xls":  "application/vnd.ms-excel",
	"txt":  "text/plain",
	"csv":  "text/csv",
	"html": "text/html",
	"json": "application/json",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"svg":  "image/svg+xml",
	"mp3":  "audio/mpeg",
	"mp4":  "video/mp4",
}

// ContentTypeFor maps a legacy doc_type tag to a MIME content type and
// reports whether the tag was recognized.
func ContentTypeFor(docType string) (string, bool) {
	tag := strings.ToLower(strings.TrimSpace(docType))
	if tag == "" {
		return DefaultContentType, false
	}
	if mime, ok := mimeTypes[tag]; ok {
		return mime, true
	}
	return DefaultContentType, false
}

// storageTypeFor remaps the legacy blob_source tag. Only azure_blob gets
// renamed; other non-empty values are carried as-is.
func storageTypeFor(blobSource *string) *string {
	src := cleanString(blobSource)
	if src == nil {
		return nil
	}
	if *src == "azure_blob" {
		azure := "azure"
		return &azure
	}
	return src
}

// Document converts a legacy document row into a target document.
//
// The folder reference is derived even when no folder row exists for it:
// derivation makes the reference resolve retroactively if the folder is
// migrated later, so only an unresolved owner skips the row.
func Document(row *models.LegacyDocument, ctx *Context) (*models.Document, SkipReason, []string) {
	var flags []string

	docID := cleanString(row.DocID)
	if docID == nil {
		return nil, SkipMissingRequired, nil
	}

	ownerKey := cleanString(row.OwnerID)
	if ownerKey == nil {
		return nil, SkipNoOwner, nil
	}
	userID, ok := ctx.resolveUser(*ownerKey)
	if !ok {
		return nil, SkipNoOwner, nil
	}

	fileName := "unnamed"
	if name := cleanString(row.DocNameOrigin); name != nil {
		fileName = *name
	} else if title := cleanString(row.DocTitle); title != nil {
		fileName = *title
	}

	contentType, known := ContentTypeFor(stringOrEmpty(row.DocType))
	if !known {
		flags = append(flags, FlagUnknownDocType)
	}

	var folderID *uuid.UUID
	if folderKey := cleanString(row.FolderID); folderKey != nil {
		derived := ctx.Mapper.FolderID(*folderKey)
		folderID = &derived
	}

	createdAt := ctx.now()
	if row.CreatedAt != nil {
		createdAt = *row.CreatedAt
	} else {
		flags = append(flags, FlagMissingTimestamp)
	}

	tags := looseJSONValue(row.Tags)
	if tags == nil {
		tags = []any{}
	}

	legacyData := map[string]any{
		"doc_id":                        *docID,
		"doc_title":                     nullable(cleanString(row.DocTitle)),
		"doc_description":               nullable(cleanString(row.DocDescription)),
		"doc_summery":                   nullable(cleanString(row.DocSummery)),
		"doc_summery_modified_by":       nullable(cleanString(row.DocSummeryModifiedBy)),
		"doc_summery_modified_at":       nullable(cleanString(row.DocSummeryModifiedAt)),
		"tags":                          tags,
		"embedding_model":               nullable(cleanString(row.EmbeddingModel)),
		"vector_methods":                looseJSONValue(row.VectorMethods),
		"version":                       nullable(cleanString(row.Version)),
		"doc_checksum":                  nullable(cleanString(row.DocChecksum)),
		"data_integration_doc_metadata": looseJSONValue(row.DataIntegrationDocMeta),
	}

	doc := &models.Document{
		ID:          uuid.New(),
		Status:      models.DocumentStatusProcessed,
		FileName:    fileName,
		FileSize:    intFromFloat(row.DocSize),
		StorageType: storageTypeFor(row.BlobSource),
		StoragePath: *docID,
		ContentType: contentType,
		SourceType:  models.DocumentSourceTypeUpload,
		Metadata: mustJSON(map[string]any{
			"name":               fileName,
			"source":             models.MigrationSource,
			models.LegacyDataKey: legacyData,
		}),
		FolderID:      folderID,
		UserID:        userID,
		CreatedAt:     createdAt,
		UpdatedAt:     ctx.now(),
		LegacyID:      *docID,
		LegacyOwnerID: *ownerKey,
	}
	return doc, SkipNone, flags
}
