package transform

import (
	"github.com/google/uuid"

	"github.com/nimbusworks/nimbus-migrate/pkg/models"
)

// Target folder-type enumeration values.
const (
	FolderTypeDefault   = "default"
	FolderTypeDocuments = "documents"
	FolderTypeAgents    = "agents"
	FolderTypeChats     = "chats"
)

// folderTypeMap remaps legacy folder-type tags onto the target enumeration.
// Unrecognized values fall through to FolderTypeDefault and are flagged, so
// a new legacy category shows up in audit counts instead of failing a cast.
var folderTypeMap = map[string]string{
	"default":   FolderTypeDefault,
	"custom":    FolderTypeDefault,
	"docs":      FolderTypeDocuments,
	"documents": FolderTypeDocuments,
	"bots":      FolderTypeAgents,
	"agents":    FolderTypeAgents,
	"chat":      FolderTypeChats,
	"chats":     FolderTypeChats,
}

// FolderTypeFor maps a legacy folder-type tag to the target enum value and
// reports whether the tag was recognized. Empty tags count as recognized
// defaults, matching the source system.
func FolderTypeFor(legacy string) (string, bool) {
	if legacy == "" {
		return FolderTypeDefault, true
	}
	if mapped, ok := folderTypeMap[legacy]; ok {
		return mapped, true
	}
	return FolderTypeDefault, false
}

// Folder converts a legacy folder row into a target folder. The folder UUID
// is derived from the legacy key so documents can reference it without a
// lookup table; the parent reference is derived the same way unless the
// flattening policy is active.
func Folder(row *models.LegacyFolder, ctx *Context) (*models.Folder, SkipReason, []string) {
	var flags []string

	legacyID := cleanString(row.ID)
	if legacyID == nil {
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

	folderType, known := FolderTypeFor(stringOrEmpty(row.FolderType))
	if !known {
		flags = append(flags, FlagUnknownFolderType)
	}

	var parentID *uuid.UUID
	if parent := cleanString(row.ParentID); parent != nil && !ctx.FlattenFolders {
		derived := ctx.Mapper.FolderID(*parent)
		parentID = &derived
	}

	createdAt := ctx.now()
	if row.CreatedAt != nil {
		createdAt = *row.CreatedAt
	} else {
		flags = append(flags, FlagMissingTimestamp)
	}

	folder := &models.Folder{
		ID:            ctx.Mapper.FolderID(*legacyID),
		FolderName:    cleanString(row.FolderName),
		ParentID:      parentID,
		FolderType:    folderType,
		UserID:        userID,
		CreatedAt:     createdAt,
		UpdatedAt:     ctx.now(),
		LegacyID:      *legacyID,
		LegacyOwnerID: *ownerKey,
	}
	return folder, SkipNone, flags
}
