package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// LegacyDataKey is the reserved metadata key under which every non-mapped
// legacy field is preserved verbatim on migrated rows.
const LegacyDataKey = "legacyData"

// MigrationSource tags metadata written by this engine.
const MigrationSource = "legacy-migration"

// Message roles in the target schema.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Document status and source type values used for migrated documents.
const (
	DocumentStatusProcessed  = "PROCESSED"
	DocumentSourceTypeUpload = "upload"
)

// ContentBlockTypeMessage is the only block type the migration emits.
const ContentBlockTypeMessage = "message"

// User is a migrated identity row. Users get fresh random UUIDs; downstream
// rows resolve them through the legacyData lookup, never by derivation.
type User struct {
	ID             uuid.UUID
	Email          string
	FirstName      *string
	LastName       *string
	Username       *string
	Metadata       json.RawMessage
	OrganizationID uuid.UUID
	IsOwner        bool
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// LegacyID is the source primary key, carried for the owner-resolution
	// context and the idempotency check. Also present in Metadata.
	LegacyID string
}

// Folder is a migrated folder row. The ID is derived from the legacy key so
// documents can reference it without a lookup table.
type Folder struct {
	ID         uuid.UUID
	FolderName *string
	ParentID   *uuid.UUID
	FolderType string
	UserID     uuid.UUID
	CreatedAt  time.Time
	UpdatedAt  time.Time

	LegacyID string
	// LegacyOwnerID is the source owner key. Script artifacts resolve the
	// owner from it at execution time instead of trusting UserID, which is
	// only valid within the run that produced it.
	LegacyOwnerID string
}

// Document is a migrated document row. Nothing downstream references
// documents by ID in this system, so the ID is a fresh v4.
type Document struct {
	ID          uuid.UUID
	Status      string
	FileName    string
	FileSize    int64
	StorageType *string
	StoragePath string
	ContentType string
	SourceType  string
	Metadata    json.RawMessage
	FolderID    *uuid.UUID
	UserID      uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time

	LegacyID      string
	LegacyOwnerID string
}

// Conversation is the aggregate parent computed from a group of log rows
// sharing a chat key. Counts and timestamps are computed, not copied.
type Conversation struct {
	ID               uuid.UUID
	Title            *string
	MessageCount     int
	TotalTokens      int64
	IsActive         bool
	UserID           uuid.UUID
	CreatedAt        time.Time
	UpdatedAt        time.Time
	LastInteractedAt time.Time

	LegacyChatID  string
	LegacyOwnerID string
}

// Message is a single turn half (user or assistant) within a conversation.
type Message struct {
	ID                uuid.UUID
	ConversationID    uuid.UUID
	ParentMessageID   *uuid.UUID
	Role              string
	HasToolCalls      bool
	IterationCount    int
	ContentBlockCount int
	FinishReason      *string
	UserID            uuid.UUID
	Metadata          json.RawMessage
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ContentBlock holds the text payload of one message.
type ContentBlock struct {
	ID              uuid.UUID
	MessageID       uuid.UUID
	Sequence        int
	Type            string
	Content         json.RawMessage
	ExecutionTimeMS *int64
	CreatedAt       time.Time
}

// Chunk is a migrated text chunk belonging to a document.
type Chunk struct {
	ID                uuid.UUID
	DocumentID        uuid.UUID
	ChunkIndex        int
	Content           string
	ContentType       string
	PageNumber        *int
	CharCount         int
	WordCount         int
	Metadata          json.RawMessage
	TranslatedContent *string
	CreatedAt         time.Time

	LegacyID    string
	LegacyDocID string
}

// Embedding is the vector for a chunk, present only when the source row
// carried one.
type Embedding struct {
	ID         uuid.UUID
	ChunkID    uuid.UUID
	DocumentID uuid.UUID
	Vector     string
	ModelName  string
	CreatedAt  time.Time
}
