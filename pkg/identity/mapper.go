// Package identity derives target-schema UUIDs from legacy identifiers.
//
// Derivation is name-based (UUIDv5 over a fixed namespace), so two runs, or
// two entities referencing the same legacy key, always agree on the derived
// UUID without a persisted mapping table. This is the load-bearing property
// that lets cross-table references survive the migration: a document can
// point at its folder's UUID before (or without) the folder ever being
// migrated.
package identity

import (
	"github.com/google/uuid"
)

// DefaultNamespace is the namespace used by production migrations. It must
// never change once any target environment has been written to.
var DefaultNamespace = uuid.MustParse("0b1e4c6a-1f4a-4b6e-8c3d-2a5f7e9d0c1b")

// Mapper derives deterministic UUIDs within one namespace. The zero value is
// not usable; construct with NewMapper.
type Mapper struct {
	namespace uuid.UUID
}

// NewMapper returns a Mapper bound to the given namespace.
func NewMapper(namespace uuid.UUID) Mapper {
	return Mapper{namespace: namespace}
}

// Namespace returns the namespace this mapper derives under.
func (m Mapper) Namespace() uuid.UUID {
	return m.namespace
}

// Derive maps a legacy key to its UUID. Pure and deterministic: identical
// (namespace, key) inputs always produce the identical UUID, in any process.
func (m Mapper) Derive(legacyKey string) uuid.UUID {
	return uuid.NewSHA1(m.namespace, []byte(legacyKey))
}

// FolderID derives the target folder UUID for a legacy folder key.
func (m Mapper) FolderID(legacyKey string) uuid.UUID {
	return m.Derive(legacyKey)
}

// ChunkID derives the target chunk UUID for a legacy vector-store row id.
func (m Mapper) ChunkID(legacyKey string) uuid.UUID {
	return m.Derive(legacyKey)
}

// ConversationID maps a legacy chat key to the conversation UUID. Legacy
// chat keys are usually UUIDs already and are kept as-is (matching rows
// written before this engine existed); anything else falls back to
// derivation, which is equally stable across runs.
func (m Mapper) ConversationID(chatKey string) uuid.UUID {
	if id, err := uuid.Parse(chatKey); err == nil {
		return id
	}
	return m.Derive(chatKey)
}

// UserMessageID derives the UUID of the user-role message produced from one
// legacy log row.
func (m Mapper) UserMessageID(logID string) uuid.UUID {
	return m.Derive(logID + "-user")
}

// AssistantMessageID derives the UUID of the assistant-role message produced
// from one legacy log row.
func (m Mapper) AssistantMessageID(logID string) uuid.UUID {
	return m.Derive(logID + "-assistant")
}

// UserBlockID derives the UUID of the content block under a user message.
func (m Mapper) UserBlockID(logID string) uuid.UUID {
	return m.Derive(logID + "-user-block-0")
}

// AssistantBlockID derives the UUID of the content block under an assistant
// message.
func (m Mapper) AssistantBlockID(logID string) uuid.UUID {
	return m.Derive(logID + "-assistant-block-0")
}
