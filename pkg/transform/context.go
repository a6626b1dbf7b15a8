// Package transform converts legacy rows into target records.
//
// Every transformer is a pure function: no store access, no side effects.
// Rows that cannot be migrated come back with a skip reason instead of an
// error; malformed payloads that can still migrate come back with
// data-quality flags so no fallback is silent.
package transform

import (
	"time"

	"github.com/google/uuid"

	"github.com/nimbusworks/nimbus-migrate/pkg/identity"
)

// SkipReason classifies why a row produced no target record.
type SkipReason string

const (
	// SkipNone means the row transformed successfully.
	SkipNone SkipReason = ""
	// SkipNoOwner means the row's owner/parent reference did not resolve.
	SkipNoOwner SkipReason = "no_owner"
	// SkipMissingRequired means a structurally required field was absent.
	SkipMissingRequired SkipReason = "missing_required"
	// SkipMalformed means the row's payload could not be interpreted at all.
	SkipMalformed SkipReason = "malformed"
)

// Data-quality flags attached to rows that migrated via a fallback.
const (
	FlagUnknownDocType     = "unknown_doc_type"
	FlagUnknownFolderType  = "unknown_folder_type"
	FlagQuestionExtraction = "question_extraction_failed"
	FlagMissingTimestamp   = "missing_timestamp"
	FlagMalformedJSON      = "malformed_json_field"
	FlagMissingTokens      = "missing_token_amount"
)

// Resolver maps a legacy key to an already-migrated target UUID.
type Resolver func(legacyKey string) (uuid.UUID, bool)

// Context carries everything a transformer needs beyond the row itself.
// Built once per run by the migrator; immutable from the transformers'
// point of view.
type Context struct {
	Mapper       identity.Mapper
	Organization uuid.UUID

	// ResolveUser maps a legacy user key to the migrated user UUID. Built
	// from the Users phase; empty resolution skips the row.
	ResolveUser Resolver
	// ResolveDocument maps a legacy doc key to the migrated document UUID.
	// Built from the Documents phase; used by the chunks phase.
	ResolveDocument Resolver

	FlattenFolders        bool
	TitleMaxLength        int
	DefaultEmbeddingModel string
	SkipEmptyEmbeddings   bool

	// Now supplies fallback timestamps; injectable for tests.
	Now func() time.Time
}

func (c *Context) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now().UTC()
}

func (c *Context) resolveUser(key string) (uuid.UUID, bool) {
	if c.ResolveUser == nil {
		return uuid.Nil, false
	}
	return c.ResolveUser(key)
}

func (c *Context) resolveDocument(key string) (uuid.UUID, bool) {
	if c.ResolveDocument == nil {
		return uuid.Nil, false
	}
	return c.ResolveDocument(key)
}
