package models

import (
	"encoding/json"
	"time"
)

// Legacy rows arrive from the source schema with loose typing (free-text
// enums, stringly-typed numbers, single-quoted pseudo-JSON). Each row type
// models its source table with explicit optional fields; coercion into the
// target shape happens in pkg/transform, never downstream.

// LegacyUser is a row from the legacy users table.
type LegacyUser struct {
	ID                *string         `json:"id"`
	Name              *string         `json:"name"`
	LastName          *string         `json:"last_name"`
	Email             *string         `json:"email"`
	Job               *string         `json:"job"`
	Department        *string         `json:"department"`
	PhoneNumber       *string         `json:"phone_number"`
	CompanyName       *string         `json:"company_name"`
	CompanyNameHebrew *string         `json:"company_name_in_hebrew"`
	GroupID           *string         `json:"__group_id__"`
	TokenLimit        *string         `json:"token_limit"`
	TokenUsed         *float64        `json:"token_used"`
	WordsUsed         *float64        `json:"words_used"`
	LastConnected     *float64        `json:"last_connected"`
	TimesConnected    *float64        `json:"times_connected"`
	LetterCheckbox    *string         `json:"letter_checkbox"`
	AzureOID          *string         `json:"azure_oid"`
	Model             json.RawMessage `json:"model"`
	HistoryCategories json.RawMessage `json:"history_categories"`
	EnabledFeatures   json.RawMessage `json:"enabled_features"`
	Subfeatures       json.RawMessage `json:"subfeatures"`
	CreatedAt         *time.Time      `json:"created_at"`
}

// LegacyFolder is a row from the legacy folders table.
type LegacyFolder struct {
	ID         *string    `json:"id"`
	FolderName *string    `json:"folder_name"`
	OwnerID    *string    `json:"owner_id"`
	ParentID   *string    `json:"parent_id"`
	FolderType *string    `json:"folder_type"`
	CreatedAt  *time.Time `json:"created_at"`
}

// LegacyDocument is a row from the legacy custom_documents table.
type LegacyDocument struct {
	DocID                  *string         `json:"doc_id"`
	OwnerID                *string         `json:"owner_id"`
	DocNameOrigin          *string         `json:"doc_name_origin"`
	DocTitle               *string         `json:"doc_title"`
	DocSize                *float64        `json:"doc_size"`
	FolderID               *string         `json:"folder_id"`
	DocDescription         *string         `json:"doc_description"`
	DocType                *string         `json:"doc_type"`
	DocSummery             *string         `json:"doc_summery"`
	DocSummeryModifiedBy   *string         `json:"doc_summery_modified_by"`
	DocSummeryModifiedAt   *string         `json:"doc_summery_modified_at"`
	EmbeddingModel         *string         `json:"embedding_model"`
	BlobSource             *string         `json:"blob_source"`
	Version                *string         `json:"version"`
	DocChecksum            *string         `json:"doc_checksum"`
	Tags                   json.RawMessage `json:"tags"`
	VectorMethods          json.RawMessage `json:"vector_methods"`
	DataIntegrationDocMeta json.RawMessage `json:"data_integration_doc_metadata"`
	CreatedAt              *time.Time      `json:"created_at"`
}

// LegacyLogRow is one conversation turn from the legacy logs table: the
// user's question (nested JSON history), the assistant's answer, and the
// per-turn accounting fields.
type LegacyLogRow struct {
	ID                *string         `json:"id"`
	UserID            *string         `json:"user_id"`
	ChatID            *string         `json:"chat_id"`
	Title             *string         `json:"title"`
	Question          json.RawMessage `json:"question"`
	QuestionInEnglish *string         `json:"question_in_english"`
	Answer            *string         `json:"answer"`
	TokenAmount       *int64          `json:"token_amount"`
	WordsAmount       *int64          `json:"words_amount"`
	CalculatedTime    *int64          `json:"calculated_time"`
	Type              *string         `json:"type"`
	BotID             *string         `json:"bot_id"`
	IsLike            json.RawMessage `json:"is_like"`
	ToolkitSettings   json.RawMessage `json:"toolkit_settings"`
	Category          *string         `json:"category"`
	Sentiment         *string         `json:"sentiment"`
	SourceText        *string         `json:"sourcetext"`
	SourceLink        *string         `json:"sourcelink"`
	WebpageLink       *string         `json:"webpagelink"`
	DocumentsSelected *string         `json:"documents_selected"`
	CreatedAt         *time.Time      `json:"created_at"`
}

// LegacyChunk is a row from the legacy vector-store table. Rows carry a
// metadata blob; only rows whose metadata type is "chunk-data" are chunks.
type LegacyChunk struct {
	ID         *string         `json:"id"`
	ExternalID *string         `json:"external_id"`
	Collection *string         `json:"collection"`
	Document   *string         `json:"document"`
	Metadata   json.RawMessage `json:"metadata"`
	Embeddings *string         `json:"embeddings"`
}

// ChunkMetadataType is the metadata type tag marking rows that hold chunk
// content (other rows in the same table are index bookkeeping).
const ChunkMetadataType = "chunk-data"
