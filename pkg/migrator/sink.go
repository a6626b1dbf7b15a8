package migrator

import (
	"context"

	"github.com/google/uuid"

	"github.com/nimbusworks/nimbus-migrate/pkg/models"
	"github.com/nimbusworks/nimbus-migrate/pkg/repositories"
	"github.com/nimbusworks/nimbus-migrate/pkg/transform"
)

// Sink receives transformed records. The direct sink writes them to the
// target store with a check-before-write duplicate gate; the script sink
// emits guarded SQL artifacts instead. Put methods report whether the record
// was actually written: false with a nil error means the duplicate gate
// held it back.
type Sink interface {
	PutUser(ctx context.Context, user *models.User) (bool, error)
	PutFolder(ctx context.Context, folder *models.Folder) (bool, error)
	PutDocument(ctx context.Context, doc *models.Document) (bool, error)
	PutConversation(ctx context.Context, agg *transform.ConversationAggregate) (bool, error)
	PutChunk(ctx context.Context, chunk *models.Chunk, embedding *models.Embedding) (bool, error)

	// ExistingUserIDs returns legacy user id -> target id for users already
	// present in the target, so reruns can resolve owners of rows whose user
	// was migrated by an earlier run.
	ExistingUserIDs(ctx context.Context) (map[string]uuid.UUID, error)
	// ExistingDocumentIDs is the document-phase equivalent for chunks.
	ExistingDocumentIDs(ctx context.Context) (map[string]uuid.UUID, error)

	// Close flushes anything buffered. Must be called exactly once after the
	// last Put.
	Close(ctx context.Context) error
}

// directSink writes straight into the target store through the repositories.
// The duplicate gate is check-then-insert, not atomic: only this engine
// writes migrated rows, and it runs single-flight.
type directSink struct {
	users         repositories.UserRepository
	folders       repositories.FolderRepository
	documents     repositories.DocumentRepository
	conversations repositories.ConversationRepository
	chunks        repositories.ChunkRepository
}

// NewDirectSink creates a sink writing into the target store.
func NewDirectSink(
	users repositories.UserRepository,
	folders repositories.FolderRepository,
	documents repositories.DocumentRepository,
	conversations repositories.ConversationRepository,
	chunks repositories.ChunkRepository,
) Sink {
	return &directSink{
		users:         users,
		folders:       folders,
		documents:     documents,
		conversations: conversations,
		chunks:        chunks,
	}
}

func (s *directSink) PutUser(ctx context.Context, user *models.User) (bool, error) {
	exists, err := s.users.Exists(ctx, user.Email, user.LegacyID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := s.users.Insert(ctx, user); err != nil {
		return false, err
	}
	return true, nil
}

func (s *directSink) PutFolder(ctx context.Context, folder *models.Folder) (bool, error) {
	exists, err := s.folders.Exists(ctx, folder.ID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := s.folders.Insert(ctx, folder); err != nil {
		return false, err
	}
	return true, nil
}

func (s *directSink) PutDocument(ctx context.Context, doc *models.Document) (bool, error) {
	exists, err := s.documents.ExistsByLegacyID(ctx, doc.LegacyID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := s.documents.Insert(ctx, doc); err != nil {
		return false, err
	}
	return true, nil
}

func (s *directSink) PutConversation(ctx context.Context, agg *transform.ConversationAggregate) (bool, error) {
	exists, err := s.conversations.Exists(ctx, agg.Conversation.ID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	messages := make([]*models.Message, 0, len(agg.Turns)*2)
	blocks := make([]*models.ContentBlock, 0, len(agg.Turns)*2)
	for i := range agg.Turns {
		t := &agg.Turns[i]
		messages = append(messages, &t.UserMessage, &t.AssistantMessage)
		blocks = append(blocks, &t.UserBlock, &t.AssistantBlock)
	}

	if err := s.conversations.InsertAggregate(ctx, &agg.Conversation, messages, blocks); err != nil {
		return false, err
	}
	return true, nil
}

func (s *directSink) PutChunk(ctx context.Context, chunk *models.Chunk, embedding *models.Embedding) (bool, error) {
	exists, err := s.chunks.Exists(ctx, chunk.ID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := s.chunks.Insert(ctx, chunk, embedding); err != nil {
		return false, err
	}
	return true, nil
}

func (s *directSink) ExistingUserIDs(ctx context.Context) (map[string]uuid.UUID, error) {
	return s.users.LegacyIDMap(ctx)
}

func (s *directSink) ExistingDocumentIDs(ctx context.Context) (map[string]uuid.UUID, error) {
	return s.documents.LegacyIDMap(ctx)
}

func (s *directSink) Close(ctx context.Context) error {
	return nil
}

var _ Sink = (*directSink)(nil)
