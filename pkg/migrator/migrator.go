// Package migrator drives the phased migration run: users first, then
// folders, documents, conversations, chunks. The order is the dependency
// order of the target schema; a phase never starts until everything it
// resolves against has been written.
package migrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nimbusworks/nimbus-migrate/pkg/apperrors"
	"github.com/nimbusworks/nimbus-migrate/pkg/config"
	"github.com/nimbusworks/nimbus-migrate/pkg/identity"
	"github.com/nimbusworks/nimbus-migrate/pkg/models"
	"github.com/nimbusworks/nimbus-migrate/pkg/retry"
	"github.com/nimbusworks/nimbus-migrate/pkg/source"
	"github.com/nimbusworks/nimbus-migrate/pkg/transform"
)

// Source is the paged legacy read surface the migrator consumes.
// *source.Reader is the production implementation.
type Source interface {
	Users(ctx context.Context, offset, limit int) ([]*models.LegacyUser, error)
	Folders(ctx context.Context, offset, limit int) ([]*models.LegacyFolder, error)
	Documents(ctx context.Context, offset, limit int) ([]*models.LegacyDocument, error)
	Chunks(ctx context.Context, offset, limit int) ([]*models.LegacyChunk, error)
	ChatKeys(ctx context.Context, offset, limit int) ([]string, error)
	LogRows(ctx context.Context, chatKey string) ([]*models.LegacyLogRow, error)
}

var _ Source = (*source.Reader)(nil)

// Migrator runs the five migration phases against one source/sink pair.
// Transient store failures are retried with backoff; anything persistent
// aborts the run with the phase and legacy key in the error.
type Migrator struct {
	cfg      config.MigrationConfig
	reader   Source
	sink     Sink
	logger   *zap.Logger
	retryCfg *retry.Config

	// Resolution state built up as phases complete.
	userIDs map[string]uuid.UUID
	docIDs  map[string]uuid.UUID
}

// New creates a Migrator. The sink decides whether records land in the
// target store or in SQL script artifacts.
func New(cfg config.MigrationConfig, reader Source, sink Sink, logger *zap.Logger) *Migrator {
	return &Migrator{
		cfg:      cfg,
		reader:   reader,
		sink:     sink,
		logger:   logger,
		retryCfg: retry.DefaultConfig(),
	}
}

// Run executes all phases in dependency order and returns the run summary.
// Partial stats accompany the error so an aborted run still reports what it
// did.
func (m *Migrator) Run(ctx context.Context) (*Stats, error) {
	stats := &Stats{StartedAt: time.Now().UTC()}
	defer func() { stats.FinishedAt = time.Now().UTC() }()

	existing, err := m.sink.ExistingUserIDs(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to load existing users: %w", err)
	}
	m.userIDs = existing
	m.logger.Info("migration run starting",
		zap.Int("known_users", len(existing)),
		zap.Int("batch_size", m.cfg.BatchSize))

	tctx := &transform.Context{
		Mapper:                identity.NewMapper(m.cfg.Namespace()),
		Organization:          m.cfg.Organization(),
		ResolveUser:           m.resolveUser,
		ResolveDocument:       m.resolveDocument,
		FlattenFolders:        m.cfg.FlattenFolders,
		TitleMaxLength:        m.cfg.TitleMaxLength,
		DefaultEmbeddingModel: m.cfg.DefaultEmbeddingModel,
		SkipEmptyEmbeddings:   m.cfg.SkipEmptyEmbeddings,
	}

	phases := []struct {
		name string
		run  func(context.Context, *transform.Context, *Stats) error
	}{
		{"users", m.runUsers},
		{"folders", m.runFolders},
		{"documents", m.runDocuments},
		{"conversations", m.runConversations},
		{"chunks", m.runChunks},
	}

	for _, phase := range phases {
		start := time.Now()
		if err := phase.run(ctx, tctx, stats); err != nil {
			return stats, fmt.Errorf("%s phase: %w", phase.name, err)
		}
		m.logger.Info("phase complete",
			append(m.phaseStats(phase.name, stats).Fields(),
				zap.String("phase", phase.name),
				zap.Duration("elapsed", time.Since(start)))...)
	}

	if err := m.sink.Close(ctx); err != nil {
		return stats, fmt.Errorf("failed to flush sink: %w", err)
	}

	if !stats.Reconciles() {
		// Counter drift means a bug in the phase loops, not bad source data.
		return stats, apperrors.ErrAccountingMismatch
	}

	m.logger.Info("migration run complete",
		zap.Int64("messages", stats.Messages),
		zap.Int64("embeddings", stats.Embeddings),
		zap.Duration("elapsed", time.Since(stats.StartedAt)))
	return stats, nil
}

func (m *Migrator) phaseStats(name string, stats *Stats) *PhaseStats {
	switch name {
	case "users":
		return &stats.Users
	case "folders":
		return &stats.Folders
	case "documents":
		return &stats.Documents
	case "conversations":
		return &stats.Conversations
	default:
		return &stats.Chunks
	}
}

func (m *Migrator) resolveUser(legacyKey string) (uuid.UUID, bool) {
	id, ok := m.userIDs[legacyKey]
	return id, ok
}

func (m *Migrator) resolveDocument(legacyKey string) (uuid.UUID, bool) {
	id, ok := m.docIDs[legacyKey]
	return id, ok
}

func (m *Migrator) runUsers(ctx context.Context, tctx *transform.Context, stats *Stats) error {
	ps := &stats.Users
	for offset := 0; ; offset += m.cfg.BatchSize {
		rows, err := m.reader.Users(ctx, offset, m.cfg.BatchSize)
		if err != nil {
			return err
		}
		for _, row := range rows {
			ps.Processed++
			user, skip, flags := transform.User(row, tctx)
			if skip != transform.SkipNone {
				ps.Skip(skip)
				continue
			}
			ps.Flag(flags)

			var inserted bool
			err := retry.DoIfTransient(ctx, m.retryCfg, func() error {
				var putErr error
				inserted, putErr = m.sink.PutUser(ctx, user)
				return putErr
			})
			if err != nil {
				return fmt.Errorf("user %s: %w", user.LegacyID, err)
			}
			if inserted {
				ps.Inserted++
			} else {
				ps.SkippedDuplicate++
			}
			// Duplicates still resolve: the existing-users map loaded at run
			// start carries their target id when the earlier run wrote it.
			if inserted && user.LegacyID != "" {
				m.userIDs[user.LegacyID] = user.ID
			}
		}
		if len(rows) < m.cfg.BatchSize {
			return nil
		}
	}
}

func (m *Migrator) runFolders(ctx context.Context, tctx *transform.Context, stats *Stats) error {
	ps := &stats.Folders
	for offset := 0; ; offset += m.cfg.BatchSize {
		rows, err := m.reader.Folders(ctx, offset, m.cfg.BatchSize)
		if err != nil {
			return err
		}
		for _, row := range rows {
			ps.Processed++
			folder, skip, flags := transform.Folder(row, tctx)
			if skip != transform.SkipNone {
				ps.Skip(skip)
				continue
			}
			ps.Flag(flags)

			var inserted bool
			err := retry.DoIfTransient(ctx, m.retryCfg, func() error {
				var putErr error
				inserted, putErr = m.sink.PutFolder(ctx, folder)
				return putErr
			})
			if err != nil {
				return fmt.Errorf("folder %s: %w", folder.LegacyID, err)
			}
			if inserted {
				ps.Inserted++
			} else {
				ps.SkippedDuplicate++
			}
		}
		if len(rows) < m.cfg.BatchSize {
			return nil
		}
	}
}

func (m *Migrator) runDocuments(ctx context.Context, tctx *transform.Context, stats *Stats) error {
	existing, err := m.sink.ExistingDocumentIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to load existing documents: %w", err)
	}
	m.docIDs = existing

	ps := &stats.Documents
	for offset := 0; ; offset += m.cfg.BatchSize {
		rows, err := m.reader.Documents(ctx, offset, m.cfg.BatchSize)
		if err != nil {
			return err
		}
		for _, row := range rows {
			ps.Processed++
			doc, skip, flags := transform.Document(row, tctx)
			if skip != transform.SkipNone {
				ps.Skip(skip)
				continue
			}
			ps.Flag(flags)

			var inserted bool
			err := retry.DoIfTransient(ctx, m.retryCfg, func() error {
				var putErr error
				inserted, putErr = m.sink.PutDocument(ctx, doc)
				return putErr
			})
			if err != nil {
				return fmt.Errorf("document %s: %w", doc.LegacyID, err)
			}
			if inserted {
				ps.Inserted++
				m.docIDs[doc.LegacyID] = doc.ID
			} else {
				ps.SkippedDuplicate++
			}
		}
		if len(rows) < m.cfg.BatchSize {
			return nil
		}
	}
}

func (m *Migrator) runConversations(ctx context.Context, tctx *transform.Context, stats *Stats) error {
	ps := &stats.Conversations
	for offset := 0; ; offset += m.cfg.BatchSize {
		keys, err := m.reader.ChatKeys(ctx, offset, m.cfg.BatchSize)
		if err != nil {
			return err
		}
		for _, key := range keys {
			ps.Processed++
			rows, err := m.reader.LogRows(ctx, key)
			if err != nil {
				return fmt.Errorf("chat %s: %w", key, err)
			}

			agg, skip, flags := transform.Conversation(key, rows, tctx)
			if skip != transform.SkipNone {
				ps.Skip(skip)
				continue
			}
			ps.Flag(flags)

			var inserted bool
			err = retry.DoIfTransient(ctx, m.retryCfg, func() error {
				var putErr error
				inserted, putErr = m.sink.PutConversation(ctx, agg)
				return putErr
			})
			if err != nil {
				return fmt.Errorf("chat %s: %w", key, err)
			}
			if inserted {
				ps.Inserted++
				stats.Messages += int64(len(agg.Turns) * 2)
			} else {
				ps.SkippedDuplicate++
			}
		}
		if len(keys) < m.cfg.BatchSize {
			return nil
		}
	}
}

func (m *Migrator) runChunks(ctx context.Context, tctx *transform.Context, stats *Stats) error {
	ps := &stats.Chunks

	// Chunk indexes restart per document. The reader orders rows by document
	// then row id, so a simple run counter survives batch boundaries and
	// assigns the same index on every run.
	var lastDocID string
	nextIndex := 0

	for offset := 0; ; offset += m.cfg.BatchSize {
		rows, err := m.reader.Chunks(ctx, offset, m.cfg.BatchSize)
		if err != nil {
			return err
		}
		for _, row := range rows {
			ps.Processed++
			chunk, embedding, skip, flags := transform.Chunk(row, tctx)
			if skip != transform.SkipNone {
				ps.Skip(skip)
				continue
			}
			ps.Flag(flags)

			if chunk.LegacyDocID != lastDocID {
				lastDocID = chunk.LegacyDocID
				nextIndex = 0
			}
			chunk.ChunkIndex = nextIndex
			nextIndex++

			var inserted bool
			err := retry.DoIfTransient(ctx, m.retryCfg, func() error {
				var putErr error
				inserted, putErr = m.sink.PutChunk(ctx, chunk, embedding)
				return putErr
			})
			if err != nil {
				return fmt.Errorf("chunk %s: %w", chunk.LegacyID, err)
			}
			if inserted {
				ps.Inserted++
				if embedding != nil {
					stats.Embeddings++
				}
			} else {
				ps.SkippedDuplicate++
			}
		}
		if len(rows) < m.cfg.BatchSize {
			return nil
		}
	}
}
