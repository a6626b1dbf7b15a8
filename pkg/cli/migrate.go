package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nimbusworks/nimbus-migrate/pkg/database"
	"github.com/nimbusworks/nimbus-migrate/pkg/migrator"
	"github.com/nimbusworks/nimbus-migrate/pkg/repositories"
	"github.com/nimbusworks/nimbus-migrate/pkg/retry"
	"github.com/nimbusworks/nimbus-migrate/pkg/source"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Migrate legacy data directly into the target store",
		Long: `Runs all migration phases in dependency order (users, folders, documents,
conversations, chunks) writing into the target store. Safe to re-run: rows
already migrated are detected and skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			src, err := a.connectSource(ctx)
			if err != nil {
				return err
			}
			defer src.Close()

			tgt, err := a.connectTarget(ctx)
			if err != nil {
				return err
			}
			defer tgt.Close()

			// Read-only check, safe to retry.
			if err := retry.Do(ctx, retry.DefaultConfig(), func() error {
				return database.VerifyTargetSchema(ctx, tgt)
			}); err != nil {
				return err
			}

			a.logger.Info("direct migration starting",
				zap.String("source", a.sourceInfo()),
				zap.String("organization_id", a.cfg.Migration.OrganizationID))

			reader := source.NewReader(src, a.cfg.Migration.TablePrefix)
			sink := migrator.NewDirectSink(
				repositories.NewUserRepository(tgt),
				repositories.NewFolderRepository(tgt),
				repositories.NewDocumentRepository(tgt),
				repositories.NewConversationRepository(tgt),
				repositories.NewChunkRepository(tgt),
			)

			m := migrator.New(a.cfg.Migration, reader, sink, a.logger)
			stats, err := m.Run(ctx)
			if err != nil {
				// The partial stats still tell the operator where it stopped.
				a.logger.Error("migration aborted",
					zap.Int64("users_inserted", stats.Users.Inserted),
					zap.Int64("folders_inserted", stats.Folders.Inserted),
					zap.Int64("documents_inserted", stats.Documents.Inserted),
					zap.Int64("conversations_inserted", stats.Conversations.Inserted),
					zap.Int64("chunks_inserted", stats.Chunks.Inserted),
					zap.Error(err))
				return err
			}
			return nil
		},
	}
}
