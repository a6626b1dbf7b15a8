package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nimbusworks/nimbus-migrate/pkg/migrator"
	"github.com/nimbusworks/nimbus-migrate/pkg/script"
	"github.com/nimbusworks/nimbus-migrate/pkg/source"
)

func newScriptCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "script",
		Short: "Generate reviewable SQL migration artifacts",
		Long: `Runs the same phases as migrate but writes one guarded SQL artifact per
phase instead of touching the target store. Artifacts are idempotent: every
INSERT checks for the record before writing, so they can be executed more
than once and in any environment.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			src, err := a.connectSource(ctx)
			if err != nil {
				return err
			}
			defer src.Close()

			a.logger.Info("script generation starting",
				zap.String("source", a.sourceInfo()),
				zap.String("script_dir", a.cfg.Migration.ScriptDir))

			reader := source.NewReader(src, a.cfg.Migration.TablePrefix)
			writer := script.NewWriter(
				a.cfg.Migration.ScriptDir,
				a.sourceInfo(),
				a.cfg.Migration.Organization(),
				a.cfg.Migration.MaxRecordsPerInsert,
				a.logger,
			)

			m := migrator.New(a.cfg.Migration, reader, writer, a.logger)
			if _, err := m.Run(ctx); err != nil {
				return err
			}
			return nil
		},
	}
}
