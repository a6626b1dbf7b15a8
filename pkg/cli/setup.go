package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nimbusworks/nimbus-migrate/pkg/database"
)

func newSetupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Apply the target schema",
		Long: `Applies pending target-schema migrations. Idempotent; run it before the
first migrate and after upgrading this tool.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.OpenSQL(a.cfg.Target.ConnectionString())
			if err != nil {
				return err
			}
			defer db.Close()

			a.logger.Info("applying target schema",
				zap.String("migrations_path", a.cfg.Migration.MigrationsPath))
			return database.ApplyTargetSchema(db, a.cfg.Migration.MigrationsPath, a.logger)
		},
	}
}
