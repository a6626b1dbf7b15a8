package cli

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nimbusworks/nimbus-migrate/pkg/audit"
)

func newAuditCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Inspect the legacy schema and report migration risks",
		Long: `Runs the read-only pre-migration check suite against the source store and
prints what a migration run would skip: rows without owners, malformed
payloads, duplicate keys, username collisions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			src, err := a.connectSource(ctx)
			if err != nil {
				return err
			}
			defer src.Close()

			a.logger.Info("audit starting", zap.String("source", a.sourceInfo()))

			auditor := audit.NewAuditor(src, a.cfg.Migration.TablePrefix, a.logger)
			report, err := auditor.Run(ctx)
			if err != nil {
				return err
			}

			if err := report.Render(os.Stdout); err != nil {
				return err
			}
			if report.Failed() {
				a.logger.Warn("some audit checks failed; report is partial")
			}
			return nil
		},
	}
}
