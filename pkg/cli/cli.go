// Package cli wires the nimbus-migrate commands: audit, migrate, script,
// setup. Configuration loads once in the root command; each subcommand
// connects only to the stores it needs.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nimbusworks/nimbus-migrate/pkg/config"
	"github.com/nimbusworks/nimbus-migrate/pkg/database"
	"github.com/nimbusworks/nimbus-migrate/pkg/logging"
	"github.com/nimbusworks/nimbus-migrate/pkg/retry"
)

type app struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCmd builds the command tree. version is injected at build time.
func NewRootCmd(version string) *cobra.Command {
	a := &app{}
	var configPath string

	root := &cobra.Command{
		Use:           "nimbus-migrate",
		Short:         "Migrate a legacy deployment into the redesigned schema",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, version)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logging.New(logging.Options{
				Level:      cfg.Logging.Level,
				File:       cfg.Logging.File,
				MaxSizeMB:  cfg.Logging.MaxSizeMB,
				MaxBackups: cfg.Logging.MaxBackups,
			})
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to configuration file")

	root.AddCommand(
		newAuditCmd(a),
		newMigrateCmd(a),
		newScriptCmd(a),
		newSetupCmd(a),
	)
	return root
}

// connectSource opens the legacy store read-only. The session-level
// read-only guard means even a bug in this engine cannot mutate legacy data.
func (a *app) connectSource(ctx context.Context) (*database.DB, error) {
	url := a.cfg.Source.ConnectionString()
	a.logger.Info("connecting to source store",
		zap.String("url", logging.SanitizeConnectionString(url)))

	db, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*database.DB, error) {
		return database.NewConnection(ctx, &database.Config{
			URL:              url,
			MaxConnections:   a.cfg.Source.MaxConnections,
			StatementTimeout: time.Duration(a.cfg.Source.StatementTimeoutMS) * time.Millisecond,
			ReadOnly:         true,
		})
	})
	if err != nil {
		// Connection errors can echo the URL, credentials included.
		return nil, fmt.Errorf("source store: %s", logging.SanitizeError(err))
	}
	return db, nil
}

func (a *app) connectTarget(ctx context.Context) (*database.DB, error) {
	url := a.cfg.Target.ConnectionString()
	a.logger.Info("connecting to target store",
		zap.String("url", logging.SanitizeConnectionString(url)))

	db, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*database.DB, error) {
		return database.NewConnection(ctx, &database.Config{
			URL:              url,
			MaxConnections:   a.cfg.Target.MaxConnections,
			StatementTimeout: time.Duration(a.cfg.Target.StatementTimeoutMS) * time.Millisecond,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("target store: %s", logging.SanitizeError(err))
	}
	return db, nil
}

// sourceInfo describes the source deployment for logs and artifact headers,
// without credentials.
func (a *app) sourceInfo() string {
	return fmt.Sprintf("%s:%d/%s (prefix %s)",
		a.cfg.Source.Host, a.cfg.Source.Port, a.cfg.Source.Database,
		a.cfg.Migration.TablePrefix)
}
