package main

import (
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TemirB/freight-portal/internal/config"
	"github.com/TemirB/freight-portal/internal/database"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema and tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			pool, err := database.Connect(cmd.Context(), cfg.DSN(), logger, tracelog.LogLevelWarn)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := database.Migrate(cmd.Context(), pool, cfg.Tables); err != nil {
				return err
			}
			logger.Info("schema is up to date", zap.String("schema", cfg.Tables.Schema))
			return nil
		},
	}
}
