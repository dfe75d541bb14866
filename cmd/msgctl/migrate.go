package main

import (
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	schema "messaging-platform/db"
	"messaging-platform/internal/config"
	"messaging-platform/internal/db"
	"messaging-platform/pkg/logger"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate up|down|version|force N",
		Short:     "Apply or roll back database migrations",
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: db.Commands,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			sub, err := fs.Sub(schema.MigrationsFS, "migrations")
			if err != nil {
				return err
			}
			return db.RunMigrate(logger.New(cfg.App.Env), cfg.PostgresURL(), sub, args[0], args[1:])
		},
	}
}
