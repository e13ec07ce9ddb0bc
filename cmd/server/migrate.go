package main

import (
	"mood/internal/db"

	"github.com/spf13/cobra"
)

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := commonRun()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			conn, err := db.Open(cfg.DB, logger)
			if err != nil {
				return err
			}
			defer db.Close(conn, logger)

			return db.Migrate(conn, logger)
		},
	}
}
