package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/person_service/internal/app/storage/postgres"
	"github.com/R3E-Network/person_service/internal/config"
	"github.com/R3E-Network/person_service/internal/platform/migrations"
)

func migrateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := flags.load()
			if err != nil {
				return err
			}
			if cfg.Database.Driver == config.DriverMemory {
				return fmt.Errorf("migrate requires driver %q or %q", config.DriverPostgres, config.DriverPGX)
			}

			db, err := postgres.Open(cmd.Context(), cfg.Database.Driver, cfg.Database.DSN, postgres.PoolOptions{})
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			if err := migrations.Apply(cmd.Context(), db); err != nil {
				return err
			}
			log.WithField("statements", len(migrations.Statements())).Info("schema applied")
			return nil
		},
	}
}
