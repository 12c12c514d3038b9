package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Strob0t/TenantCMS/internal/adapter/postgres"
)

func migrateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logCloser, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer logCloser.Close()

			if err := postgres.RunMigrations(cmd.Context(), cfg.Postgres.DSN); err != nil {
				return fmt.Errorf("migrate up: %w", err)
			}
			return printVersion(cmd, cfg.Postgres.DSN)
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back applied migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logCloser, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer logCloser.Close()

			if err := postgres.RollbackMigrations(cmd.Context(), cfg.Postgres.DSN, steps); err != nil {
				return fmt.Errorf("migrate down: %w", err)
			}
			return printVersion(cmd, cfg.Postgres.DSN)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logCloser, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer logCloser.Close()
			return printVersion(cmd, cfg.Postgres.DSN)
		},
	})
	return cmd
}

func printVersion(cmd *cobra.Command, dsn string) error {
	v, err := postgres.MigrationVersion(cmd.Context(), dsn)
	if err != nil {
		return fmt.Errorf("migration version: %w", err)
	}
	cmd.Printf("schema version %d\n", v)
	return nil
}
