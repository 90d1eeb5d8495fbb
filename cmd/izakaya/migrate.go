package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"izakaya/internal/config"
	"izakaya/internal/store"
)

func newMigrateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run or inspect database schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.DBPath == "" {
				return fmt.Errorf("db path is required")
			}

			if status {
				st, err := store.OpenWithoutMigrations(cfg.DBPath)
				if err != nil {
					return err
				}
				defer st.Close()

				plan, err := st.MigrationStatus()
				if err != nil {
					return fmt.Errorf("inspect migrations: %w", err)
				}
				if *jsonOutput {
					return writeJSON(plan)
				}
				return writeMigrationStatus(plan)
			}

			// Same migrations the server applies on start.
			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			defer st.Close()

			if *jsonOutput {
				plan, err := st.MigrationStatus()
				if err != nil {
					return err
				}
				return writeJSON(plan)
			}

			return writePlain("Migrations applied successfully.\n")
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "show migration status without applying")
	cmd.Flags().BoolVar(&status, "dry-run", false, "alias for --status")

	return cmd
}

func writeMigrationStatus(plan *store.MigrationStatus) error {
	if err := writePlain("Current version: %d\n", plan.CurrentVersion); err != nil {
		return err
	}
	if err := writePlain("Available version: %d\n", plan.AvailableVersion); err != nil {
		return err
	}
	if plan.Dirty {
		if err := writePlain("Database is dirty; the last migration did not complete.\n"); err != nil {
			return err
		}
	}
	if len(plan.Pending) == 0 {
		return writePlain("No pending migrations.\n")
	}
	if err := writePlain("Pending migrations: %d\n", len(plan.Pending)); err != nil {
		return err
	}
	for _, m := range plan.Pending {
		if err := writePlain("  %d: %s\n", m.Version, m.Description); err != nil {
			return err
		}
	}
	return nil
}
