package main

import (
	"github.com/spf13/cobra"

	"izakaya/internal/api"
	"izakaya/internal/config"
)

func newInfoCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show server information",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				info, err := client.GetInfo(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(info)
				}
				if err := writePlain("api_url: %s\ndb_path: %s\nblob_backend: %s\n", cfg.APIURL, info.DBPath, info.BlobBackend); err != nil {
					return err
				}
				return writePlain("schema_version: %d\npending_migrations: %d\n", info.SchemaVersion, info.PendingMigrations)
			})
		},
	}
}
