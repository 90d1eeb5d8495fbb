package main

import (
	"github.com/spf13/cobra"

	"izakaya/internal/api"
	"izakaya/internal/config"
	"izakaya/internal/models"
)

func newShowCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id> [<id>...]",
		Short: "Show record details",
		Args:  requireAtLeastOneID,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseRecordIDs(args)
			if err != nil {
				return err
			}
			return withClient(cfg, func(client *api.Client) error {
				records := make([]models.Record, 0, len(ids))
				for _, id := range ids {
					record, err := client.GetRecord(cmd.Context(), id)
					if err != nil {
						return err
					}
					records = append(records, record)
				}

				if *jsonOutput {
					if len(records) == 1 {
						return writeJSON(records[0])
					}
					return writeJSON(records)
				}
				for i, record := range records {
					if i > 0 {
						if err := writePlain("\n"); err != nil {
							return err
						}
					}
					if err := writeRecordDetail(record); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	return cmd
}
