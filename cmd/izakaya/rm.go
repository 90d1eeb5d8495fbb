package main

import (
	"github.com/spf13/cobra"

	"izakaya/internal/api"
	"izakaya/internal/config"
)

func newRmCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var missingOK bool

	cmd := &cobra.Command{
		Use:   "rm <id> [<id>...]",
		Short: "Delete records and their photos",
		Args:  requireAtLeastOneID,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseRecordIDs(args)
			if err != nil {
				return err
			}
			return withClient(cfg, func(client *api.Client) error {
				responses := make([]api.DeleteResponse, 0, len(ids))
				deleted := make([]int64, 0, len(ids))
				for _, id := range ids {
					resp, err := client.DeleteRecord(cmd.Context(), id)
					if err != nil {
						if missingOK && api.IsNotFound(err) {
							continue
						}
						return err
					}
					writeAttachmentFailures(resp.AttachmentFailures)
					responses = append(responses, resp)
					deleted = append(deleted, id)
				}
				if *jsonOutput {
					if len(responses) == 1 {
						return writeJSON(responses[0])
					}
					return writeJSON(responses)
				}
				for _, id := range deleted {
					if err := writePlain("deleted %d\n", id); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&missingOK, "missing-ok", false, "skip ids that do not exist")
	return cmd
}
