package main

import (
	"github.com/spf13/cobra"

	"izakaya/internal/api"
	"izakaya/internal/config"
)

func newGenresCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "genres",
		Short: "List genre suggestions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				genres, err := client.ListGenres(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(genres)
				}
				for _, genre := range genres {
					if err := writePlain("%s\n", genre); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}
