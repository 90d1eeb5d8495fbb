package main

import (
	"net/url"

	"github.com/spf13/cobra"

	"izakaya/internal/api"
	"izakaya/internal/config"
)

func newListCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		query  string
		genre  string
		status string
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List records, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				values := url.Values{}
				setIfNotEmpty(values, "q", query)
				setIfNotEmpty(values, "genre", genre)
				setIfNotEmpty(values, "status", status)
				if limit > 0 {
					values.Set("limit", intToString(limit))
				}
				if offset > 0 {
					values.Set("offset", intToString(offset))
				}

				resp, err := client.ListRecords(cmd.Context(), values)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writeRecordList(resp)
			})
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "name contains")
	cmd.Flags().StringVar(&genre, "genre", "", "genre filter (All for any)")
	cmd.Flags().StringVar(&status, "status", "", "status filter: VISITED, WANT_TO_GO or All")
	cmd.Flags().IntVar(&limit, "limit", 0, "limit results")
	cmd.Flags().IntVar(&offset, "offset", 0, "offset results")

	return cmd
}
