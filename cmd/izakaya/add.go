package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"izakaya/internal/api"
	"izakaya/internal/config"
)

type recordFlagValues struct {
	name     string
	rating   int
	genre    string
	memo     string
	link     string
	status   string
	photos   []string
	captions []string
}

func bindRecordFlags(cmd *cobra.Command, v *recordFlagValues) {
	cmd.Flags().StringVar(&v.name, "name", "", "venue name")
	cmd.Flags().IntVar(&v.rating, "rating", 0, "rating from 1 to 5")
	cmd.Flags().StringVar(&v.genre, "genre", "", "genre, e.g. Yakitori")
	cmd.Flags().StringVar(&v.memo, "memo", "", "free-form memo")
	cmd.Flags().StringVar(&v.link, "link", "", "external link such as a map URL")
	cmd.Flags().StringVar(&v.status, "status", "", "VISITED or WANT_TO_GO")
	cmd.Flags().StringArrayVar(&v.photos, "photo", nil, "photo file to upload (repeatable)")
	cmd.Flags().StringArrayVar(&v.captions, "caption", nil, "caption for the photo at the same position (repeatable)")
}

// recordFormFromFlags sets only the scalar fields whose flags were given.
func recordFormFromFlags(cmd *cobra.Command, v *recordFlagValues) api.RecordForm {
	form := api.RecordForm{}
	if cmd.Flags().Changed("name") {
		form.Name = &v.name
	}
	if cmd.Flags().Changed("rating") {
		form.Rating = &v.rating
	}
	if cmd.Flags().Changed("genre") {
		form.Genre = &v.genre
	}
	if cmd.Flags().Changed("memo") {
		form.Memo = &v.memo
	}
	if cmd.Flags().Changed("link") {
		form.ExternalLinkURL = &v.link
	}
	if cmd.Flags().Changed("status") {
		form.Status = &v.status
	}
	return form
}

func newAddCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	values := &recordFlagValues{}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a record with optional photos",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(values.name) == "" {
				return errors.New("--name is required")
			}
			form := recordFormFromFlags(cmd, values)

			photos, closePhotos, err := openPhotos(values.photos, values.captions)
			if err != nil {
				return err
			}
			defer closePhotos()
			form.Photos = photos

			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.CreateRecord(cmd.Context(), form)
				if err != nil {
					return err
				}
				writeAttachmentFailures(resp.AttachmentFailures)
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writePlain("%s\n", formatRecordLine(resp.Record))
			})
		},
	}

	bindRecordFlags(cmd, values)
	return cmd
}
