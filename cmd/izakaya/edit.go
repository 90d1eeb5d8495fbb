package main

import (
	"errors"

	"github.com/spf13/cobra"

	"izakaya/internal/api"
	"izakaya/internal/config"
)

type editFlagValues struct {
	recordFlagValues
	deletePhotos []int64
	setCaptions  []string
}

func newEditCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	values := &editFlagValues{}
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Update a record and reconcile its photos",
		Args:  requireExactlyArgs(1, "exactly one id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecordID(args[0])
			if err != nil {
				return err
			}
			form, err := buildEditForm(cmd, values)
			if err != nil {
				return err
			}

			photos, closePhotos, err := openPhotos(values.photos, values.captions)
			if err != nil {
				return err
			}
			defer closePhotos()
			form.Photos = photos

			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.UpdateRecord(cmd.Context(), id, form)
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

	bindEditFlags(cmd, values)
	return cmd
}

func bindEditFlags(cmd *cobra.Command, values *editFlagValues) {
	bindRecordFlags(cmd, &values.recordFlagValues)
	cmd.Flags().Int64SliceVar(&values.deletePhotos, "delete-photo", nil, "attachment id to delete (repeatable)")
	cmd.Flags().StringArrayVar(&values.setCaptions, "set-caption", nil, "id=caption for an existing photo; empty clears (repeatable)")
}

func buildEditForm(cmd *cobra.Command, values *editFlagValues) (api.RecordForm, error) {
	form := recordFormFromFlags(cmd, &values.recordFlagValues)
	form.DeletedAttachmentIDs = values.deletePhotos

	edits, err := parseCaptionEdits(values.setCaptions)
	if err != nil {
		return form, err
	}
	form.CaptionEdits = edits

	if !hasRecordFormChanges(form) && len(values.photos) == 0 {
		return form, errors.New("no fields to update")
	}
	return form, nil
}

func hasRecordFormChanges(form api.RecordForm) bool {
	return form.Name != nil ||
		form.Rating != nil ||
		form.Genre != nil ||
		form.Memo != nil ||
		form.ExternalLinkURL != nil ||
		form.Status != nil ||
		len(form.DeletedAttachmentIDs) > 0 ||
		len(form.CaptionEdits) > 0 ||
		len(form.Photos) > 0
}
