package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"izakaya/internal/api"
	"izakaya/internal/config"
	"izakaya/internal/reconcile"
)

// seedFile is the YAML document read by `izakaya import`.
type seedFile struct {
	Records []seedRecord `yaml:"records"`
}

type seedRecord struct {
	Name   string      `yaml:"name"`
	Rating *int        `yaml:"rating"`
	Genre  string      `yaml:"genre"`
	Memo   string      `yaml:"memo"`
	Link   string      `yaml:"link"`
	Status string      `yaml:"status"`
	Photos []seedPhoto `yaml:"photos"`
}

type seedPhoto struct {
	Path    string `yaml:"path"`
	Caption string `yaml:"caption"`
}

type importResult struct {
	DryRun             bool                `json:"dry_run"`
	Created            int                 `json:"created"`
	Photos             int                 `json:"photos"`
	IDs                []int64             `json:"ids"`
	AttachmentFailures []reconcile.Failure `json:"attachment_failures,omitempty"`
}

// parseSeed decodes a seed document. Relative photo paths resolve against
// baseDir.
func parseSeed(data []byte, baseDir string) ([]seedRecord, error) {
	var seed seedFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&seed); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	if len(seed.Records) == 0 {
		return nil, errors.New("no records found in seed file")
	}

	for i := range seed.Records {
		record := &seed.Records[i]
		if strings.TrimSpace(record.Name) == "" {
			return nil, fmt.Errorf("record %d: name is required", i+1)
		}
		for j := range record.Photos {
			photo := &record.Photos[j]
			if strings.TrimSpace(photo.Path) == "" {
				return nil, fmt.Errorf("record %d photo %d: path is required", i+1, j+1)
			}
			if !filepath.IsAbs(photo.Path) {
				photo.Path = filepath.Join(baseDir, photo.Path)
			}
		}
	}
	return seed.Records, nil
}

func (r seedRecord) form() api.RecordForm {
	form := api.RecordForm{Name: &r.Name, Rating: r.Rating}
	if r.Genre != "" {
		form.Genre = &r.Genre
	}
	if r.Memo != "" {
		form.Memo = &r.Memo
	}
	if r.Link != "" {
		form.ExternalLinkURL = &r.Link
	}
	if r.Status != "" {
		form.Status = &r.Status
	}
	return form
}

func (r seedRecord) photoPaths() ([]string, []string) {
	paths := make([]string, 0, len(r.Photos))
	captions := make([]string, 0, len(r.Photos))
	for _, photo := range r.Photos {
		paths = append(paths, photo.Path)
		captions = append(captions, photo.Caption)
	}
	return paths, captions
}

func newImportCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		inputPath string
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Create records and photos from a YAML seed file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputPath == "" {
				return errors.New("--file is required")
			}
			data, err := os.ReadFile(inputPath)
			if err != nil {
				return err
			}
			records, err := parseSeed(data, filepath.Dir(inputPath))
			if err != nil {
				return err
			}

			result := importResult{DryRun: dryRun, IDs: []int64{}}
			if dryRun {
				for _, record := range records {
					for _, photo := range record.Photos {
						if _, err := os.Stat(photo.Path); err != nil {
							return fmt.Errorf("%s: %w", record.Name, err)
						}
					}
					result.Photos += len(record.Photos)
				}
				return writeImportResult(result, *jsonOutput)
			}

			err = withClient(cfg, func(client *api.Client) error {
				for _, record := range records {
					if err := importSeedRecord(cmd, client, record, &result); err != nil {
						return fmt.Errorf("%s: %w", record.Name, err)
					}
				}
				return nil
			})
			writeAttachmentFailures(result.AttachmentFailures)
			if err != nil {
				return err
			}
			return writeImportResult(result, *jsonOutput)
		},
	}

	cmd.Flags().StringVarP(&inputPath, "file", "f", "", "YAML seed file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the seed file without creating records")
	return cmd
}

func importSeedRecord(cmd *cobra.Command, client *api.Client, record seedRecord, result *importResult) error {
	paths, captions := record.photoPaths()
	photos, closePhotos, err := openPhotos(paths, captions)
	if err != nil {
		return err
	}
	defer closePhotos()

	form := record.form()
	form.Photos = photos
	resp, err := client.CreateRecord(cmd.Context(), form)
	if err != nil {
		return err
	}
	result.Created++
	result.Photos += len(resp.Attachments)
	result.IDs = append(result.IDs, resp.ID)
	result.AttachmentFailures = append(result.AttachmentFailures, resp.AttachmentFailures...)
	return nil
}

func writeImportResult(result importResult, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(result)
	}
	if result.DryRun {
		return writePlain("dry run: %d photos checked\n", result.Photos)
	}
	return writePlain("created %d records with %d photos\n", result.Created, result.Photos)
}
