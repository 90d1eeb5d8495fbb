package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"izakaya/internal/config"
	"izakaya/internal/format"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var (
		jsonOutput   bool
		outputFormat string
		logLevel     string
	)

	cmd := &cobra.Command{
		Use:           "izakaya",
		Short:         "Izakaya keeps a catalog of venues and their photos",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warning, err := setupLogging(cmd.ErrOrStderr(), logLevel, cfg)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), warning)
			}

			formatter, err := format.ByName(outputFormat)
			if err != nil {
				return err
			}
			outputFormatter = formatter
			if cmd.Flags().Changed("format") {
				jsonOutput = true
			}
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "json", "structured output format: json or yaml (implies --json)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newMigrateCmd(cfg, &jsonOutput),
		newGCCmd(cfg, &jsonOutput),
		newInfoCmd(cfg, &jsonOutput),
		newListCmd(cfg, &jsonOutput),
		newShowCmd(cfg, &jsonOutput),
		newAddCmd(cfg, &jsonOutput),
		newEditCmd(cfg, &jsonOutput),
		newRmCmd(cfg, &jsonOutput),
		newGenresCmd(cfg, &jsonOutput),
		newImportCmd(cfg, &jsonOutput),
		newConfigCmd(cfg, &jsonOutput),
	)

	return cmd
}
