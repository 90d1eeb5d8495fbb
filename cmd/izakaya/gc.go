package main

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"izakaya/internal/config"
	"izakaya/internal/reconcile"
)

func newGCCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		apply     bool
		minAge    time.Duration
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Find and delete photo blobs no attachment references",
		Long: "Lists every blob under the records/ prefix, subtracts the keys referenced by\n" +
			"attachment rows and reports the rest. Nothing is deleted without --apply.",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, blobs, err := openStores(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			if batchSize <= 0 {
				batchSize = cfg.Reconcile.SweepBatchSize
			}
			sweeper := reconcile.NewSweeper(st, blobs, reconcile.SweepOptions{
				BatchSize: batchSize,
				MinAge:    minAge,
				Logger:    slog.Default(),
			})

			result, err := sweeper.Sweep(cmd.Context(), apply)
			if err != nil {
				return err
			}
			if *jsonOutput {
				return writeJSON(result)
			}
			return writeSweepResult(result)
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "delete orphaned blobs (default is a dry run)")
	cmd.Flags().DurationVar(&minAge, "min-age", reconcile.DefaultSweepMinAge, "skip blobs younger than this")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "keys per delete call (default from reconcile.sweep_batch_size)")

	return cmd
}

func writeSweepResult(result reconcile.SweepResult) error {
	mode := "dry run"
	if result.Applied {
		mode = "applied"
	}
	if err := writePlain("gc (%s): scanned %d, referenced %d, too recent %d, orphans %d, deleted %d\n",
		mode, result.Scanned, result.Referenced, result.TooRecent, len(result.Orphans), result.Deleted); err != nil {
		return err
	}
	if !result.Applied {
		for _, key := range result.Orphans {
			if err := writePlain("  orphan %s\n", key); err != nil {
				return err
			}
		}
	}
	for _, failure := range result.Failed {
		if err := writePlain("  failed %s: %s\n", failure.Key, failure.Error); err != nil {
			return err
		}
	}
	for _, key := range result.DanglingRows {
		if err := writePlain("  dangling row for missing blob %s\n", key); err != nil {
			return err
		}
	}
	return nil
}
