package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"izakaya/internal/config"
	"izakaya/internal/server"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the izakaya API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.Default().With("component", "server")

			addr, err := server.ListenAddr(cfg.APIURL)
			if err != nil {
				return err
			}

			logger.Info("opening database", "path", cfg.DBPath, "blob_backend", cfg.Blobs.Backend)
			st, blobs, err := openStores(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			srv := server.New(addr, server.Options{
				Records:     st,
				Attachments: st,
				Blobs:       blobs,
				Uploads:     cfg.Uploads,
				Reconcile:   cfg.Reconcile,
				BlobBaseURL: cfg.Blobs.BaseURL,
				BlobBackend: cfg.Blobs.Backend,
				DBPath:      cfg.DBPath,
				Logger:      logger,
			})
			return srv.ListenAndServe(cmd.Context())
		},
	}
}
