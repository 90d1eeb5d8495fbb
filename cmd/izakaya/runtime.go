package main

import (
	"context"
	"fmt"

	"izakaya/internal/blobstore"
	"izakaya/internal/config"
	"izakaya/internal/store"
)

// openStores opens the metadata store, applying pending migrations, and the
// configured blob store.
func openStores(ctx context.Context, cfg *config.Config) (*store.Store, blobstore.BlobStore, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("config not initialized")
	}
	if cfg.DBPath == "" {
		return nil, nil, fmt.Errorf("db path is required")
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	blobs, err := blobstore.NewFromConfig(ctx, cfg.Blobs)
	if err != nil {
		_ = st.Close()
		return nil, nil, fmt.Errorf("open blob store: %w", err)
	}
	return st, blobs, nil
}
