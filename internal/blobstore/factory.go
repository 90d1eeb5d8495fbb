package blobstore

import (
	"context"
	"fmt"

	"izakaya/internal/config"
)

// NewFromConfig creates a BlobStore implementation based on the configured backend.
func NewFromConfig(ctx context.Context, cfg config.BlobConfig) (BlobStore, error) {
	switch cfg.Backend {
	case config.BlobBackendMemory:
		return NewMemoryStore(cfg.BaseURL), nil
	case config.BlobBackendS3:
		baseURL := cfg.S3.PublicBaseURL
		if baseURL == "" {
			baseURL = cfg.BaseURL
		}
		return NewS3Store(ctx, S3Options{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			Prefix:          cfg.S3.Prefix,
			PublicBaseURL:   baseURL,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UsePathStyle:    cfg.S3.UsePathStyle,
		})
	case config.BlobBackendLocal, "":
		if cfg.Root == "" {
			return nil, fmt.Errorf("local blob backend requires blobs.root to be set")
		}
		return NewLocalStore(cfg.Root, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unknown blob backend: %s", cfg.Backend)
	}
}
