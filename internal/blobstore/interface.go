package blobstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Open when no blob exists under the key.
var ErrNotFound = errors.New("blob not found")

// DeleteResult is the outcome of deleting one key.
type DeleteResult struct {
	Key string
	Err error
}

// BlobStore is the byte-storage abstraction used by the attachment reconciler.
//
// Put and Delete are idempotent: re-putting a key overwrites it and deleting a
// missing key is not an error.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (location string, err error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, keys []string) []DeleteResult
	List(ctx context.Context, prefix string) ([]string, error)
}

// FailedDeletes returns the subset of results that carry an error.
func FailedDeletes(results []DeleteResult) []DeleteResult {
	var failed []DeleteResult
	for _, res := range results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}
