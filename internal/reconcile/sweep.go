package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"izakaya/internal/blobstore"
	"izakaya/internal/store"
)

const (
	DefaultSweepBatchSize = 500
	DefaultSweepMinAge    = time.Hour
)

// SweepOptions tunes a Sweeper. A zero BatchSize falls back to the default;
// a zero MinAge sweeps blobs of any age.
type SweepOptions struct {
	BatchSize int
	// MinAge protects blobs whose row may still be on its way.
	MinAge time.Duration
	Logger *slog.Logger
	Now    func() time.Time
}

// SweepFailure is one orphaned blob that could not be deleted.
type SweepFailure struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Applied      bool           `json:"applied"`
	Scanned      int            `json:"scanned"`
	Referenced   int            `json:"referenced"`
	TooRecent    int            `json:"too_recent"`
	Orphans      []string       `json:"orphans"`
	Deleted      int            `json:"deleted"`
	Failed       []SweepFailure `json:"failed,omitempty"`
	DanglingRows []string       `json:"dangling_rows,omitempty"`
}

// Sweeper finds blobs no attachment row references and, when applied,
// deletes them. Rows whose blob is missing are only reported.
type Sweeper struct {
	attachments store.AttachmentStore
	blobs       blobstore.BlobStore
	batchSize   int
	minAge      time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewSweeper creates a Sweeper.
func NewSweeper(attachments store.AttachmentStore, blobs blobstore.BlobStore, opts SweepOptions) *Sweeper {
	s := &Sweeper{
		attachments: attachments,
		blobs:       blobs,
		batchSize:   opts.BatchSize,
		minAge:      opts.MinAge,
		logger:      opts.Logger,
		now:         opts.Now,
	}
	if s.batchSize <= 0 {
		s.batchSize = DefaultSweepBatchSize
	}
	if s.minAge < 0 {
		s.minAge = 0
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "sweep")
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Sweep compares blob keys under blobstore.KeyPrefix with referenced keys.
// With apply false nothing is deleted.
func (s *Sweeper) Sweep(ctx context.Context, apply bool) (SweepResult, error) {
	result := SweepResult{Applied: apply, Orphans: []string{}}

	// Blobs are listed before rows: an upload racing the sweep then has its
	// row in the referenced set rather than being taken for an orphan.
	stored, err := s.blobs.List(ctx, blobstore.KeyPrefix)
	if err != nil {
		return result, fmt.Errorf("list blobs: %w", err)
	}
	referenced, err := s.attachments.ListBlobKeys(ctx)
	if err != nil {
		return result, fmt.Errorf("list referenced keys: %w", err)
	}
	result.Scanned = len(stored)

	refSet := make(map[string]struct{}, len(referenced))
	for _, key := range referenced {
		refSet[key] = struct{}{}
	}
	storedSet := make(map[string]struct{}, len(stored))
	cutoff := s.now().Add(-s.minAge)
	for _, key := range stored {
		storedSet[key] = struct{}{}
		if _, ok := refSet[key]; ok {
			result.Referenced++
			continue
		}
		if uploadedAt, ok := blobstore.KeyTime(key); ok && uploadedAt.After(cutoff) {
			result.TooRecent++
			continue
		}
		result.Orphans = append(result.Orphans, key)
	}
	for _, key := range referenced {
		if _, ok := storedSet[key]; !ok {
			result.DanglingRows = append(result.DanglingRows, key)
		}
	}
	if len(result.DanglingRows) > 0 {
		s.logger.Warn("attachment rows reference missing blobs", "count", len(result.DanglingRows))
	}

	if !apply || len(result.Orphans) == 0 {
		sweepOrphansTotal.WithLabelValues("found").Add(float64(len(result.Orphans)))
		return result, nil
	}

	for start := 0; start < len(result.Orphans); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		end := min(start+s.batchSize, len(result.Orphans))
		for _, res := range s.blobs.Delete(ctx, result.Orphans[start:end]) {
			if res.Err != nil {
				s.logger.Warn("orphan delete failed", "blob_key", res.Key, "error", res.Err)
				result.Failed = append(result.Failed, SweepFailure{Key: res.Key, Error: res.Err.Error()})
				sweepOrphansTotal.WithLabelValues("failed").Inc()
				continue
			}
			result.Deleted++
			sweepOrphansTotal.WithLabelValues("deleted").Inc()
		}
	}
	s.logger.Info("sweep finished", "scanned", result.Scanned, "orphans", len(result.Orphans), "deleted", result.Deleted, "failed", len(result.Failed))
	return result, nil
}
