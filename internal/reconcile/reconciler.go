package reconcile

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"izakaya/internal/blobstore"
	"izakaya/internal/models"
	"izakaya/internal/store"
)

const (
	DefaultConcurrency = 4
	DefaultOpTimeout   = 30 * time.Second
)

// Options tunes a Reconciler. Zero values fall back to the defaults.
type Options struct {
	Concurrency       int
	OpTimeout         time.Duration
	AllowedMediaTypes []string
	Logger            *slog.Logger
	Now               func() time.Time
}

// Reconciler applies attachment deltas across the metadata store and the
// blob store. It keeps no state between calls.
type Reconciler struct {
	attachments store.AttachmentStore
	blobs       blobstore.BlobStore

	concurrency int
	opTimeout   time.Duration
	allowed     []string
	logger      *slog.Logger
	now         func() time.Time
}

// Result is the attachment list after reconciliation plus the item failures.
type Result struct {
	Attachments []models.Attachment
	Report      Report
}

// New creates a Reconciler.
func New(attachments store.AttachmentStore, blobs blobstore.BlobStore, opts Options) *Reconciler {
	r := &Reconciler{
		attachments: attachments,
		blobs:       blobs,
		concurrency: opts.Concurrency,
		opTimeout:   opts.OpTimeout,
		allowed:     opts.AllowedMediaTypes,
		logger:      opts.Logger,
		now:         opts.Now,
	}
	if r.concurrency <= 0 {
		r.concurrency = DefaultConcurrency
	}
	if r.opTimeout <= 0 {
		r.opTimeout = DefaultOpTimeout
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = r.logger.With("component", "reconcile")
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Reconcile validates ownership, deletes, edits captions and adds photos for
// recordID, in that order. Item failures never abort the call; they are
// collected in the report. When the final attachment list cannot be re-read
// it is rebuilt from the starting snapshot and the changes that succeeded,
// and the read failure is reported.
func (r *Reconciler) Reconcile(ctx context.Context, recordID int64, delta Delta) Result {
	start := time.Now()
	defer func() {
		reconcileDurationSeconds.WithLabelValues("reconcile").Observe(time.Since(start).Seconds())
	}()

	rep := &reportBuilder{}
	delta = r.validate(delta, rep)

	out := r.snapshot(ctx, recordID)
	deletions, edits := r.resolveOwnership(ctx, recordID, delta, out, rep)
	if len(deletions) > 0 {
		r.deletePhase(ctx, recordID, deletions, out, rep)
	}
	if len(edits) > 0 {
		r.captionPhase(ctx, recordID, edits, out, rep)
	}
	if len(delta.Additions) > 0 {
		r.additionPhase(ctx, recordID, delta.Additions, out, rep)
	}

	return r.finish(ctx, recordID, out, rep)
}

// AddOnly runs the addition phase alone. Used when a record is created, so
// the record starts with no attachments.
func (r *Reconciler) AddOnly(ctx context.Context, recordID int64, additions []Addition) Result {
	start := time.Now()
	defer func() {
		reconcileDurationSeconds.WithLabelValues("add_only").Observe(time.Since(start).Seconds())
	}()

	rep := &reportBuilder{}
	out := newOutcome(nil, nil)
	delta := r.validate(Delta{Additions: additions}, rep)
	if len(delta.Additions) > 0 {
		r.additionPhase(ctx, recordID, delta.Additions, out, rep)
	}
	return r.finish(ctx, recordID, out, rep)
}

// RemoveAll deletes every blob of recordID in one batched call, then every
// attachment row of the record. Row deletion runs even when blob deletion
// fails; failures are reported. Once started it ignores ctx cancellation.
func (r *Reconciler) RemoveAll(ctx context.Context, recordID int64) Report {
	start := time.Now()
	defer func() {
		reconcileDurationSeconds.WithLabelValues("remove_all").Observe(time.Since(start).Seconds())
	}()

	rep := &reportBuilder{}
	ctx = context.WithoutCancel(ctx)

	listCtx, cancel := r.opContext(ctx)
	existing, err := r.attachments.ListAttachmentsByRecord(listCtx, recordID)
	cancel()
	if err != nil {
		r.logger.Error("list attachments for removal failed", "record_id", recordID, "error", err)
		rep.add(Failure{Phase: PhaseDelete, Kind: classify(err), Error: fmt.Sprintf("list attachments: %v", err)})
	}

	if len(existing) > 0 {
		r.deleteBlobs(ctx, recordID, existing, rep)
	}

	rowCtx, cancel := r.opContext(ctx)
	n, err := r.attachments.DeleteAttachmentsByRecord(rowCtx, recordID)
	cancel()
	observeOutcome(PhaseDelete, err)
	if err != nil {
		r.logger.Error("delete attachment rows failed", "record_id", recordID, "error", err)
		rep.add(Failure{Phase: PhaseDelete, Kind: classify(err), Error: fmt.Sprintf("delete attachment rows: %v", err)})
	} else if n > 0 {
		r.logger.Debug("attachment rows deleted", "record_id", recordID, "count", n)
	}

	return rep.report()
}

// snapshot reads the record's attachments before any change. A failed read
// leaves the outcome without a baseline; ownership can then not be resolved.
func (r *Reconciler) snapshot(ctx context.Context, recordID int64) *outcome {
	if ctx.Err() != nil {
		return &outcome{}
	}
	opCtx, cancel := r.opContext(ctx)
	before, err := r.attachments.ListAttachmentsByRecord(opCtx, recordID)
	cancel()
	if err != nil {
		r.logger.Error("read attachments failed", "record_id", recordID, "error", err)
		return newOutcome(nil, err)
	}
	return newOutcome(before, nil)
}

func (r *Reconciler) validate(delta Delta, rep *reportBuilder) Delta {
	normalized, failures := delta.normalize(r.allowed)
	for _, f := range failures {
		r.logger.Warn("attachment rejected", "filename", f.Filename, "error", f.Error)
		rep.add(f)
	}
	return normalized
}

// resolveOwnership keeps the deletion and caption edit ids present in the
// record's snapshot. Ids owned by another record, or by none, are dropped
// silently.
func (r *Reconciler) resolveOwnership(ctx context.Context, recordID int64, delta Delta, out *outcome, rep *reportBuilder) ([]models.Attachment, map[int64]string) {
	ids := append([]int64{}, delta.Deletions...)
	ids = append(ids, delta.editIDs()...)
	if len(ids) == 0 {
		return nil, nil
	}
	if !out.known {
		kind, msg := KindCanceled, "context canceled"
		if out.err != nil {
			kind, msg = classify(out.err), fmt.Sprintf("resolve attachment: %v", out.err)
		} else if err := ctx.Err(); err != nil {
			msg = err.Error()
		}
		for _, id := range ids {
			rep.add(Failure{Phase: PhaseValidate, AttachmentID: id, Kind: kind, Error: msg})
		}
		return nil, nil
	}

	byID := make(map[int64]models.Attachment, len(out.before))
	for _, a := range out.before {
		byID[a.ID] = a
	}

	var deletions []models.Attachment
	for _, id := range delta.Deletions {
		if a, ok := byID[id]; ok {
			deletions = append(deletions, a)
		}
	}
	edits := make(map[int64]string, len(delta.CaptionEdits))
	for id, caption := range delta.CaptionEdits {
		if _, ok := byID[id]; ok {
			edits[id] = caption
		}
	}
	if ignored := len(ids) - len(deletions) - len(edits); ignored > 0 {
		r.logger.Debug("ignored attachment ids not owned by record", "record_id", recordID, "count", ignored)
	}
	return deletions, edits
}

// deletePhase removes blobs first, then rows. A blob failure leaves an
// orphaned blob for the sweeper; the row is deleted regardless. Once the
// phase starts it runs detached from ctx so a blob is never removed while
// its row stays behind.
func (r *Reconciler) deletePhase(ctx context.Context, recordID int64, targets []models.Attachment, out *outcome, rep *reportBuilder) {
	if err := ctx.Err(); err != nil {
		for _, a := range targets {
			rep.add(Failure{Phase: PhaseDelete, AttachmentID: a.ID, BlobKey: a.BlobKey, Kind: KindCanceled, Error: err.Error()})
		}
		return
	}

	detached := context.WithoutCancel(ctx)
	r.deleteBlobs(detached, recordID, targets, rep)

	ids := make([]int64, 0, len(targets))
	for _, a := range targets {
		ids = append(ids, a.ID)
	}
	opCtx, cancel := r.opContext(detached)
	n, err := r.attachments.DeleteAttachments(opCtx, recordID, ids)
	cancel()
	observeOutcome(PhaseDelete, err)
	if err != nil {
		// The blobs may already be gone, leaving rows that point nowhere.
		r.logger.Error("delete attachment rows failed", "record_id", recordID, "ids", ids, "error", err)
		for _, a := range targets {
			rep.add(Failure{Phase: PhaseDelete, AttachmentID: a.ID, BlobKey: a.BlobKey, Kind: classify(err), Error: fmt.Sprintf("delete row: %v", err)})
		}
		return
	}
	out.markDeleted(ids)
	r.logger.Debug("attachments deleted", "record_id", recordID, "count", n)
}

// deleteBlobs issues one batched blob delete for targets and reports per-key failures.
func (r *Reconciler) deleteBlobs(ctx context.Context, recordID int64, targets []models.Attachment, rep *reportBuilder) {
	keys := make([]string, 0, len(targets))
	byKey := make(map[string]int64, len(targets))
	for _, a := range targets {
		keys = append(keys, a.BlobKey)
		byKey[a.BlobKey] = a.ID
	}

	blobDeleteBatchSize.Observe(float64(len(keys)))
	opCtx, cancel := r.opContext(ctx)
	results := r.blobs.Delete(opCtx, keys)
	cancel()

	for _, res := range results {
		observeOutcome(PhaseDelete, res.Err)
		if res.Err == nil {
			continue
		}
		r.logger.Warn("blob delete failed", "record_id", recordID, "blob_key", res.Key, "error", res.Err)
		rep.add(Failure{
			Phase:        PhaseDelete,
			AttachmentID: byKey[res.Key],
			BlobKey:      res.Key,
			Kind:         classify(res.Err),
			Error:        fmt.Sprintf("delete blob: %v", res.Err),
		})
	}
}

// captionPhase applies every edit concurrently. Edits are independent; a
// failed edit is reported and the rest proceed.
func (r *Reconciler) captionPhase(ctx context.Context, recordID int64, edits map[int64]string, out *outcome, rep *reportBuilder) {
	var g errgroup.Group
	g.SetLimit(r.concurrency)

	for id, caption := range edits {
		if err := ctx.Err(); err != nil {
			rep.add(Failure{Phase: PhaseCaption, AttachmentID: id, Kind: KindCanceled, Error: err.Error()})
			continue
		}
		g.Go(func() error {
			opCtx, cancel := r.opContext(ctx)
			defer cancel()
			matched, err := r.attachments.UpdateAttachmentCaption(opCtx, recordID, id, caption)
			observeOutcome(PhaseCaption, err)
			if err != nil {
				r.logger.Warn("caption update failed", "record_id", recordID, "attachment_id", id, "error", err)
				rep.add(Failure{Phase: PhaseCaption, AttachmentID: id, Kind: classify(err), Error: fmt.Sprintf("update caption: %v", err)})
				return nil
			}
			if !matched {
				r.logger.Debug("caption target vanished", "record_id", recordID, "attachment_id", id)
				return nil
			}
			out.setCaption(id, caption)
			return nil
		})
	}
	_ = g.Wait()
}

// additionPhase uploads additions concurrently, then inserts the successful
// ones in submission order with one bulk create. An upload that has started
// runs to completion even if ctx is canceled, and its row is still inserted.
func (r *Reconciler) additionPhase(ctx context.Context, recordID int64, additions []Addition, out *outcome, rep *reportBuilder) {
	staged := make([]*models.Attachment, len(additions))
	detached := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, add := range additions {
		if err := ctx.Err(); err != nil {
			rep.add(Failure{Phase: PhaseAdd, Filename: add.Filename, Kind: KindCanceled, Error: err.Error()})
			continue
		}
		g.Go(func() error {
			key := blobstore.NewKey(recordID, add.Filename, r.now())
			opCtx, cancel := r.opContext(detached)
			defer cancel()
			location, err := r.blobs.Put(opCtx, key, bytes.NewReader(add.Payload), add.ContentType)
			observeOutcome(PhaseAdd, err)
			if err != nil {
				r.logger.Warn("upload failed", "record_id", recordID, "filename", add.Filename, "blob_key", key, "error", err)
				rep.add(Failure{Phase: PhaseAdd, Filename: add.Filename, BlobKey: key, Kind: classify(err), Error: fmt.Sprintf("upload: %v", err)})
				return nil
			}
			staged[i] = &models.Attachment{
				RecordID:    recordID,
				BlobKey:     key,
				Location:    location,
				Caption:     add.Caption,
				ContentType: add.ContentType,
				Filename:    add.Filename,
				SizeBytes:   int64(len(add.Payload)),
			}
			return nil
		})
	}
	_ = g.Wait()

	rows := make([]*models.Attachment, 0, len(staged))
	for _, a := range staged {
		if a != nil {
			rows = append(rows, a)
		}
	}
	if len(rows) == 0 {
		return
	}

	opCtx, cancel := r.opContext(detached)
	err := r.attachments.CreateAttachments(opCtx, rows)
	cancel()
	if err == nil {
		out.addRows(rows)
		r.logger.Debug("attachments added", "record_id", recordID, "count", len(rows))
		return
	}

	r.logger.Error("bulk attachment insert failed", "record_id", recordID, "count", len(rows), "error", err)
	keys := make([]string, 0, len(rows))
	for _, a := range rows {
		keys = append(keys, a.BlobKey)
		rep.add(Failure{Phase: PhaseAdd, Filename: a.Filename, BlobKey: a.BlobKey, Kind: classify(err), Error: fmt.Sprintf("insert attachment: %v", err)})
	}
	cleanupCtx, cancel := r.opContext(detached)
	defer cancel()
	for _, res := range blobstore.FailedDeletes(r.blobs.Delete(cleanupCtx, keys)) {
		r.logger.Warn("cleanup of uploaded blob failed", "record_id", recordID, "blob_key", res.Key, "error", res.Err)
	}
}

// finish re-reads the record's attachments. The read is detached from ctx
// so a canceled request still gets the list its completed work produced.
func (r *Reconciler) finish(ctx context.Context, recordID int64, out *outcome, rep *reportBuilder) Result {
	opCtx, cancel := r.opContext(context.WithoutCancel(ctx))
	defer cancel()
	attachments, err := r.attachments.ListAttachmentsByRecord(opCtx, recordID)
	if err == nil {
		return Result{Attachments: attachments, Report: rep.report()}
	}

	r.logger.Error("re-read attachments failed", "record_id", recordID, "error", err)
	rep.add(Failure{Phase: PhaseRead, Kind: classify(err), Error: fmt.Sprintf("read attachments: %v", err)})
	return Result{Attachments: out.rebuild(), Report: rep.report()}
}

func (r *Reconciler) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.opTimeout)
}
