package reconcile

import (
	"context"
	"strings"
	"testing"
	"time"

	"izakaya/internal/blobstore"
	"izakaya/internal/models"
)

func TestSweepFindsAndDeletesOrphans(t *testing.T) {
	st := testStore(t)
	blobs := newFaultyBlobs()
	r := newTestReconciler(st, blobs)
	recordID := createRecord(t, st, "Sweep")
	kept := seed(t, r, recordID, jpeg("kept.jpg", ""))

	old := time.Now().Add(-48 * time.Hour)
	orphanA := blobstore.NewKey(recordID, "orphan-a.jpg", old)
	orphanB := blobstore.NewKey(recordID, "orphan-b.jpg", old)
	fresh := blobstore.NewKey(recordID, "fresh.jpg", time.Now())
	for _, key := range []string{orphanA, orphanB, fresh, "elsewhere/unrelated.bin"} {
		if _, err := blobs.MemoryStore.Put(context.Background(), key, strings.NewReader("x"), ""); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}

	sweeper := NewSweeper(st, blobs, SweepOptions{BatchSize: 1, MinAge: time.Hour})

	dry, err := sweeper.Sweep(context.Background(), false)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if dry.Applied || len(dry.Orphans) != 2 || dry.Deleted != 0 {
		t.Fatalf("unexpected dry run result: %+v", dry)
	}
	if dry.Scanned != 4 || dry.Referenced != 1 || dry.TooRecent != 1 {
		t.Fatalf("unexpected counts: %+v", dry)
	}
	if blobs.calls() != 0 {
		t.Fatal("dry run must not delete")
	}

	applied, err := sweeper.Sweep(context.Background(), true)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if applied.Deleted != 2 || len(applied.Failed) != 0 {
		t.Fatalf("unexpected apply result: %+v", applied)
	}
	if blobs.calls() != 2 {
		t.Fatalf("expected one delete call per batch, got %d", blobs.calls())
	}
	if blobs.Has(orphanA) || blobs.Has(orphanB) {
		t.Fatal("orphans should be deleted")
	}
	if !blobs.Has(kept[0].BlobKey) || !blobs.Has(fresh) {
		t.Fatal("referenced and recent blobs must survive")
	}
}

func TestSweepReportsDanglingRowsAndFailures(t *testing.T) {
	st := testStore(t)
	blobs := newFaultyBlobs()
	r := newTestReconciler(st, blobs)
	recordID := createRecord(t, st, "Dangling")
	rows := seed(t, r, recordID, jpeg("lost.jpg", ""))
	blobs.MemoryStore.Delete(context.Background(), []string{rows[0].BlobKey})

	orphan := blobstore.NewKey(recordID, "stuck.jpg", time.Now().Add(-2*time.Hour))
	if _, err := blobs.MemoryStore.Put(context.Background(), orphan, strings.NewReader("x"), ""); err != nil {
		t.Fatalf("put: %v", err)
	}
	blobs.failDeleteFor[orphan] = true

	res, err := NewSweeper(st, blobs, SweepOptions{}).Sweep(context.Background(), true)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(res.DanglingRows) != 1 || res.DanglingRows[0] != rows[0].BlobKey {
		t.Fatalf("expected dangling row reported, got %+v", res.DanglingRows)
	}
	if len(res.Failed) != 1 || res.Failed[0].Key != orphan {
		t.Fatalf("expected failed orphan delete, got %+v", res.Failed)
	}

	remaining, err := st.ListAttachmentsByRecord(context.Background(), recordID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatal("dangling rows must never be removed by the sweeper")
	}
}

func TestSweepKeepsUploadLandingDuringListing(t *testing.T) {
	st := testStore(t)
	blobs := newFaultyBlobs()
	r := newTestReconciler(st, blobs)
	recordID := createRecord(t, st, "Racing")

	var added []models.Attachment
	blobs.beforeList = func() {
		blobs.beforeList = nil
		added = seed(t, r, recordID, jpeg("racing.jpg", ""))
	}

	sweeper := NewSweeper(st, blobs, SweepOptions{})
	result, err := sweeper.Sweep(context.Background(), true)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(result.Orphans) != 0 || result.Referenced != 1 {
		t.Fatalf("racing upload taken for an orphan: %+v", result)
	}
	if !blobs.Has(added[0].BlobKey) {
		t.Fatal("racing upload deleted")
	}
}
