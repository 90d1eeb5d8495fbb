package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"izakaya/internal/models"
)

func newAttachments(recordID int64, n int) []*models.Attachment {
	out := make([]*models.Attachment, 0, n)
	for i := range n {
		key := fmt.Sprintf("records/%d/%d-photo.jpg", recordID, i)
		out = append(out, &models.Attachment{
			RecordID:    recordID,
			BlobKey:     key,
			Location:    "/blobs/" + key,
			Caption:     fmt.Sprintf("caption %d", i),
			ContentType: "image/jpeg",
			Filename:    "photo.jpg",
			SizeBytes:   int64(100 + i),
		})
	}
	return out
}

func TestCreateAttachmentsAssignsIDsAndPositions(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	record := createTestRecord(t, st, "Kushiya", "Yakitori", models.StatusVisited, time.Now().UTC())

	first := newAttachments(record.ID, 2)
	if err := st.CreateAttachments(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}
	for i, a := range first {
		if a.ID <= 0 {
			t.Fatalf("attachment %d: expected id", i)
		}
		if a.Position != i {
			t.Fatalf("attachment %d: expected position %d, got %d", i, i, a.Position)
		}
	}

	second := newAttachments(record.ID, 1)
	second[0].BlobKey = "records/1/later.jpg"
	if err := st.CreateAttachments(ctx, second); err != nil {
		t.Fatalf("create second batch: %v", err)
	}
	if second[0].Position != 2 {
		t.Fatalf("expected position to continue at 2, got %d", second[0].Position)
	}

	got, err := st.ListAttachmentsByRecord(ctx, record.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 attachments, got %d", len(got))
	}
	if got[0].ID != first[0].ID || got[2].ID != second[0].ID {
		t.Fatalf("unexpected order: %+v", got)
	}
	if got[0].Caption != "caption 0" || got[0].ContentType != "image/jpeg" || got[0].SizeBytes != 100 {
		t.Fatalf("unexpected attachment fields: %+v", got[0])
	}
}

func TestCreateAttachmentsIsAllOrNothing(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	record := createTestRecord(t, st, "Kushiya", "Yakitori", models.StatusVisited, time.Now().UTC())

	batch := newAttachments(record.ID, 3)
	batch[2].BlobKey = batch[0].BlobKey
	if err := st.CreateAttachments(ctx, batch); err == nil {
		t.Fatal("expected duplicate blob key to fail")
	}
	for _, a := range batch {
		if a.ID != 0 {
			t.Fatalf("ids must not be assigned on failure, got %d", a.ID)
		}
	}

	got, err := st.ListAttachmentsByRecord(ctx, record.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected rollback, got %d rows", len(got))
	}
}

func TestCreateAttachmentsRequiresExistingRecord(t *testing.T) {
	st := testStore(t)
	if err := st.CreateAttachments(context.Background(), newAttachments(42, 1)); err == nil {
		t.Fatal("expected foreign key failure")
	}
}

func TestAttachmentMutationsAreScopedByRecord(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	owner := createTestRecord(t, st, "Owner", "Bar", models.StatusVisited, now)
	other := createTestRecord(t, st, "Other", "Bar", models.StatusVisited, now)

	owned := newAttachments(owner.ID, 2)
	if err := st.CreateAttachments(ctx, owned); err != nil {
		t.Fatalf("create owned: %v", err)
	}
	foreign := newAttachments(other.ID, 1)
	if err := st.CreateAttachments(ctx, foreign); err != nil {
		t.Fatalf("create foreign: %v", err)
	}

	matched, err := st.UpdateAttachmentCaption(ctx, owner.ID, foreign[0].ID, "hijacked")
	if err != nil {
		t.Fatalf("update caption: %v", err)
	}
	if matched {
		t.Fatal("foreign attachment caption must not match")
	}

	n, err := st.DeleteAttachments(ctx, owner.ID, []int64{foreign[0].ID})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no foreign rows deleted, got %d", n)
	}

	otherRows, err := st.ListAttachmentsByRecord(ctx, other.ID)
	if err != nil {
		t.Fatalf("list other: %v", err)
	}
	if len(otherRows) != 1 || otherRows[0].Caption != "caption 0" {
		t.Fatalf("foreign attachment changed: %+v", otherRows)
	}
}

func TestUpdateAttachmentCaptionClears(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	record := createTestRecord(t, st, "Kushiya", "Yakitori", models.StatusVisited, time.Now().UTC())
	batch := newAttachments(record.ID, 2)
	if err := st.CreateAttachments(ctx, batch); err != nil {
		t.Fatalf("create: %v", err)
	}

	matched, err := st.UpdateAttachmentCaption(ctx, record.ID, batch[0].ID, "")
	if err != nil || !matched {
		t.Fatalf("expected caption update (err %v)", err)
	}

	got, err := st.ListAttachmentsByRecord(ctx, record.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got[0].Caption != "" {
		t.Fatalf("expected cleared caption, got %q", got[0].Caption)
	}
	if got[1].Caption != "caption 1" {
		t.Fatalf("sibling caption changed: %q", got[1].Caption)
	}
}

func TestDeleteAttachmentsBulk(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	record := createTestRecord(t, st, "Kushiya", "Yakitori", models.StatusVisited, time.Now().UTC())
	batch := newAttachments(record.ID, 3)
	if err := st.CreateAttachments(ctx, batch); err != nil {
		t.Fatalf("create: %v", err)
	}

	n, err := st.DeleteAttachments(ctx, record.ID, []int64{batch[0].ID, batch[2].ID, 9999})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 deleted, got %d", n)
	}

	n, err = st.DeleteAttachmentsByRecord(ctx, record.ID)
	if err != nil {
		t.Fatalf("delete by record: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 remaining row deleted, got %d", n)
	}
}

func TestListAttachmentsByRecords(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	a := createTestRecord(t, st, "A", "Bar", models.StatusVisited, now)
	b := createTestRecord(t, st, "B", "Bar", models.StatusVisited, now)
	c := createTestRecord(t, st, "C", "Bar", models.StatusVisited, now)

	if err := st.CreateAttachments(ctx, newAttachments(a.ID, 2)); err != nil {
		t.Fatalf("create a: %v", err)
	}
	if err := st.CreateAttachments(ctx, newAttachments(b.ID, 1)); err != nil {
		t.Fatalf("create b: %v", err)
	}

	grouped, err := st.ListAttachmentsByRecords(ctx, []int64{a.ID, b.ID, c.ID})
	if err != nil {
		t.Fatalf("list grouped: %v", err)
	}
	if len(grouped[a.ID]) != 2 || len(grouped[b.ID]) != 1 || len(grouped[c.ID]) != 0 {
		t.Fatalf("unexpected grouping: %v", grouped)
	}
	if grouped[a.ID][0].Position != 0 || grouped[a.ID][1].Position != 1 {
		t.Fatalf("expected position order, got %+v", grouped[a.ID])
	}
}
