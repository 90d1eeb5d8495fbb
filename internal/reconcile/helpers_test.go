package reconcile

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"izakaya/internal/blobstore"
	"izakaya/internal/models"
	"izakaya/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func createRecord(t *testing.T, st *store.Store, name string) int64 {
	t.Helper()
	record := &models.Record{Name: name, Rating: 3, Genre: "Izakaya"}
	if err := st.CreateRecord(context.Background(), record); err != nil {
		t.Fatalf("create record: %v", err)
	}
	return record.ID
}

func jpeg(name, caption string) Addition {
	return Addition{Payload: []byte("\xff\xd8\xff\xe0 fake jpeg " + name), ContentType: "image/jpeg", Filename: name, Caption: caption}
}

// faultyBlobs wraps a MemoryStore with failure injection.
type faultyBlobs struct {
	*blobstore.MemoryStore

	mu            sync.Mutex
	deleteCalls   int
	deletedKeys   []string
	failPutFor    []string
	failDeleteFor map[string]bool

	putStarted  chan struct{}
	putRelease  chan struct{}
	putBlocks   bool
	afterDelete func()
	beforeList  func()
}

func newFaultyBlobs() *faultyBlobs {
	return &faultyBlobs{MemoryStore: blobstore.NewMemoryStore(""), failDeleteFor: map[string]bool{}}
}

func (f *faultyBlobs) Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	for _, marker := range f.failPutFor {
		if strings.Contains(key, marker) {
			return "", errors.New("injected upload failure")
		}
	}
	if f.putStarted != nil {
		f.putStarted <- struct{}{}
		<-f.putRelease
	}
	if f.putBlocks {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.MemoryStore.Put(ctx, key, r, contentType)
}

func (f *faultyBlobs) Delete(ctx context.Context, keys []string) []blobstore.DeleteResult {
	f.mu.Lock()
	f.deleteCalls++
	f.deletedKeys = append(f.deletedKeys, keys...)
	f.mu.Unlock()

	results := make([]blobstore.DeleteResult, 0, len(keys))
	for _, key := range keys {
		if f.failDeleteFor[key] {
			results = append(results, blobstore.DeleteResult{Key: key, Err: errors.New("injected delete failure")})
			continue
		}
		results = append(results, f.MemoryStore.Delete(ctx, []string{key})...)
	}
	if f.afterDelete != nil {
		f.afterDelete()
	}
	return results
}

func (f *faultyBlobs) List(ctx context.Context, prefix string) ([]string, error) {
	if f.beforeList != nil {
		f.beforeList()
	}
	return f.MemoryStore.List(ctx, prefix)
}

func (f *faultyBlobs) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleteCalls
}

// faultyAttachments wraps a Store with failure injection on mutations.
type faultyAttachments struct {
	*store.Store

	failCreate     bool
	failCaptionFor map[int64]bool
	failDeleteRows bool

	// failListFrom fails ListAttachmentsByRecord from the nth call on.
	failListFrom int
	listCalls    int
}

func (f *faultyAttachments) ListAttachmentsByRecord(ctx context.Context, recordID int64) ([]models.Attachment, error) {
	f.listCalls++
	if f.failListFrom > 0 && f.listCalls >= f.failListFrom {
		return nil, errors.New("injected list failure")
	}
	return f.Store.ListAttachmentsByRecord(ctx, recordID)
}

func (f *faultyAttachments) CreateAttachments(ctx context.Context, attachments []*models.Attachment) error {
	if f.failCreate {
		return errors.New("injected insert failure")
	}
	return f.Store.CreateAttachments(ctx, attachments)
}

func (f *faultyAttachments) UpdateAttachmentCaption(ctx context.Context, recordID, id int64, caption string) (bool, error) {
	if f.failCaptionFor[id] {
		return false, errors.New("injected caption failure")
	}
	return f.Store.UpdateAttachmentCaption(ctx, recordID, id, caption)
}

func (f *faultyAttachments) DeleteAttachments(ctx context.Context, recordID int64, ids []int64) (int64, error) {
	if f.failDeleteRows {
		return 0, errors.New("injected row delete failure")
	}
	return f.Store.DeleteAttachments(ctx, recordID, ids)
}

func newTestReconciler(attachments store.AttachmentStore, blobs blobstore.BlobStore) *Reconciler {
	return New(attachments, blobs, Options{
		Concurrency:       4,
		OpTimeout:         5 * time.Second,
		AllowedMediaTypes: []string{"image/*"},
	})
}

func seed(t *testing.T, r *Reconciler, recordID int64, additions ...Addition) []models.Attachment {
	t.Helper()
	res := r.AddOnly(context.Background(), recordID, additions)
	if !res.Report.Empty() {
		t.Fatalf("unexpected seed failures: %+v", res.Report.Failures)
	}
	return res.Attachments
}
