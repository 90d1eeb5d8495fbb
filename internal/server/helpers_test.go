package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"izakaya/internal/api"
	"izakaya/internal/blobstore"
	"izakaya/internal/config"
	"izakaya/internal/store"
)

type testEnv struct {
	srv   *Server
	store *store.Store
	blobs *countingBlobs
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, nil)
}

// newTestEnvWith lets configure swap stores or settings before the server
// is built.
func newTestEnvWith(t *testing.T, configure func(st *store.Store, opts *Options)) *testEnv {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	blobs := &countingBlobs{MemoryStore: blobstore.NewMemoryStore("/blobs")}
	opts := Options{
		Records:     st,
		Attachments: st,
		Blobs:       blobs,
		Uploads:     config.UploadConfig{AllowedMediaTypes: []string{"image/*"}},
		BlobBaseURL: "/blobs",
		BlobBackend: config.BlobBackendMemory,
		DBPath:      "test.db",
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if configure != nil {
		configure(st, &opts)
	}
	srv := New("127.0.0.1:0", opts)
	return &testEnv{srv: srv, store: st, blobs: blobs}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.srv.routes().ServeHTTP(w, req)
	return w
}

func (e *testEnv) sendForm(t *testing.T, method, path string, form api.RecordForm) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := encodeForm(t, form)
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", contentType)
	return e.do(req)
}

func (e *testEnv) createRecord(t *testing.T, form api.RecordForm) api.RecordResponse {
	t.Helper()
	w := e.sendForm(t, http.MethodPost, "/records", form)
	if w.Code != http.StatusCreated {
		t.Fatalf("create record: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp api.RecordResponse
	decodeBody(t, w, &resp)
	return resp
}

func encodeForm(t *testing.T, form api.RecordForm) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := form.Write(mw); err != nil {
		t.Fatalf("write form: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

// encodeRawForm writes plain fields, for field names the typed form does not emit.
func encodeRawForm(t *testing.T, fields [][2]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, field := range fields {
		if err := mw.WriteField(field[0], field[1]); err != nil {
			t.Fatalf("write field %s: %v", field[0], err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var errResp api.ErrorResponse
	decodeBody(t, w, &errResp)
	return errResp
}

func strPtr(value string) *string { return &value }

func intPtr(value int) *int { return &value }

func jpegPhoto(name, caption string) api.Photo {
	return api.Photo{
		Filename:    name,
		ContentType: "image/jpeg",
		Caption:     caption,
		Content:     strings.NewReader("\xff\xd8\xff\xe0 fake jpeg " + name),
	}
}

// countingBlobs records batched delete calls.
type countingBlobs struct {
	*blobstore.MemoryStore

	mu          sync.Mutex
	deleteCalls int
	deletedKeys []string
	failDelete  bool
}

func (c *countingBlobs) Delete(ctx context.Context, keys []string) []blobstore.DeleteResult {
	c.mu.Lock()
	c.deleteCalls++
	c.deletedKeys = append(c.deletedKeys, keys...)
	fail := c.failDelete
	c.mu.Unlock()
	if fail {
		results := make([]blobstore.DeleteResult, 0, len(keys))
		for _, key := range keys {
			results = append(results, blobstore.DeleteResult{Key: key, Err: errors.New("injected delete failure")})
		}
		return results
	}
	return c.MemoryStore.Delete(ctx, keys)
}

func (c *countingBlobs) calls() (int, []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deleteCalls, append([]string(nil), c.deletedKeys...)
}
