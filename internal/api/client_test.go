package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"izakaya/internal/models"
)

func TestHTTPTimeoutFromEnv(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})

	t.Run("duration format", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "45s")
		if got := httpTimeoutFromEnv(); got != 45*time.Second {
			t.Fatalf("expected 45s timeout, got %v", got)
		}
	})

	t.Run("integer seconds", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "25")
		if got := httpTimeoutFromEnv(); got != 25*time.Second {
			t.Fatalf("expected 25s timeout, got %v", got)
		}
	})

	t.Run("invalid falls back", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "invalid")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})
}

func TestCreateRecordSendsMultipartForm(t *testing.T) {
	var (
		gotName     string
		gotRating   string
		gotCaptions []string
		gotFiles    []string
		gotTypes    []string
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/records" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotName = r.FormValue(FieldName)
		gotRating = r.FormValue(FieldRating)
		gotCaptions = r.MultipartForm.Value[FieldCaptions]
		for _, fh := range r.MultipartForm.File[FieldImages] {
			gotFiles = append(gotFiles, fh.Filename)
			gotTypes = append(gotTypes, fh.Header.Get("Content-Type"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(RecordResponse{Record: models.Record{ID: 7, Name: gotName}})
	}))
	defer ts.Close()

	name := "Torikizoku"
	rating := 4
	client := NewClient(ts.URL)
	resp, err := client.CreateRecord(context.Background(), RecordForm{
		Name:   &name,
		Rating: &rating,
		Photos: []Photo{
			{Filename: "skewers.jpg", ContentType: "image/jpeg", Caption: "tsukune", Content: strings.NewReader("a")},
			{Filename: "counter.png", Caption: "", Content: strings.NewReader("b")},
		},
	})
	if err != nil {
		t.Fatalf("create record: %v", err)
	}
	if resp.ID != 7 || resp.Name != name {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if gotName != name || gotRating != "4" {
		t.Fatalf("unexpected scalars: name=%q rating=%q", gotName, gotRating)
	}
	if len(gotCaptions) != 2 || gotCaptions[0] != "tsukune" || gotCaptions[1] != "" {
		t.Fatalf("unexpected captions: %#v", gotCaptions)
	}
	if len(gotFiles) != 2 || gotFiles[0] != "skewers.jpg" || gotFiles[1] != "counter.png" {
		t.Fatalf("unexpected files: %#v", gotFiles)
	}
	if gotTypes[0] != "image/jpeg" || gotTypes[1] != "application/octet-stream" {
		t.Fatalf("unexpected content types: %#v", gotTypes)
	}
}

func TestUpdateRecordEncodesDelta(t *testing.T) {
	var deleted, edits string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/records/3" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		deleted = r.FormValue(FieldDeletedAttachmentIDs)
		edits = r.FormValue(FieldCaptionEdits)
		_ = json.NewEncoder(w).Encode(RecordResponse{Record: models.Record{ID: 3}})
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL).UpdateRecord(context.Background(), 3, RecordForm{
		DeletedAttachmentIDs: []int64{5, 6},
		CaptionEdits:         map[int64]string{9: "grill"},
	})
	if err != nil {
		t.Fatalf("update record: %v", err)
	}
	if deleted != "[5,6]" {
		t.Fatalf("unexpected deletions field: %q", deleted)
	}
	if edits != `{"9":"grill"}` {
		t.Fatalf("unexpected caption edits field: %q", edits)
	}
}

func TestDecodeErrorReturnsAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "record not found", Code: "not_found", ErrorCode: 2001})
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL).GetRecord(context.Background(), 42)
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.ErrorCode != 2001 {
		t.Fatalf("expected error code 2001, got %v", err)
	}
	if err.Error() != "not_found: record not found" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}
