package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"izakaya/internal/api"
	"izakaya/internal/config"
)

func TestServerEnvCarriesBlobSettings(t *testing.T) {
	defer func(level slog.Level) { cliLogLevel = level }(cliLogLevel)
	cliLogLevel = slog.LevelDebug

	cfg := config.Default()
	cfg.DBPath = "/tmp/izakaya.db"
	cfg.Blobs.Backend = config.BlobBackendS3
	cfg.Blobs.S3.Bucket = "photos"
	cfg.Blobs.S3.Endpoint = "http://127.0.0.1:9000"

	env := serverEnv(&cfg)
	for _, want := range []string{
		"IZAKAYA_DB=/tmp/izakaya.db",
		"IZAKAYA_BLOB_BACKEND=s3",
		"IZAKAYA_S3_BUCKET=photos",
		"IZAKAYA_S3_ENDPOINT=http://127.0.0.1:9000",
		"IZAKAYA_LOG_LEVEL=DEBUG",
	} {
		if !slices.Contains(env, want) {
			t.Fatalf("expected %q in %v", want, env)
		}
	}
	for _, kv := range env {
		if strings.HasPrefix(kv, "IZAKAYA_BLOB_ROOT=") || strings.HasPrefix(kv, "IZAKAYA_S3_REGION=") {
			t.Fatalf("empty setting exported: %q", kv)
		}
	}
}

func TestCatalogMismatch(t *testing.T) {
	dir := t.TempDir()
	served := filepath.Join(dir, "izakaya.db")
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(api.InfoResponse{DBPath: served, BlobBackend: "local"})
	}))
	defer ts.Close()

	cfg := config.Default()
	cfg.APIURL = ts.URL
	client := api.NewClient(ts.URL)

	cfg.DBPath = filepath.Join(dir, ".", "izakaya.db")
	if err := catalogMismatch(client, &cfg); err != nil {
		t.Fatalf("expected matching catalog, got %v", err)
	}

	cfg.DBPath = filepath.Join(dir, "other.db")
	err := catalogMismatch(client, &cfg)
	if err == nil || !strings.Contains(err.Error(), "other.db") {
		t.Fatalf("expected mismatch error, got %v", err)
	}
}
