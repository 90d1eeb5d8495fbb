package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"izakaya/internal/api"
	"izakaya/internal/blobstore"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	resp := api.InfoResponse{
		DBPath:      s.dbPath,
		BlobBackend: s.blobBackend,
	}
	if s.migrations != nil {
		status, err := s.migrations.MigrationStatus()
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		resp.SchemaVersion = status.CurrentVersion
		resp.PendingMigrations = len(status.Pending)
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := s.service.Genres(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, genres)
}

// handleGetBlob streams blob bytes. Keys embed a timestamp and random
// suffix, so the content under a key never changes.
func (s *Server) handleGetBlob(w http.ResponseWriter, r *http.Request) {
	key, err := blobstore.ValidateKey(chi.URLParam(r, "*"))
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(err, ErrCodeInvalidBlobKey))
		return
	}

	rc, err := s.blobs.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			s.writeErrorReq(w, r, http.StatusNotFound, notFoundCode(fmt.Errorf("blob not found"), ErrCodeBlobNotFound))
			return
		}
		s.writeErrorReq(w, r, http.StatusInternalServerError,
			makeAPIError(http.StatusInternalServerError, "internal", ErrCodeBlobFailure, fmt.Errorf("open blob %s: %w", key, err)))
		return
	}
	defer rc.Close()

	if contentType := mime.TypeByExtension(path.Ext(key)); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if _, err := io.Copy(w, rc); err != nil {
		s.log().Warn("stream blob", "key", key, "error", err)
	}
}
