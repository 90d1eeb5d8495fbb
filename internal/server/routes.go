package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.withObservability)
	r.Use(middleware.Recoverer)

	// Health check, info and metrics.
	r.Get("/health", s.handleHealth)
	r.Get("/info", s.handleInfo)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Records.
	r.Route("/records", func(r chi.Router) {
		r.Get("/", s.handleListRecords)
		r.Post("/", s.handleCreateRecord)
		r.Get("/{id}", s.handleGetRecord)
		r.Put("/{id}", s.handleUpdateRecord)
		r.Delete("/{id}", s.handleDeleteRecord)
	})

	// Genre suggestions.
	r.Get("/genres", s.handleListGenres)

	// Blob bytes for local and in-memory backends.
	r.Get(s.blobRoute+"/*", s.handleGetBlob)

	return r
}
