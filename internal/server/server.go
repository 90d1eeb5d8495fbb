package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"izakaya/internal/blobstore"
	"izakaya/internal/config"
	"izakaya/internal/reconcile"
	"izakaya/internal/store"
)

const (
	allowRemoteEnvKey = "IZAKAYA_ALLOW_REMOTE"
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 5 * time.Minute
	writeTimeout      = 5 * time.Minute
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 15 * time.Second
	defaultBlobRoute  = "/blobs"
)

// Options wires the dependencies of a Server.
type Options struct {
	Records     store.RecordStore
	Attachments store.AttachmentStore
	Blobs       blobstore.BlobStore
	Uploads     config.UploadConfig
	Reconcile   config.ReconcileConfig
	// BlobBaseURL is the location prefix handed out for blobs. When it is a
	// path, blobs are served under it; otherwise under /blobs.
	BlobBaseURL string
	BlobBackend string
	DBPath      string
	Logger      *slog.Logger
}

// Server wraps HTTP handlers for the izakaya API.
type Server struct {
	addr        string
	blobs       blobstore.BlobStore
	service     *RecordService
	uploads     config.UploadConfig
	migrations  migrationStatusSource
	blobRoute   string
	blobBackend string
	dbPath      string
	logger      *slog.Logger
}

type migrationStatusSource interface {
	MigrationStatus() (*store.MigrationStatus, error)
}

// New creates a new server instance.
func New(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	uploads := opts.Uploads
	if uploads.MaxUploadBytes <= 0 {
		uploads.MaxUploadBytes = config.DefaultMaxUploadBytes
	}
	if uploads.MultipartMaxMemory <= 0 {
		uploads.MultipartMaxMemory = config.DefaultMultipartMaxMemory
	}

	reconciler := reconcile.New(opts.Attachments, opts.Blobs, reconcile.Options{
		Concurrency:       opts.Reconcile.Concurrency,
		OpTimeout:         opts.Reconcile.OpTimeout,
		AllowedMediaTypes: uploads.AllowedMediaTypes,
		Logger:            logger,
	})

	var migrations migrationStatusSource
	if source, ok := any(opts.Records).(migrationStatusSource); ok {
		migrations = source
	}

	return &Server{
		addr:        addr,
		blobs:       opts.Blobs,
		service:     NewRecordService(opts.Records, opts.Attachments, reconciler, opts.Reconcile.OpTimeout, logger),
		uploads:     uploads,
		migrations:  migrations,
		blobRoute:   blobRoute(opts.BlobBaseURL),
		blobBackend: opts.BlobBackend,
		dbPath:      opts.DBPath,
		logger:      logger,
	}
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

// ListenAndServe starts the HTTP server and shuts it down gracefully when
// ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log().Info("starting server", "addr", s.addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// ListenAddr converts a base API URL into a listen address.
func ListenAddr(apiURL string) (string, error) {
	if apiURL == "" {
		return "", fmt.Errorf("api url is required")
	}
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host := u.Hostname()
		if !isAllowedListenHost(host) {
			return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
		}
		return u.Host, nil
	}

	host, _, err := net.SplitHostPort(apiURL)
	if err == nil && !isAllowedListenHost(host) {
		return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
	}

	return apiURL, nil
}

func isAllowedListenHost(host string) bool {
	if host == "" {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)), "true") {
		return true
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// blobRoute picks the path blobs are served under from the configured base URL.
func blobRoute(baseURL string) string {
	baseURL = strings.TrimSpace(baseURL)
	if !strings.HasPrefix(baseURL, "/") || strings.HasPrefix(baseURL, "//") {
		return defaultBlobRoute
	}
	route := "/" + strings.Trim(baseURL, "/")
	if route == "/" {
		return defaultBlobRoute
	}
	return route
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
