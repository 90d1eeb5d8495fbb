package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"izakaya/internal/api"
	"izakaya/internal/config"
)

const (
	serverStartTimeout = 3 * time.Second
	serverPollInterval = 100 * time.Millisecond
	serverPingTimeout  = 500 * time.Millisecond
)

// withClient runs fn against the configured API. When nothing answers at
// the API URL a local server is started on the same catalog for the
// duration of the call.
func withClient(cfg *config.Config, fn func(*api.Client) error) error {
	client := api.NewClient(cfg.APIURL)

	stop, err := ensureServer(client, cfg)
	if err != nil {
		return err
	}
	if stop != nil {
		defer stop()
	}
	return fn(client)
}

func ensureServer(client *api.Client, cfg *config.Config) (func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), serverPingTimeout)
	err := client.Ping(ctx)
	cancel()
	if err == nil {
		if mismatch := catalogMismatch(client, cfg); mismatch != nil {
			slog.Warn("running server serves another catalog", "error", mismatch)
		}
		return nil, nil
	}

	proc, err := startServerProcess(cfg)
	if err != nil {
		return nil, fmt.Errorf("start local server: %w", err)
	}
	stop := func() {
		_ = proc.Process.Kill()
		_ = proc.Wait()
	}

	if err := waitForServer(client, serverStartTimeout); err != nil {
		stop()
		return nil, err
	}
	if err := catalogMismatch(client, cfg); err != nil {
		stop()
		return nil, err
	}
	return stop, nil
}

// catalogMismatch compares the server's database path with the configured
// one. A server that does not report its path is accepted.
func catalogMismatch(client *api.Client, cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), serverPingTimeout)
	defer cancel()
	info, err := client.GetInfo(ctx)
	if err != nil {
		return fmt.Errorf("read server info: %w", err)
	}
	if info.DBPath == "" || samePath(info.DBPath, cfg.DBPath) {
		return nil
	}
	return fmt.Errorf("server at %s uses database %s, expected %s", cfg.APIURL, info.DBPath, cfg.DBPath)
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

func startServerProcess(cfg *config.Config) (*exec.Cmd, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}

	proc := exec.Command(exe, "srv")
	proc.Env = append(os.Environ(), serverEnv(cfg)...)
	proc.Stdout = io.Discard
	proc.Stderr = io.Discard

	slog.Debug("starting local server", "db_path", cfg.DBPath, "blob_backend", cfg.Blobs.Backend, "api_url", cfg.APIURL)
	if err := proc.Start(); err != nil {
		return nil, err
	}
	return proc, nil
}

// serverEnv carries the resolved catalog and blob settings to a child
// server. Empty values are left to the child's own config.
func serverEnv(cfg *config.Config) []string {
	settings := []struct {
		key   string
		value string
	}{
		{"IZAKAYA_DB", cfg.DBPath},
		{"IZAKAYA_API_URL", cfg.APIURL},
		{"IZAKAYA_LOG_LEVEL", cliLogLevel.String()},
		{"IZAKAYA_BLOB_BACKEND", cfg.Blobs.Backend},
		{"IZAKAYA_BLOB_ROOT", cfg.Blobs.Root},
		{"IZAKAYA_S3_BUCKET", cfg.Blobs.S3.Bucket},
		{"IZAKAYA_S3_REGION", cfg.Blobs.S3.Region},
		{"IZAKAYA_S3_ENDPOINT", cfg.Blobs.S3.Endpoint},
	}
	env := make([]string, 0, len(settings))
	for _, s := range settings {
		if s.value == "" {
			continue
		}
		env = append(env, s.key+"="+s.value)
	}
	return env
}

func waitForServer(client *api.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(serverPollInterval)
	defer ticker.Stop()
	for {
		pingCtx, pingCancel := context.WithTimeout(ctx, 4*serverPollInterval)
		err := client.Ping(pingCtx)
		pingCancel()
		if err == nil {
			return nil
		}
		var opErr *net.OpError
		if !errors.As(err, &opErr) {
			// Something else owns the port.
			return err
		}
		select {
		case <-ctx.Done():
			return errors.New("server did not start in time")
		case <-ticker.C:
		}
	}
}
