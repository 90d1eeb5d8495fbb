package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore stores blob bytes as files under a root directory. Keys map
// directly to relative paths.
type LocalStore struct {
	root    string
	baseURL string
}

// NewLocalStore creates a filesystem store rooted at root. Locations are
// baseURL + "/" + key.
func NewLocalStore(root, baseURL string) (*LocalStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("local blob root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(abs, "tmp"), 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{root: abs, baseURL: baseURL}, nil
}

// Put streams r into a temp file and renames it into place.
func (l *LocalStore) Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	if l == nil {
		return "", fmt.Errorf("blob store is not configured")
	}
	if r == nil {
		return "", fmt.Errorf("reader is required")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dst, err := l.pathFromKey(key)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(filepath.Join(l.root, "tmp"), "put-*")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r}); err != nil {
		cleanup()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		cleanup()
		return "", err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		cleanup()
		return "", err
	}

	return locationFor(l.baseURL, key), nil
}

// Open returns a reader for the blob stored under key.
func (l *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if l == nil {
		return nil, fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := l.pathFromKey(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// Delete removes each key. Missing files are ignored.
func (l *LocalStore) Delete(ctx context.Context, keys []string) []DeleteResult {
	results := make([]DeleteResult, 0, len(keys))
	for _, key := range keys {
		results = append(results, DeleteResult{Key: key, Err: l.deleteOne(ctx, key)})
	}
	return results
}

// List returns all keys under prefix.
func (l *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	if l == nil {
		return nil, fmt.Errorf("blob store is not configured")
	}
	tmpDir := filepath.Join(l.root, "tmp")
	keys := []string{}
	err := filepath.WalkDir(l.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p == tmpDir {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (l *LocalStore) deleteOne(ctx context.Context, key string) error {
	if l == nil {
		return fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := l.pathFromKey(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (l *LocalStore) pathFromKey(key string) (string, error) {
	clean, err := ValidateKey(key)
	if err != nil {
		return "", err
	}
	if clean == "tmp" || strings.HasPrefix(clean, "tmp/") {
		return "", fmt.Errorf("invalid blob key")
	}
	return filepath.Join(l.root, filepath.FromSlash(clean)), nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
