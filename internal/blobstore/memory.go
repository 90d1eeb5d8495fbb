package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

type memoryBlob struct {
	data        []byte
	contentType string
}

// MemoryStore keeps blobs in process memory. It is safe for concurrent use.
type MemoryStore struct {
	baseURL string

	mu    sync.RWMutex
	blobs map[string]memoryBlob
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{baseURL: baseURL, blobs: make(map[string]memoryBlob)}
}

func (m *MemoryStore) Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if r == nil {
		return "", fmt.Errorf("reader is required")
	}
	if _, err := ValidateKey(key); err != nil {
		return "", err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = memoryBlob{data: data, contentType: contentType}
	return locationFor(m.baseURL, key), nil
}

func (m *MemoryStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	blob, ok := m.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(blob.data)), nil
}

func (m *MemoryStore) Delete(ctx context.Context, keys []string) []DeleteResult {
	results := make([]DeleteResult, 0, len(keys))
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			results = append(results, DeleteResult{Key: key, Err: err})
			continue
		}
		delete(m.blobs, key)
		results = append(results, DeleteResult{Key: key})
	}
	return results
}

func (m *MemoryStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := []string{}
	for key := range m.blobs {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Has reports whether key is stored.
func (m *MemoryStore) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blobs[key]
	return ok
}

// Len returns the number of stored blobs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
