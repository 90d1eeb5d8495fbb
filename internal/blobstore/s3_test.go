package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 implements the subset of the S3 API the store uses. Unused methods
// of the embedded interface panic if called.
type fakeS3 struct {
	s3API

	mu           sync.Mutex
	objects      map[string][]byte
	deleteCalls  [][]string
	failDeleteOf map[string]bool
	deleteErr    error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, failDeleteOf: map[string]bool{}}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(in.Delete.Objects))
	for _, obj := range in.Delete.Objects {
		keys = append(keys, aws.ToString(obj.Key))
	}
	f.deleteCalls = append(f.deleteCalls, keys)
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	out := &s3.DeleteObjectsOutput{}
	for _, key := range keys {
		if f.failDeleteOf[key] {
			out.Errors = append(out.Errors, types.Error{Key: aws.String(key), Code: aws.String("AccessDenied"), Message: aws.String("denied")})
			continue
		}
		delete(f.objects, key)
	}
	return out, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := aws.ToString(in.Prefix)
	keys := []string{}
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, key := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
	}
	return out, nil
}

func TestS3StorePutOpenWithPrefix(t *testing.T) {
	fake := newFakeS3()
	store := newS3StoreWithClient(fake, S3Options{Bucket: "b", Prefix: "/izakaya/", PublicBaseURL: "https://cdn.example.com"})
	ctx := context.Background()

	location, err := store.Put(ctx, "records/1/a.jpg", strings.NewReader("jpeg"), "image/jpeg")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if location != "https://cdn.example.com/records/1/a.jpg" {
		t.Fatalf("unexpected location %q", location)
	}
	if _, ok := fake.objects["izakaya/records/1/a.jpg"]; !ok {
		t.Fatalf("expected prefixed object key, got %v", fake.objects)
	}

	rc, err := store.Open(ctx, "records/1/a.jpg")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "jpeg" {
		t.Fatalf("unexpected body %q", string(data))
	}

	if _, err := store.Open(ctx, "records/1/missing.jpg"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	keys, err := store.List(ctx, KeyPrefix)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 1 || keys[0] != "records/1/a.jpg" {
		t.Fatalf("expected prefix stripped from listed keys, got %v", keys)
	}
}

func TestS3StoreDeleteBatchesAndReportsPerKeyErrors(t *testing.T) {
	fake := newFakeS3()
	store := newS3StoreWithClient(fake, S3Options{Bucket: "b"})
	ctx := context.Background()

	keys := make([]string, 0, 1500)
	for i := range 1500 {
		key := fmt.Sprintf("records/9/%d.jpg", i)
		fake.objects[key] = []byte("x")
		keys = append(keys, key)
	}
	fake.failDeleteOf["records/9/7.jpg"] = true

	results := store.Delete(ctx, keys)
	if len(results) != len(keys) {
		t.Fatalf("expected %d results, got %d", len(keys), len(results))
	}
	if len(fake.deleteCalls) != 2 {
		t.Fatalf("expected 2 batched calls, got %d", len(fake.deleteCalls))
	}
	if len(fake.deleteCalls[0]) != 1000 || len(fake.deleteCalls[1]) != 500 {
		t.Fatalf("unexpected batch sizes %d/%d", len(fake.deleteCalls[0]), len(fake.deleteCalls[1]))
	}
	failed := FailedDeletes(results)
	if len(failed) != 1 || failed[0].Key != "records/9/7.jpg" {
		t.Fatalf("expected one failed key, got %v", failed)
	}
	if len(fake.objects) != 1 {
		t.Fatalf("expected only the failed object to remain, got %d", len(fake.objects))
	}
}

func TestS3StoreDeleteCallErrorFailsEveryKey(t *testing.T) {
	fake := newFakeS3()
	fake.deleteErr = errors.New("network down")
	store := newS3StoreWithClient(fake, S3Options{Bucket: "b"})

	results := store.Delete(context.Background(), []string{"records/1/a.jpg", "records/1/b.jpg", "../bad"})
	if len(FailedDeletes(results)) != 3 {
		t.Fatalf("expected all keys to fail, got %v", results)
	}
	if len(fake.deleteCalls) != 1 || len(fake.deleteCalls[0]) != 2 {
		t.Fatalf("invalid key should not be sent, calls %v", fake.deleteCalls)
	}
}
