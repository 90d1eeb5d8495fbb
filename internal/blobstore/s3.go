package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// s3DeleteBatchLimit is the DeleteObjects per-request maximum.
const s3DeleteBatchLimit = 1000

// S3Options configures an S3-compatible object store backend.
type S3Options struct {
	Bucket          string
	Region          string
	Endpoint        string
	Prefix          string
	PublicBaseURL   string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

type s3API interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// S3Store stores blobs as objects in one bucket. Deletes are batched into
// DeleteObjects calls.
type S3Store struct {
	client   s3API
	uploader *manager.Uploader
	bucket   string
	prefix   string
	baseURL  string
}

// NewS3Store builds a client from the default AWS config chain, overridden by
// static credentials and a custom endpoint when provided.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})
	return newS3StoreWithClient(client, opts), nil
}

func newS3StoreWithClient(client s3API, opts S3Options) *S3Store {
	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   opts.Bucket,
		prefix:   strings.Trim(opts.Prefix, "/"),
		baseURL:  opts.PublicBaseURL,
	}
}

func (s *S3Store) Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	if r == nil {
		return "", fmt.Errorf("reader is required")
	}
	if _, err := ValidateKey(key); err != nil {
		return "", err
	}
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
		Body:   r,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return locationFor(s.baseURL, key), nil
}

func (s *S3Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if _, err := ValidateKey(key); err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return out.Body, nil
}

// Delete issues one DeleteObjects call per batch of up to 1000 keys.
func (s *S3Store) Delete(ctx context.Context, keys []string) []DeleteResult {
	results := make([]DeleteResult, 0, len(keys))
	for start := 0; start < len(keys); start += s3DeleteBatchLimit {
		end := min(start+s3DeleteBatchLimit, len(keys))
		results = append(results, s.deleteBatch(ctx, keys[start:end])...)
	}
	return results
}

func (s *S3Store) deleteBatch(ctx context.Context, keys []string) []DeleteResult {
	results := make([]DeleteResult, 0, len(keys))
	objects := make([]types.ObjectIdentifier, 0, len(keys))
	byObjectKey := make(map[string]string, len(keys))
	for _, key := range keys {
		if _, err := ValidateKey(key); err != nil {
			results = append(results, DeleteResult{Key: key, Err: err})
			continue
		}
		objectKey := s.objectKey(key)
		byObjectKey[objectKey] = key
		objects = append(objects, types.ObjectIdentifier{Key: aws.String(objectKey)})
	}
	if len(objects) == 0 {
		return results
	}

	out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.bucket),
		Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
	})
	if err != nil {
		for _, obj := range objects {
			results = append(results, DeleteResult{Key: byObjectKey[aws.ToString(obj.Key)], Err: fmt.Errorf("delete objects: %w", err)})
		}
		return results
	}

	failed := make(map[string]error, len(out.Errors))
	for _, e := range out.Errors {
		failed[aws.ToString(e.Key)] = fmt.Errorf("delete %s: %s: %s", aws.ToString(e.Key), aws.ToString(e.Code), aws.ToString(e.Message))
	}
	for _, obj := range objects {
		objectKey := aws.ToString(obj.Key)
		results = append(results, DeleteResult{Key: byObjectKey[objectKey], Err: failed[objectKey]})
	}
	return results
}

func (s *S3Store) List(ctx context.Context, prefix string) ([]string, error) {
	keys := []string{}
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.objectKey(prefix)),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, s.storeKey(aws.ToString(obj.Key)))
		}
	}
	return keys, nil
}

func (s *S3Store) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func (s *S3Store) storeKey(objectKey string) string {
	if s.prefix == "" {
		return objectKey
	}
	return strings.TrimPrefix(objectKey, s.prefix+"/")
}
