// Package objects wraps the S3 bucket that receives uploaded invoice files.
package objects

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/imrishuroy/go-invoice-importflow/internal/aws"
)

// MaxObjectSize caps how much of an uploaded file is read.
const MaxObjectSize = 1 << 20

var (
	// ErrNotFound is returned when the object is gone.
	ErrNotFound = errors.New("object not found")
	// ErrTooLarge is returned when the object exceeds MaxObjectSize.
	ErrTooLarge = errors.New("object too large")
)

// Store reads, deletes and issues upload URLs for objects in one bucket.
type Store struct {
	client  aws.S3API
	presign aws.PresignAPI
	bucket  string
}

// NewStore creates a Store for bucket.
func NewStore(client aws.S3API, presign aws.PresignAPI, bucket string) *Store {
	return &Store{client: client, presign: presign, bucket: bucket}
}

// Bucket returns the default bucket.
func (s *Store) Bucket() string { return s.bucket }

// PresignPut returns a URL that accepts a single PUT of key until expires elapses.
func (s *Store) PresignPut(ctx context.Context, key string, expires time.Duration) (string, error) {
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("presign put: %w", err)
	}
	return req.URL, nil
}

// Read returns the object's content. An empty bucket means the default one.
func (s *Store) Read(ctx context.Context, bucket, key string) ([]byte, error) {
	bucket = s.bucketOr(bucket)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, bucket, key)
		}
		return nil, fmt.Errorf("get object: %w", err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(io.LimitReader(out.Body, MaxObjectSize+1))
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	if len(body) > MaxObjectSize {
		return nil, fmt.Errorf("%w: %s/%s", ErrTooLarge, bucket, key)
	}
	return body, nil
}

// Delete removes the object. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	bucket = s.bucketOr(bucket)
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &bucket, Key: &key}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// isNotFound also matches untyped API errors; S3-compatible endpoints do not always
// produce the modeled NoSuchKey shape.
func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

func (s *Store) bucketOr(bucket string) string {
	if bucket == "" {
		return s.bucket
	}
	return bucket
}
