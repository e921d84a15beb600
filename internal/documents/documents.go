// Package documents stores warranty and maintenance log attachments in an
// S3-compatible bucket. Records only hold the returned object key.
package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const keyPrefix = "documents/"

// MaxSize is the largest accepted upload.
const MaxSize = 20 << 20

var (
	// ErrInvalidKey is returned for references that were not issued by Put.
	ErrInvalidKey = errors.New("invalid document reference")
	// ErrTooLarge is returned when an upload exceeds MaxSize.
	ErrTooLarge = errors.New("document too large")
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type presigner interface {
	PresignGetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	// URLTTL is how long presigned download links stay valid.
	URLTTL time.Duration
}

// Configured reports whether enough settings exist to reach a bucket.
func (c Config) Configured() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

type Store struct {
	bucket  string
	ttl     time.Duration
	client  s3Client
	presign presigner
	newKey  func(name string) string
}

// New returns nil when the bucket is not configured; the facade then rejects
// uploads.
func New(cfg Config) *Store {
	if !cfg.Configured() {
		return nil
	}
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	client := s3.New(opts)
	return newStore(cfg, client, s3.NewPresignClient(client))
}

func newStore(cfg Config, client s3Client, p presigner) *Store {
	ttl := cfg.URLTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Store{
		bucket:  cfg.Bucket,
		ttl:     ttl,
		client:  client,
		presign: p,
		newKey:  objectKey,
	}
}

// objectKey keeps the original extension so downloads open in the right app.
func objectKey(name string) string {
	ext := strings.ToLower(path.Ext(path.Base(name)))
	if len(ext) > 10 {
		ext = ""
	}
	return keyPrefix + uuid.NewString() + ext
}

// Put uploads a document and returns its reference.
func (s *Store) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if len(data) > MaxSize {
		return "", fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := s.newKey(name)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		Metadata:      map[string]string{"filename": path.Base(name)},
	})
	if err != nil {
		return "", fmt.Errorf("upload document: %w", err)
	}
	return key, nil
}

// Delete removes a document. Deleting a missing object succeeds.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete document %s: %w", key, err)
	}
	return nil
}

// URL returns a presigned download link.
func (s *Store) URL(ctx context.Context, key string) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", fmt.Errorf("presign document %s: %w", key, err)
	}
	return req.URL, nil
}

func checkKey(key string) error {
	if !strings.HasPrefix(key, keyPrefix) || strings.Contains(key, "..") || len(key) == len(keyPrefix) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
