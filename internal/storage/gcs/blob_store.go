// Package gcs archives audit artifacts in Google Cloud Storage.
package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
)

// Config captures the bucket and optional object prefix.
type Config struct {
	Bucket string
	Prefix string
}

// BlobStore writes artifacts to a configured GCS bucket.
type BlobStore struct {
	bucket string
	prefix string
	open   func(ctx context.Context, object, contentType string) io.WriteCloser
}

// New creates a GCS-backed blob store.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	handle := client.Bucket(cfg.Bucket)
	return newBlobStore(cfg, func(ctx context.Context, object, contentType string) io.WriteCloser {
		w := handle.Object(object).NewWriter(ctx)
		w.ContentType = contentType
		return w
	})
}

func newBlobStore(
	cfg Config,
	open func(ctx context.Context, object, contentType string) io.WriteCloser,
) (*BlobStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &BlobStore{bucket: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/"), open: open}, nil
}

// PutObject uploads data and returns a gs:// URI.
func (s *BlobStore) PutObject(ctx context.Context, name string, contentType string, data []byte) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("path is required")
	}
	object := strings.TrimPrefix(name, "/")
	if s.prefix != "" {
		object = path.Join(s.prefix, object)
	}
	w := s.open(ctx, object, contentType)
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		if closeErr := w.Close(); closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, object), nil
}
