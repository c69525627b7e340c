package imagestore

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

const uploadTimeout = 30 * time.Second

// ImageStore persists product images and hands back public URLs.
type ImageStore interface {
	Upload(ctx context.Context, filename, contentType string, r io.Reader) (string, error)
	Delete(ctx context.Context, imageURL string) error
	Close() error
}

// GCSStore stores images in a Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSStore opens a GCS client for the given bucket. Objects are
// written under prefix/ when a prefix is set.
func NewGCSStore(ctx context.Context, bucket, prefix string) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("imagestore: bucket name is required")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("imagestore: create gcs client: %w", err)
	}

	return &GCSStore{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

// Upload writes the image under a fresh UUID-based object name and
// returns its public URL.
func (s *GCSStore) Upload(ctx context.Context, filename, contentType string, r io.Reader) (string, error) {
	object := s.objectName(filename)

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=86400"

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("imagestore: write object %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("imagestore: close object %s: %w", object, err)
	}

	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, object), nil
}

// Delete removes the object behind a previously returned URL. URLs that
// do not point at this store's bucket are rejected.
func (s *GCSStore) Delete(ctx context.Context, imageURL string) error {
	object, err := s.objectFromURL(imageURL)
	if err != nil {
		return err
	}

	if err := s.client.Bucket(s.bucket).Object(object).Delete(ctx); err != nil {
		if err == storage.ErrObjectNotExist {
			return nil
		}
		return fmt.Errorf("imagestore: delete object %s: %w", object, err)
	}
	return nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) objectName(filename string) string {
	ext := path.Ext(filename)
	name := uuid.New().String() + ext
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

func (s *GCSStore) objectFromURL(imageURL string) (string, error) {
	base := fmt.Sprintf("https://storage.googleapis.com/%s/", s.bucket)
	if !strings.HasPrefix(imageURL, base) {
		return "", fmt.Errorf("imagestore: url %q does not belong to bucket %s", imageURL, s.bucket)
	}
	object := strings.TrimPrefix(imageURL, base)
	if object == "" {
		return "", fmt.Errorf("imagestore: url %q has no object name", imageURL)
	}
	return object, nil
}
