package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// GCSStore keeps artifacts in Google Cloud Storage.
// It assumes Application Default Credentials are configured.
type GCSStore struct{}

// NewGCSStore creates a new GCSStore.
func NewGCSStore() *GCSStore {
	return &GCSStore{}
}

// Read implements Store.
func (s *GCSStore) Read(ctx context.Context, uri string) ([]byte, error) {
	bucketName, objectPath, err := ParseGCSURI(uri)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("GCSStore.Read: creating storage client: %w", err)
	}
	defer client.Close()

	rc, err := client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return nil, fmt.Errorf("GCSStore.Read: %s: %w", uri, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GCSStore.Read: reading object %s/%s: %w", bucketName, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("GCSStore.Read: reading bytes: %w", err)
	}
	return data, nil
}

// Write implements Store.
func (s *GCSStore) Write(ctx context.Context, uri string, data []byte, contentType string) error {
	bucketName, objectPath, err := ParseGCSURI(uri)
	if err != nil {
		return err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("GCSStore.Write: creating storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectPath).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return fmt.Errorf("GCSStore.Write: copy to GCS writer: %w", err)
	}
	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("GCSStore.Write: finalize upload: %w", err)
	}
	return nil
}

// ParseGCSURI splits "gs://bucket/path/to/object" into bucket and object path.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !IsGCSURI(uri) {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// FilenameFromURI returns the last path element of a local path or GCS URI.
// e.g. "gs://bucket/folder/metas.xlsx" -> "metas.xlsx"
func FilenameFromURI(uri string) string {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(uri, "gs://"), "file://")
	return path.Base(trimmed)
}

var _ Store = (*GCSStore)(nil)
