// Package artifacts reads and writes pipeline artifacts (the targets workbook,
// the persisted dataset) on the local filesystem or in Google Cloud Storage.
package artifacts

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned when the requested artifact does not exist.
var ErrNotFound = errors.New("artifact not found")

// Store provides read and write access to artifacts addressed by URI.
type Store interface {
	// Read returns the whole artifact. Missing artifacts yield an error wrapping ErrNotFound.
	Read(ctx context.Context, uri string) ([]byte, error)

	// Write replaces the artifact with data.
	Write(ctx context.Context, uri string, data []byte, contentType string) error
}

// Router dispatches gs:// URIs to a GCS store and everything else to the local filesystem.
type Router struct {
	Local Store
	GCS   Store
}

// NewRouter creates a Router backed by the local filesystem and GCS.
func NewRouter() *Router {
	return &Router{
		Local: NewLocalStore(),
		GCS:   NewGCSStore(),
	}
}

// Read implements Store.
func (r *Router) Read(ctx context.Context, uri string) ([]byte, error) {
	return r.pick(uri).Read(ctx, uri)
}

// Write implements Store.
func (r *Router) Write(ctx context.Context, uri string, data []byte, contentType string) error {
	return r.pick(uri).Write(ctx, uri, data, contentType)
}

func (r *Router) pick(uri string) Store {
	if IsGCSURI(uri) {
		return r.GCS
	}
	return r.Local
}

// IsGCSURI reports whether uri uses the gs:// scheme.
func IsGCSURI(uri string) bool {
	return strings.HasPrefix(uri, "gs://")
}

var _ Store = (*Router)(nil)
