// Package storage provides the object store behind document uploads.
//
// Production talks to an S3-compatible bucket (Cloudflare R2); tests use the
// in-memory implementation. Uploaded files are stored under generated keys
// and fetched back during ingestion.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotFound indicates the requested key does not exist.
var ErrNotFound = errors.New("object not found")

// Store is the object storage access the ingestion pipeline needs.
type Store interface {
	// Put writes data under key.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Get returns the bytes stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the object under key. Deleting a missing key is not
	// an error.
	Delete(ctx context.Context, key string) error
}

// UploadKey generates a unique storage key for an uploaded file, keeping the
// original filename visible for ingestion metadata.
func UploadKey(filename string) string {
	return fmt.Sprintf("uploads/%s_%s", uuid.New(), filename)
}
