// Package blobstore abstracts where voiceprint snapshots live.
//
// A snapshot is a single small blob written whole and read whole, so the
// interface is deliberately byte-slice based instead of streaming. Put
// must be atomic from a reader's perspective: a concurrent Get observes
// either the old bytes or the new bytes, never a partial write.
package blobstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a blob does not exist.
var ErrNotFound = errors.New("blob not found")

// BlobStore stores named immutable blobs.
//
// Implementations must be safe for concurrent use.
type BlobStore interface {
	// Put writes a blob atomically, replacing any existing blob with the
	// same name.
	Put(ctx context.Context, name string, data []byte) error

	// Get reads a blob in full. It fails with ErrNotFound if the blob
	// does not exist.
	Get(ctx context.Context, name string) ([]byte, error)

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the names of all blobs with the given prefix, in
	// unspecified order.
	List(ctx context.Context, prefix string) ([]string, error)
}
