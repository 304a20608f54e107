// Package store provides durable CRUD over committed voiceprints.
//
// A Voiceprint is the ground truth for identification: one record per
// username, replaced whole on re-enrollment and never mutated field by
// field, so concurrent readers always observe a complete record.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/speakerid/embedding"
)

// ErrNotFound is returned when no voiceprint exists for a username.
var ErrNotFound = errors.New("voiceprint not found")

// Voiceprint is a committed, queryable enrollment record.
type Voiceprint struct {
	Username   string           `json:"username" msgpack:"username"`
	Embedding  embedding.Vector `json:"embedding" msgpack:"embedding"`
	EnrolledAt time.Time        `json:"enrolled_at" msgpack:"enrolled_at"`
	ClipCount  int              `json:"clip_count" msgpack:"clip_count"`
}

// UserInfo describes an enrolled user in listings.
type UserInfo struct {
	Username   string
	EnrolledAt time.Time
	ClipCount  int
}

// Store is the voiceprint persistence interface.
//
// Implementations must be safe for concurrent use, and Put/Delete must
// be atomic from a reader's perspective.
type Store interface {
	// Put inserts or replaces the voiceprint for vp.Username.
	Put(ctx context.Context, vp Voiceprint) error

	// Get returns the voiceprint for a username, or ErrNotFound.
	Get(ctx context.Context, username string) (Voiceprint, error)

	// List returns metadata for every enrolled user, in unspecified order.
	List(ctx context.Context) ([]UserInfo, error)

	// All returns a consistent snapshot of every voiceprint, in
	// unspecified order. Returned records are independent copies.
	All(ctx context.Context) ([]Voiceprint, error)

	// Delete removes the voiceprint for a username, or ErrNotFound.
	Delete(ctx context.Context, username string) error

	// Len returns the number of enrolled users.
	Len(ctx context.Context) (int, error)
}
