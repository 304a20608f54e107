// Package extractor defines the boundary to the external voice encoder
// that turns raw audio bytes into a fixed-dimension embedding.
//
// The engine treats extraction as all-or-nothing: it either receives a
// complete vector of the extractor's dimension or a failure, never a
// partial embedding.
package extractor

import (
	"context"
	"errors"

	"github.com/hupe1980/speakerid/embedding"
)

// ErrExtractionFailed is returned when an embedding could not be
// produced from the supplied audio (corrupt, too short, or the encoder
// backend failed). Wrap it so callers can classify with errors.Is.
var ErrExtractionFailed = errors.New("embedding extraction failed")

// Extractor produces voice embeddings from raw audio bytes.
//
// Implementations must be safe for concurrent use and must honor
// context cancellation on slow backends.
type Extractor interface {
	// Extract computes the embedding for one audio clip.
	Extract(ctx context.Context, audio []byte) (embedding.Vector, error)

	// Dimension returns the fixed output dimensionality.
	Dimension() int
}
