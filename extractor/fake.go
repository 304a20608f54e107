package extractor

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"

	"github.com/hupe1980/speakerid/embedding"
)

// Fake is a deterministic Extractor for tests and offline experiments.
//
// It derives a unit vector from a hash of the audio bytes: identical
// clips always map to identical embeddings, different clips map to
// effectively uncorrelated ones. It performs no audio analysis.
type Fake struct {
	dimension int

	// Fail, when set, makes every Extract call fail. Used to exercise
	// extraction error paths.
	Fail bool
}

var _ Extractor = (*Fake)(nil)

// NewFake creates a fake extractor with the given output dimension.
func NewFake(dimension int) *Fake {
	return &Fake{dimension: dimension}
}

// Dimension returns the configured dimension.
func (f *Fake) Dimension() int { return f.dimension }

// Extract derives a deterministic unit vector from the audio bytes.
func (f *Fake) Extract(_ context.Context, audio []byte) (embedding.Vector, error) {
	if f.Fail {
		return nil, fmt.Errorf("%w: fake extractor configured to fail", ErrExtractionFailed)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: empty audio", ErrExtractionFailed)
	}

	h := fnv.New64a()
	_, _ = h.Write(audio)
	rng := rand.New(rand.NewSource(int64(h.Sum64()))) //nolint:gosec // deterministic by design

	v := make(embedding.Vector, f.dimension)
	for i := range v {
		v[i] = float32(rng.NormFloat64())
	}

	mag := embedding.Magnitude(v)
	if mag == 0 {
		// Practically unreachable for dimension >= 1 with a gaussian draw.
		v[0] = 1
		return v, nil
	}
	for i := range v {
		v[i] /= mag
	}
	return v, nil
}
