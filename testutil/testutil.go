// Package testutil provides helpers for generating reproducible
// embeddings in tests.
//
// This package is intended for use in tests only.
package testutil

import (
	"math/rand"
	"sync"

	"github.com/hupe1980/speakerid/embedding"
)

// RNG is a seeded random embedding generator. It is thread-safe.
type RNG struct {
	mu   sync.Mutex
	rand *rand.Rand
}

// NewRNG creates a new RNG with the given seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)), //nolint:gosec // deterministic test data
	}
}

// Vector returns a vector with components drawn from a standard normal
// distribution.
func (r *RNG) Vector(dim int) embedding.Vector {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := make(embedding.Vector, dim)
	for i := range v {
		v[i] = float32(r.rand.NormFloat64())
	}
	return v
}

// UnitVector returns a random vector normalized to unit L2 norm.
// Gaussian components make the direction uniform on the hypersphere.
func (r *RNG) UnitVector(dim int) embedding.Vector {
	v := r.Vector(dim)
	mag := embedding.Magnitude(v)
	if mag == 0 {
		v[0] = 1
		return v
	}
	for i := range v {
		v[i] /= mag
	}
	return v
}

// Perturbed returns a unit vector close to base: base plus epsilon-scaled
// gaussian noise, renormalized. Small epsilon keeps cosine similarity to
// base close to 1, which makes convincing "same speaker" probes.
func (r *RNG) Perturbed(base embedding.Vector, epsilon float32) embedding.Vector {
	noise := r.Vector(base.Dimension())

	v := make(embedding.Vector, base.Dimension())
	for i := range v {
		v[i] = base[i] + epsilon*noise[i]
	}
	mag := embedding.Magnitude(v)
	if mag == 0 {
		return base.Clone()
	}
	for i := range v {
		v[i] /= mag
	}
	return v
}
