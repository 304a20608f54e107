// Package embedding provides the vector type and the small amount of
// vector math the recognition engine needs: componentwise averaging of
// enrollment clips and cosine similarity scoring.
//
// Every vector in one system shares the same dimension; mismatches are
// surfaced as typed errors rather than silently truncated.
package embedding

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// ErrZeroVector is returned when an operation requires a non-zero vector
// (cosine similarity is undefined for zero-norm inputs).
var ErrZeroVector = errors.New("zero-norm vector")

// ErrEmptyMean is returned when a mean is requested over no vectors.
var ErrEmptyMean = errors.New("mean of zero vectors")

// ErrDimensionMismatch indicates two vectors (or a vector and the
// configured dimension) disagree on length.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Vector is a fixed-length voice embedding. Vectors are immutable by
// convention: once produced by an extractor or committed to a store they
// must not be modified in place.
type Vector []float32

// Dimension returns the number of components.
func (v Vector) Dimension() int { return len(v) }

// Clone returns an independent copy of v.
func (v Vector) Clone() Vector {
	return Vector(slices.Clone([]float32(v)))
}

// Dot returns the dot product of a and b.
// Assumes both vectors have the same length (caller's responsibility).
func Dot(a, b Vector) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Magnitude returns the L2 norm of v.
func Magnitude(v Vector) float32 {
	return float32(math.Sqrt(float64(Dot(v, v))))
}

// CosineSimilarity returns the cosine similarity of a and b in [-1, 1].
//
// It fails with *ErrDimensionMismatch when the lengths differ and with
// ErrZeroVector when either vector has zero norm; a zero-norm embedding
// is a defect upstream, not a valid "no similarity" signal.
func CosineSimilarity(a, b Vector) (float32, error) {
	if len(a) != len(b) {
		return 0, &ErrDimensionMismatch{Expected: len(a), Actual: len(b)}
	}

	magA := Magnitude(a)
	magB := Magnitude(b)
	if magA == 0 || magB == 0 {
		return 0, ErrZeroVector
	}

	sim := Dot(a, b) / (magA * magB)

	// Floating point can push the ratio marginally outside [-1, 1].
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return sim, nil
}

// Mean returns the componentwise arithmetic mean of vs.
//
// All vectors must share the same dimension. Accumulation happens in
// float64 so the result does not depend on summation order.
func Mean(vs []Vector) (Vector, error) {
	if len(vs) == 0 {
		return nil, ErrEmptyMean
	}

	dim := vs[0].Dimension()
	for _, v := range vs[1:] {
		if v.Dimension() != dim {
			return nil, &ErrDimensionMismatch{Expected: dim, Actual: v.Dimension()}
		}
	}

	acc := make([]float64, dim)
	for _, v := range vs {
		for i, x := range v {
			acc[i] += float64(x)
		}
	}

	out := make(Vector, dim)
	n := float64(len(vs))
	for i, sum := range acc {
		out[i] = float32(sum / n)
	}
	return out, nil
}
