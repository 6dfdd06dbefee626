// Package vector provides cosine similarity and vector encoding helpers.
package vector

import (
	"fmt"
	"math"

	"github.com/hyperjump/syntra/internal/models"
	"github.com/viterin/vek/vek32"
)

// Cosine returns the cosine of the angle between a and b: dot(a, b) / (|a| * |b|).
// It fails with models.ErrDimensionMismatch if the lengths differ. If either vector has
// zero norm (including empty vectors) the similarity is 0.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: got %d and %d components", models.ErrDimensionMismatch, len(a), len(b))
	}
	if len(a) == 0 {
		return 0, nil
	}
	normA := Norm(a)
	normB := Norm(b)
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	sim := float64(vek32.Dot(a, b)) / (normA * normB)
	// Rounding can push identical directions just past 1.
	return math.Max(-1, math.Min(1, sim)), nil
}

// Norm returns the Euclidean (L2) norm of x.
func Norm(x []float32) float64 {
	if len(x) == 0 {
		return 0
	}
	return math.Sqrt(float64(vek32.Dot(x, x)))
}

// Dot returns the inner product of a and b, or models.ErrDimensionMismatch.
func Dot(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: got %d and %d components", models.ErrDimensionMismatch, len(a), len(b))
	}
	if len(a) == 0 {
		return 0, nil
	}
	return float64(vek32.Dot(a, b)), nil
}
