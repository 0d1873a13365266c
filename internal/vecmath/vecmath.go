// Package vecmath provides cosine similarity over float32 embeddings.
package vecmath

import (
	"fmt"
	"slices"

	"github.com/viant/vec/search"

	"github.com/custodia-labs/groundwork/internal/core/domain"
)

// Magnitude returns the Euclidean norm of v.
func Magnitude(v []float32) float32 {
	if len(v) == 0 {
		return 0
	}
	return search.Float32s(v).Magnitude()
}

// Similarity returns 1 - cosine distance between a and b.
// Vectors of different length return domain.ErrDimensionMismatch.
// A zero vector has similarity 0 with everything.
func Similarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", domain.ErrDimensionMismatch, len(a), len(b))
	}
	if Magnitude(a) == 0 || Magnitude(b) == 0 {
		return 0, nil
	}
	distance := search.Float32s(a).CosineDistance(b)
	return clamp(1 - float64(distance)), nil
}

// clamp keeps rounding error inside the cosine range.
func clamp(s float64) float64 {
	switch {
	case s > 1:
		return 1
	case s < -1:
		return -1
	default:
		return s
	}
}

// Scored is a candidate position and its similarity to a query.
type Scored struct {
	Index      int
	Similarity float64
}

// TopK scores every candidate against query and returns at most k of those
// with similarity >= floor, ordered by descending similarity. Ties keep
// candidate order. A candidate of the wrong length fails the whole scan.
func TopK(query []float32, candidates [][]float32, k int, floor float64) ([]Scored, error) {
	var scored []Scored
	for i, c := range candidates {
		sim, err := Similarity(query, c)
		if err != nil {
			return nil, fmt.Errorf("candidate %d: %w", i, err)
		}
		if sim >= floor {
			scored = append(scored, Scored{Index: i, Similarity: sim})
		}
	}
	slices.SortStableFunc(scored, func(a, b Scored) int {
		switch {
		case a.Similarity > b.Similarity:
			return -1
		case a.Similarity < b.Similarity:
			return 1
		default:
			return 0
		}
	})
	if len(scored) > k {
		scored = scored[:max(k, 0)]
	}
	return scored, nil
}
