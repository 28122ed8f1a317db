// Package ranker scores vectors by cosine similarity and orders candidates against a threshold.
package ranker

import (
	"fmt"
	"math"
	"sort"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
)

// Candidate is a vector to be scored against a query.
// Ref lets callers map results back to their own records.
type Candidate struct {
	Ref    int
	Vector []float32
}

// Scored is a candidate with its similarity to the query.
type Scored struct {
	Ref        int
	Similarity float64
}

// Similarity returns the cosine similarity of a and b.
// Vectors of different length fail with domain.ErrDimensionMismatch.
// If either vector has zero norm the similarity is 0.
func Similarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", domain.ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))

	// Rounding can push identical vectors slightly past 1
	return math.Max(-1, math.Min(1, sim)), nil
}

// Rank scores every candidate, drops those below threshold, and returns at most topK
// ordered by descending similarity. Ties keep input order. topK <= 0 means no limit.
func Rank(query []float32, candidates []Candidate, topK int, threshold float64) ([]Scored, error) {
	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		sim, err := Similarity(query, c.Vector)
		if err != nil {
			return nil, fmt.Errorf("candidate %d: %w", c.Ref, err)
		}
		if sim < threshold {
			continue
		}
		scored = append(scored, Scored{Ref: c.Ref, Similarity: sim})
	}

	SortScored(scored)

	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// SortScored orders scores descending, keeping input order for ties.
func SortScored(scored []Scored) {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
}
