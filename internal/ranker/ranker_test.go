package ranker

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
)

const tolerance = 1e-9

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"scaled", []float32{1, 2, 3}, []float32{2, 4, 6}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, -1}, []float32{-1, 1}, -1},
		{"zero vector", []float32{0, 0, 0}, []float32{1, 2, 3}, 0},
		{"both zero", []float32{0, 0}, []float32{0, 0}, 0},
		{"empty", []float32{}, []float32{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Similarity(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, tolerance)
		})
	}
}

func TestSimilarity_DimensionMismatch(t *testing.T) {
	_, err := Similarity([]float32{1, 2}, []float32{1, 2, 3})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestSimilarity_Bounds(t *testing.T) {
	vectors := [][]float32{
		{0.1, 0.1, 0.1},
		{-3, 7, 0.5},
		{1e-6, 2e6, -1},
		{0.3, -0.3, 0.9},
	}

	for _, a := range vectors {
		self, err := Similarity(a, a)
		require.NoError(t, err)
		assert.InDelta(t, 1, self, 1e-6)

		for _, b := range vectors {
			sim, err := Similarity(a, b)
			require.NoError(t, err)
			assert.False(t, math.IsNaN(sim))
			assert.GreaterOrEqual(t, sim, -1.0)
			assert.LessOrEqual(t, sim, 1.0)
		}
	}
}

func TestRank(t *testing.T) {
	query := []float32{1, 0}
	candidates := []Candidate{
		{Ref: 0, Vector: []float32{0, 1}},     // 0
		{Ref: 1, Vector: []float32{1, 0}},     // 1
		{Ref: 2, Vector: []float32{1, 1}},     // ~0.707
		{Ref: 3, Vector: []float32{2, 0}},     // 1, ties with ref 1
		{Ref: 4, Vector: []float32{1, 0.1}},   // ~0.995
		{Ref: 5, Vector: []float32{-1, 0.01}}, // ~-1
	}

	t.Run("threshold and order", func(t *testing.T) {
		got, err := Rank(query, candidates, 10, 0.5)
		require.NoError(t, err)

		refs := make([]int, len(got))
		for i, s := range got {
			refs[i] = s.Ref
		}
		assert.Equal(t, []int{1, 3, 4, 2}, refs)
	})

	t.Run("topK", func(t *testing.T) {
		got, err := Rank(query, candidates, 2, 0.5)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, 1, got[0].Ref)
		assert.Equal(t, 3, got[1].Ref)
	})

	t.Run("no limit", func(t *testing.T) {
		got, err := Rank(query, candidates, 0, -1)
		require.NoError(t, err)
		assert.Len(t, got, len(candidates))
	})

	t.Run("nothing above threshold", func(t *testing.T) {
		got, err := Rank(query, candidates, 5, 1.01)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("deterministic", func(t *testing.T) {
		first, err := Rank(query, candidates, 4, 0)
		require.NoError(t, err)
		second, err := Rank(query, candidates, 4, 0)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestRank_DimensionMismatch(t *testing.T) {
	_, err := Rank([]float32{1, 0}, []Candidate{{Ref: 7, Vector: []float32{1}}}, 5, 0)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.Contains(t, err.Error(), "candidate 7")
}

func TestSortScored_StableTies(t *testing.T) {
	scored := []Scored{
		{Ref: 0, Similarity: 0.5},
		{Ref: 1, Similarity: 0.9},
		{Ref: 2, Similarity: 0.5},
		{Ref: 3, Similarity: 0.9},
	}

	SortScored(scored)

	assert.Equal(t, []Scored{
		{Ref: 1, Similarity: 0.9},
		{Ref: 3, Similarity: 0.9},
		{Ref: 0, Similarity: 0.5},
		{Ref: 2, Similarity: 0.5},
	}, scored)
}
