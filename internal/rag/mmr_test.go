package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1}, []float32{1, 1}))
}

func TestMaxMarginalRelevance(t *testing.T) {
	query := []float32{1, 0}
	candidates := [][]float32{
		{1, 0},      // pertinent
		{0.99, 0.1}, // quasi-doublon du premier
		{0.6, 0.8},  // moins pertinent mais différent
	}

	t.Run("Pure relevance", func(t *testing.T) {
		picked := MaxMarginalRelevance(query, candidates, 2, 1.0)
		assert.Equal(t, []int{0, 1}, picked)
	})

	t.Run("Diversity penalizes near duplicates", func(t *testing.T) {
		picked := MaxMarginalRelevance(query, candidates, 2, 0.3)
		assert.Equal(t, []int{0, 2}, picked)
	})

	t.Run("K larger than pool", func(t *testing.T) {
		picked := MaxMarginalRelevance(query, candidates, 10, 0.5)
		assert.Len(t, picked, 3)
	})

	t.Run("Empty", func(t *testing.T) {
		assert.Nil(t, MaxMarginalRelevance(query, nil, 3, 0.5))
		assert.Nil(t, MaxMarginalRelevance(query, candidates, 0, 0.5))
	})
}

func TestHashEmbedder(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()

	a, err := e.EmbedQuery(ctx, "Photosynthesis uses light")
	require.NoError(t, err)
	b, err := e.EmbedQuery(ctx, "photosynthesis USES light!")
	require.NoError(t, err)
	c, err := e.EmbedQuery(ctx, "tectonic plates drift slowly")
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.InDelta(t, 1.0, CosineSimilarity(a, b), 1e-6, "deterministic and case-insensitive")
	assert.Less(t, CosineSimilarity(a, c), CosineSimilarity(a, b))
}
