package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramsok/ramsok/internal/store"
)

func lexResults(ids ...int64) []*store.LexicalResult {
	out := make([]*store.LexicalResult, len(ids))
	for i, id := range ids {
		out[i] = &store.LexicalResult{ChunkID: id, Score: float64(100 - i)}
	}
	return out
}

func vecResults(ids ...int64) []*store.VectorResult {
	out := make([]*store.VectorResult, len(ids))
	for i, id := range ids {
		out[i] = &store.VectorResult{ChunkID: id, Score: 1.0 - float64(i)*0.1}
	}
	return out
}

func TestRRFFusion_ExactScores(t *testing.T) {
	// Given: lexical ranking [C3, C1, C2] and semantic ranking [C1, C3]
	f := NewRRFFusion(60)

	results := f.Fuse(lexResults(3, 1, 2), vecResults(1, 3))
	require.Len(t, results, 3)

	// Then: scores are exact 1/(60+rank) sums
	scores := make(map[int64]float64)
	for _, r := range results {
		scores[r.ChunkID] = r.Score
	}
	assert.InDelta(t, 1.0/62+1.0/61, scores[1], 1e-12) // lex rank 2, sem rank 1
	assert.InDelta(t, 1.0/61+1.0/62, scores[3], 1e-12) // lex rank 1, sem rank 2
	assert.InDelta(t, 1.0/63, scores[2], 1e-12)        // lex rank 3 only

	// And: equal scores for C1 and C3 break ties by lower chunk id
	assert.Equal(t, int64(1), results[0].ChunkID)
	assert.Equal(t, int64(3), results[1].ChunkID)
	assert.Equal(t, int64(2), results[2].ChunkID)
}

func TestRRFFusion_AbsentRankingContributesNothing(t *testing.T) {
	// Given: a chunk only in the semantic ranking
	f := NewRRFFusion(60)

	results := f.Fuse(lexResults(1), vecResults(2))
	require.Len(t, results, 2)

	for _, r := range results {
		switch r.ChunkID {
		case 1:
			assert.Equal(t, 1, r.LexicalRank)
			assert.Zero(t, r.SemanticRank)
		case 2:
			assert.Zero(t, r.LexicalRank)
			assert.Equal(t, 1, r.SemanticRank)
		}
		assert.InDelta(t, 1.0/61, r.Score, 1e-12)
	}
}

func TestRRFFusion_RawScoresCarriedThrough(t *testing.T) {
	f := NewRRFFusion(60)

	lexical := []*store.LexicalResult{{ChunkID: 1, Score: 7.25}}
	semantic := []*store.VectorResult{{ChunkID: 1, Score: 0.93}}

	results := f.Fuse(lexical, semantic)
	require.Len(t, results, 1)

	// Then: display scores preserved, fused score built from ranks only
	assert.Equal(t, 7.25, results[0].LexicalScore)
	assert.Equal(t, 0.93, results[0].SemanticScore)
	assert.InDelta(t, 2.0/61, results[0].Score, 1e-12)
}

func TestRRFFusion_EmptyInputs(t *testing.T) {
	f := NewRRFFusion(60)

	assert.Empty(t, f.Fuse(nil, nil))

	results := f.Fuse(lexResults(1, 2), nil)
	require.Len(t, results, 2)
	assert.Equal(t, int64(1), results[0].ChunkID)
}

func TestRRFFusion_BothRankingsBeatOne(t *testing.T) {
	// Given: chunk 5 ranked first in both, chunk 9 first in lexical only...
	f := NewRRFFusion(60)
	lexical := lexResults(9, 5)
	semantic := vecResults(5)

	results := f.Fuse(lexical, semantic)

	// Then: presence in both rankings outweighs one first place
	// C5: 1/62 + 1/61 > C9: 1/61
	require.Len(t, results, 2)
	assert.Equal(t, int64(5), results[0].ChunkID)
}

func TestNewRRFFusion_DefaultK(t *testing.T) {
	assert.Equal(t, DefaultRRFK, NewRRFFusion(0).K)
	assert.Equal(t, 10, NewRRFFusion(10).K)
}
