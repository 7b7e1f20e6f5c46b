package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramsok/ramsok/internal/embed"
	rserrors "github.com/ramsok/ramsok/internal/errors"
	"github.com/ramsok/ramsok/internal/store"
)

// newTestEngine indexes the given chunks in both indexes using the static
// embedder.
func newTestEngine(t *testing.T, chunks []*store.Chunk) *Engine {
	t.Helper()

	embedder := embed.NewStaticEmbedder()
	lexical := store.NewBM25Index(store.DefaultBM25Config())
	lexical.Add(chunks)

	vectors := store.NewVectorIndex(store.DefaultVectorConfig(embedder.Dimensions()))
	for _, c := range chunks {
		vec, err := embedder.Embed(context.Background(), c.Text)
		require.NoError(t, err)
		require.NoError(t, vectors.Add([]int64{c.ID}, [][]float32{vec}))
	}

	return NewEngine(lexical, vectors, embedder, NewRRFFusion(DefaultRRFK))
}

func ramavtalChunks() []*store.Chunk {
	return []*store.Chunk{
		{ID: 1, Text: "Timpris för konsulttjänster är 850 kronor.", SourceDocument: "priser.txt"},
		{ID: 2, Text: "Leverans sker inom fem arbetsdagar.", SourceDocument: "leverans.txt"},
		{ID: 3, Text: "Avtalet kan förlängas med tolv månader.", SourceDocument: "avtal.txt"},
	}
}

func TestEngine_EmptyQueryIsError(t *testing.T) {
	e := newTestEngine(t, ramavtalChunks())

	for _, query := range []string{"", "   ", "\t\n"} {
		_, err := e.Search(context.Background(), query, StrategyHybrid, 5)
		require.Error(t, err, "query %q", query)
		assert.Equal(t, rserrors.ErrCodeQueryEmpty, rserrors.GetCode(err))
	}
}

func TestEngine_HybridFindsLexicalMatch(t *testing.T) {
	// Given: an indexed corpus
	e := newTestEngine(t, ramavtalChunks())

	// When: querying an exact keyword
	results, err := e.Search(context.Background(), "timpris", StrategyHybrid, 3)
	require.NoError(t, err)

	// Then: the chunk containing the keyword ranks first
	require.NotEmpty(t, results)
	assert.Equal(t, int64(1), results[0].ChunkID)
	assert.NotZero(t, results[0].LexicalRank)
}

func TestEngine_LexicalStrategyKeepsBM25Order(t *testing.T) {
	e := newTestEngine(t, ramavtalChunks())

	results, err := e.Search(context.Background(), "avtalet förlängas", StrategyLexical, 3)
	require.NoError(t, err)

	require.NotEmpty(t, results)
	assert.Equal(t, int64(3), results[0].ChunkID)
	assert.Zero(t, results[0].SemanticRank)
}

func TestEngine_SemanticStrategyReturnsTopK(t *testing.T) {
	e := newTestEngine(t, ramavtalChunks())

	results, err := e.Search(context.Background(), "konsultpriser per timme", StrategySemantic, 2)
	require.NoError(t, err)

	assert.LessOrEqual(t, len(results), 2)
	for _, r := range results {
		assert.NotZero(t, r.SemanticRank)
		assert.Zero(t, r.LexicalRank)
	}
}

func TestEngine_UnknownStrategy(t *testing.T) {
	e := newTestEngine(t, ramavtalChunks())

	_, err := e.Search(context.Background(), "timpris", "fuzzy", 3)
	require.Error(t, err)
	assert.Equal(t, rserrors.ErrCodeInvalidInput, rserrors.GetCode(err))
}

func TestEngine_TopKBoundsResults(t *testing.T) {
	e := newTestEngine(t, ramavtalChunks())

	results, err := e.Search(context.Background(), "avtalet leverans timpris", StrategyHybrid, 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	_, err = e.Search(context.Background(), "avtal", StrategyHybrid, 0)
	require.Error(t, err)
}

func TestEngine_EmptyIndexReturnsNoResults(t *testing.T) {
	e := newTestEngine(t, nil)

	results, err := e.Search(context.Background(), "timpris", StrategyHybrid, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}
