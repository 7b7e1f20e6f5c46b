package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// axisVector returns a unit vector along the given axis.
func axisVector(dims, axis int) []float32 {
	v := make([]float32, dims)
	v[axis] = 1
	return v
}

func TestVectorIndex_AddAndSearch(t *testing.T) {
	// Given: three orthogonal vectors
	idx := NewVectorIndex(DefaultVectorConfig(8))
	err := idx.Add(
		[]int64{1, 2, 3},
		[][]float32{axisVector(8, 0), axisVector(8, 1), axisVector(8, 2)},
	)
	require.NoError(t, err)

	// When: searching near axis 1
	results, err := idx.Search(axisVector(8, 1), 2)
	require.NoError(t, err)

	// Then: chunk 2 is the best match with similarity 1
	require.NotEmpty(t, results)
	assert.Equal(t, int64(2), results[0].ChunkID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
}

func TestVectorIndex_DimensionMismatch(t *testing.T) {
	idx := NewVectorIndex(DefaultVectorConfig(8))

	err := idx.Add([]int64{1}, [][]float32{make([]float32, 4)})
	require.Error(t, err)
	assert.ErrorAs(t, err, &ErrDimensionMismatch{})

	_, err = idx.Search(make([]float32, 4), 1)
	require.Error(t, err)
}

func TestVectorIndex_RemoveIsLazy(t *testing.T) {
	// Given: two vectors
	idx := NewVectorIndex(DefaultVectorConfig(8))
	require.NoError(t, idx.Add(
		[]int64{1, 2},
		[][]float32{axisVector(8, 0), axisVector(8, 1)},
	))

	// When: removing one
	idx.Remove([]int64{1})

	// Then: it never appears in results, and counts reflect live rows only
	assert.False(t, idx.Contains(1))
	assert.Equal(t, 1, idx.Count())

	results, err := idx.Search(axisVector(8, 0), 5)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, int64(1), r.ChunkID)
	}
}

func TestVectorIndex_ReAddReplacesVector(t *testing.T) {
	idx := NewVectorIndex(DefaultVectorConfig(8))
	require.NoError(t, idx.Add([]int64{1}, [][]float32{axisVector(8, 0)}))

	// When: re-adding id 1 with a different vector
	require.NoError(t, idx.Add([]int64{1}, [][]float32{axisVector(8, 3)}))

	// Then: only the new vector answers
	results, err := idx.Search(axisVector(8, 3), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].ChunkID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
	assert.Equal(t, 1, idx.Count())
}

func TestVectorIndex_SaveLoadRoundTrip(t *testing.T) {
	// Given: a populated index saved to disk
	path := filepath.Join(t.TempDir(), "vectors.hnsw")
	idx := NewVectorIndex(DefaultVectorConfig(8))
	require.NoError(t, idx.Add(
		[]int64{10, 20, 30},
		[][]float32{axisVector(8, 0), axisVector(8, 1), axisVector(8, 2)},
	))
	require.NoError(t, idx.Save(path))

	// When: loading into a fresh index
	loaded := NewVectorIndex(DefaultVectorConfig(8))
	require.NoError(t, loaded.Load(path))

	// Then: contents and search behavior survive
	assert.Equal(t, 3, loaded.Count())
	assert.Equal(t, []int64{10, 20, 30}, loaded.IDs())

	results, err := loaded.Search(axisVector(8, 1), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(20), results[0].ChunkID)
}

func TestVectorIndex_LoadMissingFileFails(t *testing.T) {
	idx := NewVectorIndex(DefaultVectorConfig(8))
	err := idx.Load(filepath.Join(t.TempDir(), "absent.hnsw"))
	require.Error(t, err)
}

func TestVectorIndex_EmptySearch(t *testing.T) {
	idx := NewVectorIndex(DefaultVectorConfig(8))
	results, err := idx.Search(axisVector(8, 0), 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}
