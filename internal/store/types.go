// Package store provides the persistence and index layer: the SQLite chunk,
// embedding and manifest store, the in-memory BM25 lexical index, and the
// HNSW vector index.
package store

import (
	"fmt"
	"time"
)

// State keys for the key-value state table.
const (
	// StateKeyEmbedModel records the embedding model the index was built with.
	// A model change invalidates all stored embeddings.
	StateKeyEmbedModel = "embed_model"

	// StateKeyEmbedDimensions records the embedding dimension of the index.
	StateKeyEmbedDimensions = "embed_dimensions"

	// StateKeyNextChunkID is the monotonically increasing chunk id allocator.
	// Chunk ids are never reused; a re-chunked document gets fresh ids.
	StateKeyNextChunkID = "next_chunk_id"
)

// CurrentSchemaVersion is the current database schema version.
const CurrentSchemaVersion = 1

// Chunk is the unit of retrieval: a normalized text window from one document.
// Chunks are immutable once created; a document edit produces new chunks with
// new ids.
type Chunk struct {
	ID             int64     // unique within the index, never reused
	Text           string    // normalized, non-empty
	SourceDocument string    // owning document id (filename)
	Position       int       // ordinal within the source document
	CreatedAt      time.Time
}

// DocumentRecord tracks indexing provenance per source document.
// ChunkStart/ChunkEnd is the contiguous half-open id range [start, end)
// currently belonging to the document.
type DocumentRecord struct {
	DocumentID  string
	ContentHash string
	ChunkStart  int64
	ChunkEnd    int64
	IndexedAt   time.Time
}

// ChunkCount returns the number of chunks in the record's range.
func (r DocumentRecord) ChunkCount() int {
	return int(r.ChunkEnd - r.ChunkStart)
}

// ChunkIDs enumerates the chunk ids in the record's range.
func (r DocumentRecord) ChunkIDs() []int64 {
	ids := make([]int64, 0, r.ChunkCount())
	for id := r.ChunkStart; id < r.ChunkEnd; id++ {
		ids = append(ids, id)
	}
	return ids
}

// LexicalResult is a single BM25 search result.
type LexicalResult struct {
	ChunkID int64
	Score   float64
}

// VectorResult is a single vector search result.
type VectorResult struct {
	ChunkID int64
	Score   float64 // cosine similarity, higher is more similar
}

// LexicalStats provides statistics about the BM25 index.
type LexicalStats struct {
	ChunkCount     int
	TermCount      int
	AvgChunkLength float64
}

// ErrDimensionMismatch indicates vector dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
