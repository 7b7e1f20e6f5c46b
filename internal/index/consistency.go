package index

import (
	"fmt"

	rserrors "github.com/ramsok/ramsok/internal/errors"
	"github.com/ramsok/ramsok/internal/store"
)

// validateConsistency cross-checks the loaded state: every manifest record's
// chunk range must be exactly covered by loaded chunks, every chunk must
// belong to a record, and every chunk must carry an embedding of the expected
// dimension. Any mismatch means the persisted state cannot be trusted and a
// full rebuild is required.
func validateConsistency(records []store.DocumentRecord, chunks []*store.Chunk,
	embeddingIDs []int64, vectors [][]float32, dimensions int) error {

	byID := make(map[int64]*store.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	claimed := make(map[int64]string, len(chunks))
	for _, r := range records {
		if r.ChunkEnd < r.ChunkStart {
			return rserrors.CorruptStateError(
				fmt.Sprintf("document %s has inverted chunk range [%d, %d)",
					r.DocumentID, r.ChunkStart, r.ChunkEnd), nil)
		}
		for id := r.ChunkStart; id < r.ChunkEnd; id++ {
			c, ok := byID[id]
			if !ok {
				return rserrors.CorruptStateError(
					fmt.Sprintf("document %s references missing chunk %d", r.DocumentID, id), nil)
			}
			if c.SourceDocument != r.DocumentID {
				return rserrors.CorruptStateError(
					fmt.Sprintf("chunk %d belongs to %s but is claimed by %s",
						id, c.SourceDocument, r.DocumentID), nil)
			}
			claimed[id] = r.DocumentID
		}
	}

	for _, c := range chunks {
		if _, ok := claimed[c.ID]; !ok {
			return rserrors.CorruptStateError(
				fmt.Sprintf("chunk %d (%s) is not referenced by any document", c.ID, c.SourceDocument), nil)
		}
	}

	if len(embeddingIDs) != len(chunks) {
		return rserrors.CorruptStateError(
			fmt.Sprintf("%d chunks but %d embeddings", len(chunks), len(embeddingIDs)), nil)
	}
	for i, id := range embeddingIDs {
		if _, ok := byID[id]; !ok {
			return rserrors.CorruptStateError(
				fmt.Sprintf("embedding for unknown chunk %d", id), nil)
		}
		if dimensions > 0 && len(vectors[i]) != dimensions {
			return rserrors.CorruptStateError(
				fmt.Sprintf("embedding for chunk %d has %d dimensions, expected %d",
					id, len(vectors[i]), dimensions), nil)
		}
	}

	return nil
}
