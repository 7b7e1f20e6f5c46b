// Package search fuses lexical and semantic rankings with Reciprocal Rank
// Fusion and exposes the named search strategies.
package search

import (
	"sort"

	"github.com/ramsok/ramsok/internal/store"
)

// DefaultRRFK is the standard RRF smoothing constant.
const DefaultRRFK = 60

// FusedResult is a single fused search result. Ranks are 1-based; 0 means
// the chunk was absent from that ranking.
type FusedResult struct {
	ChunkID int64

	// Score is the RRF score: sum of 1/(K+rank) over the rankings that
	// contain the chunk.
	Score float64

	LexicalRank  int
	SemanticRank int

	LexicalScore  float64 // raw BM25 score, 0 if absent
	SemanticScore float64 // raw cosine similarity, 0 if absent
}

// RRFFusion combines rankings using Reciprocal Rank Fusion. Only rank
// positions contribute; the incommensurable raw scores (unbounded BM25 vs
// bounded cosine similarity) are carried through for display only.
type RRFFusion struct {
	// K dampens the contribution gap between adjacent ranks (default: 60).
	K int
}

// NewRRFFusion creates an RRF fusion with the given constant.
func NewRRFFusion(k int) *RRFFusion {
	if k <= 0 {
		k = DefaultRRFK
	}
	return &RRFFusion{K: k}
}

// Fuse merges a lexical and a semantic ranking. A chunk present in only one
// ranking simply receives no contribution from the other. Results are ordered
// by descending RRF score, ties broken by lower chunk id.
func (f *RRFFusion) Fuse(lexical []*store.LexicalResult, semantic []*store.VectorResult) []*FusedResult {
	fused := make(map[int64]*FusedResult)

	get := func(id int64) *FusedResult {
		r, ok := fused[id]
		if !ok {
			r = &FusedResult{ChunkID: id}
			fused[id] = r
		}
		return r
	}

	for i, lr := range lexical {
		rank := i + 1
		r := get(lr.ChunkID)
		r.LexicalRank = rank
		r.LexicalScore = lr.Score
		r.Score += 1.0 / float64(f.K+rank)
	}

	for i, vr := range semantic {
		rank := i + 1
		r := get(vr.ChunkID)
		r.SemanticRank = rank
		r.SemanticScore = vr.Score
		r.Score += 1.0 / float64(f.K+rank)
	}

	results := make([]*FusedResult, 0, len(fused))
	for _, r := range fused {
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})

	return results
}

// lexicalOnly converts a bare lexical ranking into fused results, preserving
// the BM25 ordering.
func lexicalOnly(lexical []*store.LexicalResult) []*FusedResult {
	results := make([]*FusedResult, 0, len(lexical))
	for i, lr := range lexical {
		results = append(results, &FusedResult{
			ChunkID:      lr.ChunkID,
			Score:        lr.Score,
			LexicalRank:  i + 1,
			LexicalScore: lr.Score,
		})
	}
	return results
}

// semanticOnly converts a bare vector ranking into fused results, preserving
// the similarity ordering.
func semanticOnly(semantic []*store.VectorResult) []*FusedResult {
	results := make([]*FusedResult, 0, len(semantic))
	for i, vr := range semantic {
		results = append(results, &FusedResult{
			ChunkID:       vr.ChunkID,
			Score:         vr.Score,
			SemanticRank:  i + 1,
			SemanticScore: vr.Score,
		})
	}
	return results
}
