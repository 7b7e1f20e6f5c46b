package store

import (
	"math"
	"sort"
	"sync"
)

// BM25Config configures the lexical index.
type BM25Config struct {
	// K1 is the term frequency saturation parameter (default: 1.5).
	K1 float64

	// B is the length normalization parameter (default: 0.75).
	B float64
}

// DefaultBM25Config returns the default BM25 configuration.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		K1: 1.5,
		B:  0.75,
	}
}

// chunkPostings holds per-chunk term statistics.
type chunkPostings struct {
	terms  map[string]int // term -> frequency within the chunk
	length int            // chunk length in tokens
}

// BM25Index is an in-memory Okapi BM25 index over the current chunk set.
//
// It maintains per-chunk postings plus an inverted term index; document
// frequency, total chunk count and average chunk length are always derived
// from the chunks currently present, so the index can be updated chunk by
// chunk during incremental reindexing without touching unchanged postings.
// The whole structure is rebuildable from the chunk store alone.
type BM25Index struct {
	mu       sync.RWMutex
	config   BM25Config
	chunks   map[int64]*chunkPostings
	inverted map[string]map[int64]int // term -> chunk id -> term frequency
	totalLen int
}

// NewBM25Index creates an empty BM25 index.
func NewBM25Index(cfg BM25Config) *BM25Index {
	if cfg.K1 <= 0 {
		cfg.K1 = 1.5
	}
	if cfg.B < 0 || cfg.B > 1 {
		cfg.B = 0.75
	}
	return &BM25Index{
		config:   cfg,
		chunks:   make(map[int64]*chunkPostings),
		inverted: make(map[string]map[int64]int),
	}
}

// Add indexes the given chunks. Re-adding an existing chunk id replaces its
// postings. Statistics are identical regardless of insertion order.
func (b *BM25Index) Add(chunks []*Chunk) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, c := range chunks {
		if _, exists := b.chunks[c.ID]; exists {
			b.removeLocked(c.ID)
		}

		tokens := Tokenize(c.Text)
		posting := &chunkPostings{
			terms:  make(map[string]int, len(tokens)),
			length: len(tokens),
		}
		for _, t := range tokens {
			posting.terms[t]++
		}

		b.chunks[c.ID] = posting
		b.totalLen += posting.length
		for term, tf := range posting.terms {
			ids := b.inverted[term]
			if ids == nil {
				ids = make(map[int64]int)
				b.inverted[term] = ids
			}
			ids[c.ID] = tf
		}
	}
}

// Remove drops the postings for the given chunk ids. Unknown ids are ignored.
func (b *BM25Index) Remove(ids []int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, id := range ids {
		b.removeLocked(id)
	}
}

func (b *BM25Index) removeLocked(id int64) {
	posting, ok := b.chunks[id]
	if !ok {
		return
	}

	for term := range posting.terms {
		ids := b.inverted[term]
		delete(ids, id)
		if len(ids) == 0 {
			delete(b.inverted, term)
		}
	}
	b.totalLen -= posting.length
	delete(b.chunks, id)
}

// Reset discards all postings.
func (b *BM25Index) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.chunks = make(map[int64]*chunkPostings)
	b.inverted = make(map[string]map[int64]int)
	b.totalLen = 0
}

// Search scores the query against the current chunk set using Okapi BM25:
//
//	score(d) = Σ_t IDF(t) * tf(t,d)*(k1+1) / (tf(t,d) + k1*(1 - b + b*|d|/avgdl))
//	IDF(t)   = ln((N - df(t) + 0.5) / (df(t) + 0.5) + 1)
//
// summed over query terms present in the chunk. Chunks matching no query term
// are absent from the result, not scored as zero. Results are ordered by
// descending score, ties broken by lower chunk id. limit <= 0 returns all
// matching chunks.
func (b *BM25Index) Search(query string, limit int) []*LexicalResult {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := len(b.chunks)
	if n == 0 {
		return []*LexicalResult{}
	}
	avgdl := float64(b.totalLen) / float64(n)

	scores := make(map[int64]float64)
	for _, term := range Tokenize(query) {
		ids, ok := b.inverted[term]
		if !ok {
			continue
		}

		df := float64(len(ids))
		idf := math.Log((float64(n)-df+0.5)/(df+0.5) + 1.0)

		for id, tf := range ids {
			freq := float64(tf)
			dl := float64(b.chunks[id].length)
			numerator := freq * (b.config.K1 + 1)
			denominator := freq + b.config.K1*(1-b.config.B+b.config.B*dl/avgdl)
			scores[id] += idf * numerator / denominator
		}
	}

	results := make([]*LexicalResult, 0, len(scores))
	for id, score := range scores {
		if score > 0 {
			results = append(results, &LexicalResult{ChunkID: id, Score: score})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// Contains reports whether the chunk id is indexed.
func (b *BM25Index) Contains(id int64) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, ok := b.chunks[id]
	return ok
}

// Stats returns index statistics derived from the current chunk set.
func (b *BM25Index) Stats() LexicalStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stats := LexicalStats{
		ChunkCount: len(b.chunks),
		TermCount:  len(b.inverted),
	}
	if stats.ChunkCount > 0 {
		stats.AvgChunkLength = float64(b.totalLen) / float64(stats.ChunkCount)
	}
	return stats
}
