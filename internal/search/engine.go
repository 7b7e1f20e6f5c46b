package search

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ramsok/ramsok/internal/embed"
	rserrors "github.com/ramsok/ramsok/internal/errors"
	"github.com/ramsok/ramsok/internal/store"
)

// overfetchFactor widens the per-index candidate pools before fusion so a
// chunk ranked just outside top-k in both rankings can still fuse into the
// final top-k.
const overfetchFactor = 2

// Engine runs queries against the lexical and vector indexes and fuses the
// rankings. It does not own the indexes; the coordinator does.
type Engine struct {
	lexical  *store.BM25Index
	vectors  *store.VectorIndex
	embedder embed.Embedder
	fusion   *RRFFusion
}

// NewEngine creates a search engine over the given indexes.
func NewEngine(lexical *store.BM25Index, vectors *store.VectorIndex, embedder embed.Embedder, fusion *RRFFusion) *Engine {
	return &Engine{
		lexical:  lexical,
		vectors:  vectors,
		embedder: embedder,
		fusion:   fusion,
	}
}

// Search runs the named strategy. An empty or whitespace-only query is a
// validation error, never an empty result.
func (e *Engine) Search(ctx context.Context, query, strategy string, topK int) ([]*FusedResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, rserrors.New(rserrors.ErrCodeQueryEmpty, "query must not be empty", nil)
	}
	if topK <= 0 {
		return nil, rserrors.InvalidInputError("top-k must be positive", nil)
	}

	fn, err := Lookup(strategy)
	if err != nil {
		return nil, err
	}

	results, err := fn(ctx, e, query, topK)
	if err != nil {
		return nil, err
	}
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// searchLexical runs the BM25 side.
func (e *Engine) searchLexical(_ context.Context, query string, limit int) []*store.LexicalResult {
	return e.lexical.Search(query, limit)
}

// searchSemantic embeds the query and runs the vector side.
func (e *Engine) searchSemantic(ctx context.Context, query string, limit int) ([]*store.VectorResult, error) {
	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, rserrors.EmbeddingError("failed to embed query", err)
	}
	results, err := e.vectors.Search(vec, limit)
	if err != nil {
		return nil, rserrors.New(rserrors.ErrCodeSearchFailed, "vector search failed", err)
	}
	return results, nil
}

// hybridSearch runs both sides concurrently and fuses the rankings.
func hybridSearch(ctx context.Context, e *Engine, query string, topK int) ([]*FusedResult, error) {
	fetch := topK * overfetchFactor

	var lexical []*store.LexicalResult
	var semantic []*store.VectorResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lexical = e.searchLexical(gctx, query, fetch)
		return nil
	})
	g.Go(func() error {
		var err error
		semantic, err = e.searchSemantic(gctx, query, fetch)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return e.fusion.Fuse(lexical, semantic), nil
}

// lexicalSearch runs only the BM25 side.
func lexicalSearch(ctx context.Context, e *Engine, query string, topK int) ([]*FusedResult, error) {
	return lexicalOnly(e.searchLexical(ctx, query, topK)), nil
}

// semanticSearch runs only the vector side.
func semanticSearch(ctx context.Context, e *Engine, query string, topK int) ([]*FusedResult, error) {
	results, err := e.searchSemantic(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	return semanticOnly(results), nil
}
