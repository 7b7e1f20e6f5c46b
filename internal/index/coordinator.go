package index

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ramsok/ramsok/internal/chunk"
	"github.com/ramsok/ramsok/internal/config"
	"github.com/ramsok/ramsok/internal/embed"
	rserrors "github.com/ramsok/ramsok/internal/errors"
	"github.com/ramsok/ramsok/internal/search"
	"github.com/ramsok/ramsok/internal/source"
	"github.com/ramsok/ramsok/internal/store"
)

// Report summarizes one reindex run.
type Report struct {
	Indexed    []string // new or changed documents that were (re)indexed
	Removed    []string // documents evicted from the index
	Unchanged  []string // documents left untouched
	Failed     []string // documents that could not be parsed or chunked
	Unreadable []string // documents that could not be read or hashed
	Duration   time.Duration
}

// NoOp reports whether the run changed nothing.
func (r Report) NoOp() bool {
	return len(r.Indexed) == 0 && len(r.Removed) == 0 && len(r.Failed) == 0
}

// Result is one search hit with its chunk resolved.
type Result struct {
	ChunkID       int64
	Document      string
	Position      int
	Text          string
	Score         float64
	LexicalRank   int
	SemanticRank  int
	LexicalScore  float64
	SemanticScore float64
}

// DocumentStatus describes one indexed document.
type DocumentStatus struct {
	DocumentID string
	Chunks     int
	IndexedAt  time.Time
}

// Status is a snapshot of the index state plus the pending diff against the
// docs directory.
type Status struct {
	Documents  []DocumentStatus
	ChunkCount int
	Model      string
	Dimensions int
	Pending    Diff
	Unreadable []string
}

// Coordinator owns the whole index: the SQLite store, the in-memory BM25
// index, the HNSW vector index, the manifest, and the search engine over
// them. Searches take a shared lock; rebuilds take the exclusive lock, so a
// search always sees either the complete old state or the complete new state.
type Coordinator struct {
	mu sync.RWMutex

	cfg      config.Config
	store    *store.Store
	lexical  *store.BM25Index
	vectors  *store.VectorIndex
	embedder embed.Embedder
	engine   *search.Engine
	src      *source.Source
	lock     *IndexLock

	manifest    *Manifest
	chunks      map[int64]*store.Chunk
	nextChunkID int64
	dimensions  int
}

// Open loads the persisted index, verifies its consistency, rebuilds the
// in-memory BM25 index, and loads or rebuilds the HNSW graph. With force set,
// a model mismatch is tolerated because the caller is about to wipe.
func Open(ctx context.Context, cfg config.Config, embedder embed.Embedder, force bool) (*Coordinator, error) {
	lock := NewIndexLock(cfg.LockPath())
	if err := lock.TryLock(); err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	c := &Coordinator{
		cfg:      cfg,
		store:    st,
		embedder: embedder,
		src:      source.New(cfg.DocsDir),
		lock:     lock,
		chunks:   make(map[int64]*store.Chunk),
	}

	if err := c.load(ctx, force); err != nil {
		_ = st.Close()
		_ = lock.Unlock()
		return nil, err
	}

	fusion := search.NewRRFFusion(cfg.Fusion.K)
	c.engine = search.NewEngine(c.lexical, c.vectors, embedder, fusion)
	return c, nil
}

func (c *Coordinator) load(ctx context.Context, force bool) error {
	if err := c.checkModel(ctx, force); err != nil {
		return err
	}

	records, err := c.store.Documents(ctx)
	if err != nil {
		return err
	}
	chunks, err := c.store.Chunks(ctx)
	if err != nil {
		return err
	}
	embeddingIDs, vectors, err := c.store.Embeddings(ctx)
	if err != nil {
		return err
	}

	// Under force the stored embeddings are about to be discarded, so their
	// dimension is not held against the new embedder.
	validateDims := c.dimensions
	if force {
		validateDims = 0
	}
	if err := validateConsistency(records, chunks, embeddingIDs, vectors, validateDims); err != nil {
		return err
	}

	c.manifest = NewManifest(records)
	for _, ch := range chunks {
		c.chunks[ch.ID] = ch
	}

	c.lexical = store.NewBM25Index(store.BM25Config{
		K1: c.cfg.Lexical.K1,
		B:  c.cfg.Lexical.B,
	})
	c.lexical.Add(chunks)

	if err := c.loadNextChunkID(ctx); err != nil {
		return err
	}

	return c.loadVectors(embeddingIDs, vectors, force)
}

// checkModel compares the persisted embedding model and dimension against the
// configured embedder. Stored vectors from a different model are meaningless,
// so a mismatch on a non-empty index demands an explicit full rebuild.
func (c *Coordinator) checkModel(ctx context.Context, force bool) error {
	c.dimensions = c.embedder.Dimensions()

	storedModel, haveModel, err := c.store.GetState(ctx, store.StateKeyEmbedModel)
	if err != nil {
		return err
	}
	if !haveModel {
		return nil
	}

	storedDims, _, err := c.store.GetState(ctx, store.StateKeyEmbedDimensions)
	if err != nil {
		return err
	}

	if force {
		return nil
	}

	if storedModel != c.embedder.ModelName() {
		return rserrors.New(rserrors.ErrCodeModelMismatch,
			fmt.Sprintf("index was built with model %q but embedder is %q",
				storedModel, c.embedder.ModelName()), nil).
			WithSuggestion("run 'ramsok index --force' to rebuild with the new model")
	}
	if storedDims != "" {
		dims, convErr := strconv.Atoi(storedDims)
		if convErr == nil && dims != c.dimensions {
			return rserrors.New(rserrors.ErrCodeModelMismatch,
				fmt.Sprintf("index has %s-dimensional embeddings but embedder produces %d",
					storedDims, c.dimensions), nil).
				WithSuggestion("run 'ramsok index --force' to rebuild with the new model")
		}
	}
	return nil
}

func (c *Coordinator) loadNextChunkID(ctx context.Context) error {
	value, ok, err := c.store.GetState(ctx, store.StateKeyNextChunkID)
	if err != nil {
		return err
	}
	if ok {
		next, convErr := strconv.ParseInt(value, 10, 64)
		if convErr != nil {
			return rserrors.CorruptStateError(
				fmt.Sprintf("next chunk id %q is not a number", value), convErr)
		}
		c.nextChunkID = next
	}

	// The allocator must stay ahead of every chunk ever issued, including
	// after restoring an older database copy.
	for id := range c.chunks {
		if id >= c.nextChunkID {
			c.nextChunkID = id + 1
		}
	}
	return nil
}

// loadVectors loads the HNSW graph cache, falling back to a rebuild from the
// canonical embeddings when the cache is missing, unreadable, or stale.
func (c *Coordinator) loadVectors(ids []int64, vectors [][]float32, force bool) error {
	c.vectors = store.NewVectorIndex(store.DefaultVectorConfig(c.dimensions))

	// Under force the graph is rebuilt from scratch by the coming reindex;
	// stored vectors may even have a different dimension.
	if force {
		return nil
	}

	path := c.cfg.VectorIndexPath()
	if err := c.vectors.Load(path); err == nil && c.graphMatches(ids) {
		return nil
	} else if err == nil {
		slog.Warn("vector_index_stale", slog.String("path", path))
	} else {
		slog.Debug("vector_index_rebuild", slog.String("reason", err.Error()))
	}

	c.vectors = store.NewVectorIndex(store.DefaultVectorConfig(c.dimensions))
	if len(ids) == 0 {
		return nil
	}
	if err := c.vectors.Add(ids, vectors); err != nil {
		return rserrors.CorruptStateError("cannot rebuild vector index from stored embeddings", err)
	}
	if err := c.vectors.Save(path); err != nil {
		slog.Warn("vector_index_save_failed", slog.String("error", err.Error()))
	}
	return nil
}

// graphMatches checks the loaded graph covers exactly the stored chunk ids.
func (c *Coordinator) graphMatches(ids []int64) bool {
	if c.vectors.Count() != len(ids) {
		return false
	}
	for _, id := range ids {
		if !c.vectors.Contains(id) {
			return false
		}
	}
	return true
}

// docBuild is the staged replacement state for one document.
type docBuild struct {
	upsert store.DocumentUpsert
	texts  []string
	err    error // embedding failure; drops the document from this run
}

// Reindex brings the index in line with the docs directory. With force set,
// everything is wiped and rebuilt; otherwise only documents whose content
// hash changed are re-chunked and re-embedded, and unchanged documents keep
// their chunk ids untouched. All persistence lands in one transaction.
func (c *Coordinator) Reindex(ctx context.Context, force bool) (*Report, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()

	files, failures, err := c.src.Scan(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	unreadable := make([]string, 0, len(failures))
	for _, f := range failures {
		unreadable = append(unreadable, f.ID)
	}
	report.Unreadable = unreadable

	var toIndex []source.FileInfo
	var diff Diff
	if force {
		for _, f := range files {
			diff.New = append(diff.New, f.ID)
		}
		toIndex = files
	} else {
		diff = c.manifest.Diff(files, unreadable)
		report.Unchanged = diff.Unchanged

		if !diff.HasChanges() {
			report.Duration = time.Since(start)
			slog.Info("reindex_noop", slog.Int("documents", len(diff.Unchanged)))
			return report, nil
		}

		want := make(map[string]bool, len(diff.New)+len(diff.Changed))
		for _, id := range diff.New {
			want[id] = true
		}
		for _, id := range diff.Changed {
			want[id] = true
		}
		for _, f := range files {
			if want[f.ID] {
				toIndex = append(toIndex, f)
			}
		}
	}

	builds, failed := c.stage(toIndex)
	report.Failed = failed

	if err := c.embedBuilds(ctx, builds); err != nil {
		return nil, err
	}

	// Embedding failures are isolated per document: the failed builds are
	// dropped and everything else still lands. A failed document's previous
	// state, if any, stays in place.
	kept := builds[:0]
	for _, b := range builds {
		if b.err != nil {
			report.Failed = append(report.Failed, b.upsert.Record.DocumentID)
			continue
		}
		kept = append(kept, b)
	}
	builds = kept

	cs := store.ChangeSet{
		Wipe:            force,
		RemoveDocuments: diff.Removed,
		State: map[string]string{
			store.StateKeyEmbedModel:      c.embedder.ModelName(),
			store.StateKeyEmbedDimensions: strconv.Itoa(c.dimensions),
			store.StateKeyNextChunkID:     strconv.FormatInt(c.nextChunkID, 10),
		},
	}
	for _, b := range builds {
		cs.Upserts = append(cs.Upserts, b.upsert)
		report.Indexed = append(report.Indexed, b.upsert.Record.DocumentID)
	}
	report.Removed = diff.Removed

	if err := c.store.Apply(ctx, cs); err != nil {
		return nil, rserrors.New(rserrors.ErrCodeIndexFailed, "failed to persist index", err)
	}

	// Persistence succeeded; now swing the in-memory state to match.
	c.applyInMemory(force, diff, builds)

	if err := c.vectors.Save(c.cfg.VectorIndexPath()); err != nil {
		slog.Warn("vector_index_save_failed", slog.String("error", err.Error()))
	}

	report.Duration = time.Since(start)
	sort.Strings(report.Indexed)
	sort.Strings(report.Failed)
	slog.Info("reindex_complete",
		slog.Int("indexed", len(report.Indexed)),
		slog.Int("removed", len(report.Removed)),
		slog.Int("unchanged", len(report.Unchanged)),
		slog.Int("failed", len(report.Failed)),
		slog.Duration("duration", report.Duration))
	return report, nil
}

// stage extracts and chunks each document sequentially, allocating each a
// contiguous chunk id range. Parse failures, empty documents and chunk
// failures skip the document; its previous state, if any, stays in place.
func (c *Coordinator) stage(files []source.FileInfo) ([]*docBuild, []string) {
	var builds []*docBuild
	var failed []string

	chunker := chunk.New(c.cfg.Chunking.ChunkSize, c.cfg.Chunking.Overlap)
	now := time.Now().UTC()

	for _, f := range files {
		text, err := c.src.ExtractText(f.Path)
		if err != nil {
			slog.Warn("document_parse_failed",
				slog.String("document", f.ID),
				slog.String("error", err.Error()))
			failed = append(failed, f.ID)
			continue
		}

		if strings.TrimSpace(text) == "" {
			slog.Warn("document_empty",
				slog.String("document", f.ID))
			failed = append(failed, f.ID)
			continue
		}

		texts, err := chunker.Split(text)
		if err != nil {
			slog.Warn("document_chunk_failed",
				slog.String("document", f.ID),
				slog.String("error", err.Error()))
			failed = append(failed, f.ID)
			continue
		}

		startID := c.nextChunkID
		chunks := make([]*store.Chunk, len(texts))
		for i, t := range texts {
			chunks[i] = &store.Chunk{
				ID:             c.nextChunkID,
				Text:           t,
				SourceDocument: f.ID,
				Position:       i,
				CreatedAt:      now,
			}
			c.nextChunkID++
		}

		builds = append(builds, &docBuild{
			upsert: store.DocumentUpsert{
				Record: store.DocumentRecord{
					DocumentID:  f.ID,
					ContentHash: f.Hash,
					ChunkStart:  startID,
					ChunkEnd:    c.nextChunkID,
					IndexedAt:   now,
				},
				Chunks: chunks,
			},
			texts: texts,
		})
	}

	return builds, failed
}

// embedBuilds embeds each staged document's chunks, documents in parallel up
// to the configured limit. An embedding failure is fatal to its own document
// only: the build is marked failed and the remaining documents proceed. Only
// context cancellation aborts the run.
func (c *Coordinator) embedBuilds(ctx context.Context, builds []*docBuild) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Embedder.Parallelism)

	for _, b := range builds {
		g.Go(func() error {
			vectors, err := c.embedder.EmbedBatch(gctx, b.texts)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				slog.Warn("document_embed_failed",
					slog.String("document", b.upsert.Record.DocumentID),
					slog.String("error", err.Error()))
				b.err = rserrors.EmbeddingError(
					fmt.Sprintf("failed to embed %s", b.upsert.Record.DocumentID), err)
				return nil
			}
			b.upsert.Vectors = vectors
			return nil
		})
	}

	return g.Wait()
}

func (c *Coordinator) applyInMemory(force bool, diff Diff, builds []*docBuild) {
	if force {
		c.lexical.Reset()
		c.vectors = store.NewVectorIndex(store.DefaultVectorConfig(c.dimensions))
		c.engine = search.NewEngine(c.lexical, c.vectors, c.embedder, search.NewRRFFusion(c.cfg.Fusion.K))
		c.manifest = NewManifest(nil)
		c.chunks = make(map[int64]*store.Chunk)
	}

	for _, id := range diff.Removed {
		c.evictDocument(id)
	}

	for _, b := range builds {
		c.evictDocument(b.upsert.Record.DocumentID)

		c.manifest.Set(b.upsert.Record)
		ids := make([]int64, len(b.upsert.Chunks))
		for i, ch := range b.upsert.Chunks {
			c.chunks[ch.ID] = ch
			ids[i] = ch.ID
		}
		c.lexical.Add(b.upsert.Chunks)
		if len(ids) > 0 {
			// Dimensions were validated when the vectors were produced.
			_ = c.vectors.Add(ids, b.upsert.Vectors)
		}
	}
}

// evictDocument drops a document's chunks from every in-memory structure.
func (c *Coordinator) evictDocument(id string) {
	record, ok := c.manifest.Get(id)
	if !ok {
		return
	}
	ids := record.ChunkIDs()
	c.lexical.Remove(ids)
	c.vectors.Remove(ids)
	for _, chunkID := range ids {
		delete(c.chunks, chunkID)
	}
	c.manifest.Delete(id)
}

// NeedsReindex scans the docs directory and diffs it against the manifest
// without mutating anything.
func (c *Coordinator) NeedsReindex(ctx context.Context) (Diff, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	files, failures, err := c.src.Scan(ctx)
	if err != nil {
		return Diff{}, err
	}
	unreadable := make([]string, 0, len(failures))
	for _, f := range failures {
		unreadable = append(unreadable, f.ID)
	}
	return c.manifest.Diff(files, unreadable), nil
}

// Search runs a query under the shared lock and resolves each hit to its
// chunk text and source document.
func (c *Coordinator) Search(ctx context.Context, query, strategy string, topK int) ([]*Result, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if topK <= 0 {
		topK = c.cfg.Search.TopK
	}
	if strategy == "" {
		strategy = c.cfg.Search.Strategy
	}

	fused, err := c.engine.Search(ctx, query, strategy, topK)
	if err != nil {
		return nil, err
	}

	results := make([]*Result, 0, len(fused))
	for _, f := range fused {
		ch, ok := c.chunks[f.ChunkID]
		if !ok {
			continue
		}
		results = append(results, &Result{
			ChunkID:       f.ChunkID,
			Document:      ch.SourceDocument,
			Position:      ch.Position,
			Text:          ch.Text,
			Score:         f.Score,
			LexicalRank:   f.LexicalRank,
			SemanticRank:  f.SemanticRank,
			LexicalScore:  f.LexicalScore,
			SemanticScore: f.SemanticScore,
		})
	}
	return results, nil
}

// Status reports the index contents and the pending diff against disk.
func (c *Coordinator) Status(ctx context.Context) (*Status, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	files, failures, err := c.src.Scan(ctx)
	if err != nil {
		return nil, err
	}
	unreadable := make([]string, 0, len(failures))
	for _, f := range failures {
		unreadable = append(unreadable, f.ID)
	}

	status := &Status{
		ChunkCount: len(c.chunks),
		Model:      c.embedder.ModelName(),
		Dimensions: c.dimensions,
		Pending:    c.manifest.Diff(files, unreadable),
		Unreadable: unreadable,
	}
	for _, r := range c.manifest.Records() {
		status.Documents = append(status.Documents, DocumentStatus{
			DocumentID: r.DocumentID,
			Chunks:     r.ChunkCount(),
			IndexedAt:  r.IndexedAt,
		})
	}
	return status, nil
}

// DocumentCount returns the number of indexed documents.
func (c *Coordinator) DocumentCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.manifest.Len()
}

// Close releases the store and the index lock.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.store.Close()
	if unlockErr := c.lock.Unlock(); unlockErr != nil && err == nil {
		err = unlockErr
	}
	return err
}
