package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	rserrors "github.com/ramsok/ramsok/internal/errors"
)

// Store is the canonical on-disk state: chunks, embeddings, the per-document
// manifest, and the key-value state table, all in one SQLite database.
//
// Every index build or reindex is applied as a single transaction, so the
// database always holds either the complete previous state or the complete
// next state. The HNSW graph file is a derived cache rebuilt from the
// embeddings table when missing or stale.
type Store struct {
	db   *sql.DB
	path string
}

// DocumentUpsert carries the full replacement state for one document.
type DocumentUpsert struct {
	Record  DocumentRecord
	Chunks  []*Chunk
	Vectors [][]float32 // aligned with Chunks
}

// ChangeSet describes one atomic mutation of the persisted index.
type ChangeSet struct {
	// Wipe drops all documents, chunks and embeddings first (full rebuild).
	Wipe bool

	// RemoveDocuments lists document ids whose records, chunks and
	// embeddings are deleted.
	RemoveDocuments []string

	// Upserts replaces each document's record, chunks and embeddings.
	Upserts []DocumentUpsert

	// State sets key-value state entries (model name, dimensions, next id).
	State map[string]string
}

// validateIntegrity checks a SQLite database before opening it for real.
// A missing file is fine; corruption is not silently repaired here, since
// the database is the canonical state and a rebuild must be explicit.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// Open opens (creating if needed) the store at path. An empty path opens an
// in-memory store for testing.
func Open(path string) (*Store, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}

		if validErr := validateIntegrity(path); validErr != nil {
			return nil, rserrors.CorruptStateError(
				fmt.Sprintf("index database at %s is corrupted", path), validErr)
		}

		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer to prevent lock contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Set pragmas via statements; DSN params may be ignored by the driver.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	-- Per-document manifest: content hash plus the contiguous chunk id
	-- range [chunk_start, chunk_end) currently owned by the document.
	CREATE TABLE IF NOT EXISTS documents (
		id           TEXT PRIMARY KEY,
		content_hash TEXT NOT NULL,
		chunk_start  INTEGER NOT NULL,
		chunk_end    INTEGER NOT NULL,
		indexed_at   TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id          INTEGER PRIMARY KEY,
		document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		position    INTEGER NOT NULL,
		text        TEXT NOT NULL,
		created_at  TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);

	-- One embedding per chunk, stored as little-endian float32.
	CREATE TABLE IF NOT EXISTS embeddings (
		chunk_id INTEGER PRIMARY KEY REFERENCES chunks(id) ON DELETE CASCADE,
		vector   BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS state (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database file path, or "" for an in-memory store.
func (s *Store) Path() string {
	return s.path
}

// Apply runs the change set in a single transaction. Either every removal,
// upsert and state write lands, or none do.
func (s *Store) Apply(ctx context.Context, cs ChangeSet) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if cs.Wipe {
		for _, stmt := range []string{
			"DELETE FROM embeddings",
			"DELETE FROM chunks",
			"DELETE FROM documents",
		} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("wipe: %w", err)
			}
		}
	}

	for _, docID := range cs.RemoveDocuments {
		if err := deleteDocument(ctx, tx, docID); err != nil {
			return err
		}
	}

	for _, up := range cs.Upserts {
		if len(up.Chunks) != len(up.Vectors) {
			return fmt.Errorf("document %s: %d chunks but %d vectors",
				up.Record.DocumentID, len(up.Chunks), len(up.Vectors))
		}
		// Replace, not merge: stale chunks from a previous version of the
		// document must not survive.
		if err := deleteDocument(ctx, tx, up.Record.DocumentID); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO documents (id, content_hash, chunk_start, chunk_end, indexed_at)
			 VALUES (?, ?, ?, ?, ?)`,
			up.Record.DocumentID, up.Record.ContentHash,
			up.Record.ChunkStart, up.Record.ChunkEnd,
			up.Record.IndexedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("insert document %s: %w", up.Record.DocumentID, err)
		}

		for i, c := range up.Chunks {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO chunks (id, document_id, position, text, created_at)
				 VALUES (?, ?, ?, ?, ?)`,
				c.ID, c.SourceDocument, c.Position, c.Text,
				c.CreatedAt.UTC().Format(time.RFC3339Nano))
			if err != nil {
				return fmt.Errorf("insert chunk %d: %w", c.ID, err)
			}

			_, err = tx.ExecContext(ctx,
				`INSERT INTO embeddings (chunk_id, vector) VALUES (?, ?)`,
				c.ID, encodeVector(up.Vectors[i]))
			if err != nil {
				return fmt.Errorf("insert embedding %d: %w", c.ID, err)
			}
		}
	}

	for key, value := range cs.State {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO state (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			key, value)
		if err != nil {
			return fmt.Errorf("set state %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func deleteDocument(ctx context.Context, tx *sql.Tx, docID string) error {
	// Explicit child deletes; ON DELETE CASCADE is belt and braces but the
	// pragma must be on per connection, so don't rely on it.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM embeddings WHERE chunk_id IN
		   (SELECT id FROM chunks WHERE document_id = ?)`, docID); err != nil {
		return fmt.Errorf("delete embeddings for %s: %w", docID, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM chunks WHERE document_id = ?`, docID); err != nil {
		return fmt.Errorf("delete chunks for %s: %w", docID, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM documents WHERE id = ?`, docID); err != nil {
		return fmt.Errorf("delete document %s: %w", docID, err)
	}
	return nil
}

// Documents loads all manifest records, ordered by document id.
func (s *Store) Documents(ctx context.Context) ([]DocumentRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content_hash, chunk_start, chunk_end, indexed_at
		 FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var records []DocumentRecord
	for rows.Next() {
		var r DocumentRecord
		var indexedAt string
		if err := rows.Scan(&r.DocumentID, &r.ContentHash,
			&r.ChunkStart, &r.ChunkEnd, &indexedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		r.IndexedAt, _ = time.Parse(time.RFC3339Nano, indexedAt)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Chunks loads all chunks, ordered by chunk id.
func (s *Store) Chunks(ctx context.Context) ([]*Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, position, text, created_at
		 FROM chunks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*Chunk
	for rows.Next() {
		var c Chunk
		var createdAt string
		if err := rows.Scan(&c.ID, &c.SourceDocument, &c.Position,
			&c.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

// Embeddings loads all stored vectors ordered by chunk id. Used to rebuild
// the HNSW graph when its cache file is missing or stale.
func (s *Store) Embeddings(ctx context.Context) ([]int64, [][]float32, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_id, vector FROM embeddings ORDER BY chunk_id`)
	if err != nil {
		return nil, nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	var ids []int64
	var vectors [][]float32
	for rows.Next() {
		var id int64
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, nil, fmt.Errorf("scan embedding: %w", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, nil, rserrors.CorruptStateError(
				fmt.Sprintf("embedding for chunk %d is malformed", id), err)
		}
		ids = append(ids, id)
		vectors = append(vectors, vec)
	}
	return ids, vectors, rows.Err()
}

// EmbeddingCount returns the number of stored vectors.
func (s *Store) EmbeddingCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&n)
	return n, err
}

// GetState reads a state value. Missing keys return ("", false, nil).
func (s *Store) GetState(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get state %s: %w", key, err)
	}
	return value, true, nil
}

// SetState writes a single state value outside any change set.
func (s *Store) SetState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO state (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	return err
}

// Close checkpoints the WAL and closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	err := s.db.Close()
	s.db = nil
	return err
}

// encodeVector packs a float32 vector as little-endian bytes.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeVector unpacks a little-endian float32 vector.
func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d not a multiple of 4", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec, nil
}
