package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Values(t *testing.T) {
	cfg := Default("/docs")

	assert.Equal(t, "/docs", cfg.DocsDir)
	assert.Equal(t, filepath.Join("/docs", IndexDirName), cfg.IndexDir)
	assert.Equal(t, DefaultChunkSize, cfg.Chunking.ChunkSize)
	assert.Equal(t, DefaultChunkOverlap, cfg.Chunking.Overlap)
	assert.Equal(t, 1.5, cfg.Lexical.K1)
	assert.Equal(t, 0.75, cfg.Lexical.B)
	assert.Equal(t, 60, cfg.Fusion.K)
	assert.Equal(t, "hybrid", cfg.Search.Strategy)
	assert.Equal(t, "static", cfg.Embedder.Backend)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingDefaultFileUsesDefaults(t *testing.T) {
	docs := t.TempDir()

	cfg, err := Load(DefaultConfigPath(docs), docs, false)
	require.NoError(t, err)
	assert.Equal(t, DefaultChunkSize, cfg.Chunking.ChunkSize)
}

func TestLoad_MissingExplicitFileFails(t *testing.T) {
	docs := t.TempDir()

	_, err := Load(filepath.Join(docs, "egen.yaml"), docs, true)
	require.Error(t, err)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	// Given: a config file overriding a few keys
	docs := t.TempDir()
	yaml := `
chunking:
  chunk_size: 200
  overlap: 25
search:
  top_k: 5
embedder:
  backend: ollama
  model: nomic-embed-text
`
	path := filepath.Join(docs, DefaultConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path, docs, false)
	require.NoError(t, err)

	// Then: overridden keys change, the rest keep defaults
	assert.Equal(t, 200, cfg.Chunking.ChunkSize)
	assert.Equal(t, 25, cfg.Chunking.Overlap)
	assert.Equal(t, 5, cfg.Search.TopK)
	assert.Equal(t, "ollama", cfg.Embedder.Backend)
	assert.Equal(t, 1.5, cfg.Lexical.K1)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MalformedYAML(t *testing.T) {
	docs := t.TempDir()
	path := filepath.Join(docs, DefaultConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("chunking: [broken"), 0o644))

	_, err := Load(path, docs, false)
	require.Error(t, err)
}

func TestValidate_Rejections(t *testing.T) {
	mutations := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero chunk size", func(c *Config) { c.Chunking.ChunkSize = 0 }},
		{"negative overlap", func(c *Config) { c.Chunking.Overlap = -1 }},
		{"overlap >= chunk size", func(c *Config) { c.Chunking.Overlap = c.Chunking.ChunkSize }},
		{"zero k1", func(c *Config) { c.Lexical.K1 = 0 }},
		{"b out of range", func(c *Config) { c.Lexical.B = 1.5 }},
		{"zero fusion k", func(c *Config) { c.Fusion.K = 0 }},
		{"zero top k", func(c *Config) { c.Search.TopK = 0 }},
		{"unknown backend", func(c *Config) { c.Embedder.Backend = "openai" }},
		{"zero parallelism", func(c *Config) { c.Embedder.Parallelism = 0 }},
		{"empty docs dir", func(c *Config) { c.DocsDir = "" }},
	}

	for _, tt := range mutations {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default("/docs")
			tt.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestPathHelpers(t *testing.T) {
	cfg := Default("/docs")

	assert.Equal(t, filepath.Join("/docs", ".ramsok", "index.db"), cfg.DatabasePath())
	assert.Equal(t, filepath.Join("/docs", ".ramsok", "vectors.hnsw"), cfg.VectorIndexPath())
	assert.Equal(t, filepath.Join("/docs", ".ramsok", "index.lock"), cfg.LockPath())
}
