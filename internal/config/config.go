// Package config provides configuration loading and validation for ramsok.
//
// Configuration is resolved in order: defaults, then the optional YAML file
// (ramsok.yaml in the docs directory or an explicit --config path), then CLI
// flags. Validation runs before any indexing work begins.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	rserrors "github.com/ramsok/ramsok/internal/errors"
)

// Default chunking parameters (words), matching the retrieval-quality sweet
// spot for contract-style prose documents.
const (
	DefaultChunkSize    = 400
	DefaultChunkOverlap = 50
)

// DefaultConfigFileName is the config file looked up inside the docs directory.
const DefaultConfigFileName = "ramsok.yaml"

// IndexDirName is the index directory created inside the docs directory.
const IndexDirName = ".ramsok"

// Config is the root configuration.
type Config struct {
	// DocsDir is the directory containing the source documents.
	DocsDir string `yaml:"docs_dir"`

	// IndexDir is where persisted index state lives.
	// Defaults to <docs_dir>/.ramsok.
	IndexDir string `yaml:"index_dir"`

	Chunking ChunkingConfig `yaml:"chunking"`
	Lexical  LexicalConfig  `yaml:"lexical"`
	Fusion   FusionConfig   `yaml:"fusion"`
	Search   SearchConfig   `yaml:"search"`
	Embedder EmbedderConfig `yaml:"embedder"`
}

// ChunkingConfig controls the sentence-aware chunker.
type ChunkingConfig struct {
	// ChunkSize is the target chunk length in words.
	ChunkSize int `yaml:"chunk_size"`

	// Overlap is the number of words carried over from the previous chunk.
	Overlap int `yaml:"overlap"`
}

// LexicalConfig controls BM25 scoring.
type LexicalConfig struct {
	// K1 is the term frequency saturation parameter (default: 1.5).
	K1 float64 `yaml:"k1"`

	// B is the length normalization parameter (default: 0.75).
	B float64 `yaml:"b"`
}

// FusionConfig controls Reciprocal Rank Fusion.
type FusionConfig struct {
	// K is the RRF smoothing constant (default: 60).
	K int `yaml:"k"`
}

// SearchConfig controls query defaults.
type SearchConfig struct {
	// TopK is the default number of results returned (default: 10).
	TopK int `yaml:"top_k"`

	// Strategy is the default search strategy: hybrid, lexical, semantic.
	Strategy string `yaml:"strategy"`
}

// EmbedderConfig selects and configures the embedding backend.
type EmbedderConfig struct {
	// Backend is the embedder implementation: "static" or "ollama".
	Backend string `yaml:"backend"`

	// Model is the embedding model name (ollama backend).
	Model string `yaml:"model"`

	// Host is the Ollama server URL (default: http://localhost:11434).
	Host string `yaml:"host"`

	// Dimensions is the embedding dimension. 0 means auto-detect.
	Dimensions int `yaml:"dimensions"`

	// CacheSize is the LRU embedding cache size. 0 disables caching.
	CacheSize int `yaml:"cache_size"`

	// MaxRetries is the retry budget for transient embedding failures.
	MaxRetries int `yaml:"max_retries"`

	// Parallelism bounds concurrent document embedding during (re)index.
	Parallelism int `yaml:"parallelism"`
}

// Default returns the default configuration for the given docs directory.
func Default(docsDir string) Config {
	return Config{
		DocsDir:  docsDir,
		IndexDir: filepath.Join(docsDir, IndexDirName),
		Chunking: ChunkingConfig{
			ChunkSize: DefaultChunkSize,
			Overlap:   DefaultChunkOverlap,
		},
		Lexical: LexicalConfig{
			K1: 1.5,
			B:  0.75,
		},
		Fusion: FusionConfig{
			K: 60,
		},
		Search: SearchConfig{
			TopK:     10,
			Strategy: "hybrid",
		},
		Embedder: EmbedderConfig{
			Backend:     "static",
			Host:        "http://localhost:11434",
			CacheSize:   1000,
			MaxRetries:  3,
			Parallelism: 4,
		},
	}
}

// Load reads configuration from path, merged over the defaults for docsDir.
// A missing file at the default location is not an error; an explicitly
// requested file that does not exist is.
func Load(path, docsDir string, explicit bool) (Config, error) {
	cfg := Default(docsDir)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return cfg, rserrors.New(rserrors.ErrCodeConfigNotFound,
			fmt.Sprintf("cannot read config file %s", path), err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, rserrors.ConfigError(
			fmt.Sprintf("cannot parse config file %s", path), err)
	}

	// Re-derive the index dir if the file set docs_dir but not index_dir.
	if cfg.IndexDir == "" {
		cfg.IndexDir = filepath.Join(cfg.DocsDir, IndexDirName)
	}

	return cfg, nil
}

// Validate checks the configuration and returns a ConfigError describing the
// first problem found. It must pass before any index work starts.
func (c Config) Validate() error {
	if c.DocsDir == "" {
		return rserrors.ConfigError("docs_dir must be set", nil)
	}
	if c.Chunking.ChunkSize <= 0 {
		return rserrors.ConfigError(
			fmt.Sprintf("chunking.chunk_size must be positive, got %d", c.Chunking.ChunkSize), nil)
	}
	if c.Chunking.Overlap < 0 {
		return rserrors.ConfigError(
			fmt.Sprintf("chunking.overlap must not be negative, got %d", c.Chunking.Overlap), nil)
	}
	if c.Chunking.Overlap >= c.Chunking.ChunkSize {
		return rserrors.ConfigError(
			fmt.Sprintf("chunking.overlap (%d) must be smaller than chunk_size (%d)",
				c.Chunking.Overlap, c.Chunking.ChunkSize), nil)
	}
	if c.Lexical.K1 <= 0 {
		return rserrors.ConfigError(
			fmt.Sprintf("lexical.k1 must be positive, got %g", c.Lexical.K1), nil)
	}
	if c.Lexical.B < 0 || c.Lexical.B > 1 {
		return rserrors.ConfigError(
			fmt.Sprintf("lexical.b must be in [0,1], got %g", c.Lexical.B), nil)
	}
	if c.Fusion.K <= 0 {
		return rserrors.ConfigError(
			fmt.Sprintf("fusion.k must be positive, got %d", c.Fusion.K), nil)
	}
	if c.Search.TopK <= 0 {
		return rserrors.ConfigError(
			fmt.Sprintf("search.top_k must be positive, got %d", c.Search.TopK), nil)
	}
	switch c.Embedder.Backend {
	case "static", "ollama":
	default:
		return rserrors.ConfigError(
			fmt.Sprintf("embedder.backend must be \"static\" or \"ollama\", got %q", c.Embedder.Backend), nil)
	}
	if c.Embedder.Parallelism < 1 {
		return rserrors.ConfigError(
			fmt.Sprintf("embedder.parallelism must be at least 1, got %d", c.Embedder.Parallelism), nil)
	}
	return nil
}

// DefaultConfigPath returns the config file path inside the docs directory.
func DefaultConfigPath(docsDir string) string {
	return filepath.Join(docsDir, DefaultConfigFileName)
}

// DatabasePath is the SQLite database holding chunks, embeddings, the
// document manifest and index state.
func (c Config) DatabasePath() string {
	return filepath.Join(c.IndexDir, "index.db")
}

// VectorIndexPath is the HNSW graph cache file.
func (c Config) VectorIndexPath() string {
	return filepath.Join(c.IndexDir, "vectors.hnsw")
}

// LockPath is the cross-process index lock file.
func (c Config) LockPath() string {
	return filepath.Join(c.IndexDir, "index.lock")
}
