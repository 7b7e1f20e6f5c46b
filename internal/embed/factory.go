package embed

import (
	"context"
	"fmt"

	"github.com/ramsok/ramsok/internal/config"
	rserrors "github.com/ramsok/ramsok/internal/errors"
)

// New builds the configured embedder stack: the backend wrapped in retry,
// wrapped in an LRU cache when caching is enabled.
func New(ctx context.Context, cfg config.EmbedderConfig) (Embedder, error) {
	var backend Embedder

	switch cfg.Backend {
	case "", "static":
		backend = NewStaticEmbedder()

	case "ollama":
		ollama, err := NewOllamaEmbedder(ctx, OllamaConfig{
			Host:       cfg.Host,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    DefaultTimeout,
		})
		if err != nil {
			return nil, err
		}
		backend = ollama

	default:
		return nil, rserrors.ConfigError(
			fmt.Sprintf("unknown embedder backend %q", cfg.Backend), nil)
	}

	retryCfg := DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retryCfg.MaxRetries = cfg.MaxRetries
	}
	var e Embedder = NewRetryEmbedder(backend, retryCfg)

	if cfg.CacheSize > 0 {
		e = NewCachedEmbedder(e, cfg.CacheSize)
	}

	return e, nil
}
