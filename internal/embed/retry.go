package embed

import (
	"context"
	"fmt"
	"time"

	rserrors "github.com/ramsok/ramsok/internal/errors"
)

// RetryConfig configures retry behavior for embedding calls.
type RetryConfig struct {
	MaxRetries   int           // Retry attempts, not counting the initial attempt
	InitialDelay time.Duration // Delay before first retry
	MaxDelay     time.Duration // Maximum delay between retries
	Multiplier   float64       // Multiplier for exponential backoff
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   DefaultMaxRetries,
		InitialDelay: 1 * time.Second,
		MaxDelay:     16 * time.Second,
		Multiplier:   2.0,
	}
}

// withRetry executes fn with exponential backoff. Only retryable errors
// (network timeouts, transient embedder failures) are retried; everything
// else fails immediately. Context cancellation aborts the wait.
func withRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !rserrors.IsRetryable(err) || attempt >= cfg.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	if rserrors.IsRetryable(lastErr) {
		return fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, lastErr)
	}
	return lastErr
}

// RetryEmbedder wraps an Embedder with retry-on-transient-failure behavior.
type RetryEmbedder struct {
	inner  Embedder
	config RetryConfig
}

var _ Embedder = (*RetryEmbedder)(nil)

// NewRetryEmbedder creates a retrying embedder wrapping the given embedder.
func NewRetryEmbedder(inner Embedder, cfg RetryConfig) *RetryEmbedder {
	if cfg.MaxRetries <= 0 {
		cfg = DefaultRetryConfig()
	}
	return &RetryEmbedder{inner: inner, config: cfg}
}

// Embed generates an embedding, retrying transient failures.
func (r *RetryEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := withRetry(ctx, r.config, func() error {
		var embedErr error
		vec, embedErr = r.inner.Embed(ctx, text)
		return embedErr
	})
	return vec, err
}

// EmbedBatch generates embeddings, retrying the whole batch on transient
// failures. Backends are deterministic, so a retried batch is identical.
func (r *RetryEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vecs [][]float32
	err := withRetry(ctx, r.config, func() error {
		var embedErr error
		vecs, embedErr = r.inner.EmbedBatch(ctx, texts)
		return embedErr
	})
	return vecs, err
}

// Dimensions returns the embedding dimension (passthrough to inner).
func (r *RetryEmbedder) Dimensions() int {
	return r.inner.Dimensions()
}

// ModelName returns the model identifier (passthrough to inner).
func (r *RetryEmbedder) ModelName() string {
	return r.inner.ModelName()
}

// Available checks if the embedder is ready (passthrough to inner).
func (r *RetryEmbedder) Available(ctx context.Context) bool {
	return r.inner.Available(ctx)
}

// Close releases resources and closes the inner embedder.
func (r *RetryEmbedder) Close() error {
	return r.inner.Close()
}
