package embed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rserrors "github.com/ramsok/ramsok/internal/errors"
)

// flakyEmbedder fails a set number of times before succeeding.
type flakyEmbedder struct {
	*StaticEmbedder
	failures int
	attempts int
	err      error
}

func (f *flakyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.attempts++
	if f.attempts <= f.failures {
		return nil, f.err
	}
	return f.StaticEmbedder.Embed(ctx, text)
}

func fastRetryConfig(retries int) RetryConfig {
	return RetryConfig{
		MaxRetries:   retries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetryEmbedder_RecoversFromTransientFailure(t *testing.T) {
	// Given: a backend that fails twice with a retryable error
	inner := &flakyEmbedder{
		StaticEmbedder: NewStaticEmbedder(),
		failures:       2,
		err:            rserrors.New(rserrors.ErrCodeNetworkTimeout, "timeout", nil),
	}
	e := NewRetryEmbedder(inner, fastRetryConfig(3))

	// When: embedding
	vec, err := e.Embed(context.Background(), "text")

	// Then: the third attempt succeeds
	require.NoError(t, err)
	assert.Len(t, vec, StaticDimensions)
	assert.Equal(t, 3, inner.attempts)
}

func TestRetryEmbedder_ExhaustsBudget(t *testing.T) {
	inner := &flakyEmbedder{
		StaticEmbedder: NewStaticEmbedder(),
		failures:       10,
		err:            rserrors.New(rserrors.ErrCodeEmbedderUnavailable, "down", nil),
	}
	e := NewRetryEmbedder(inner, fastRetryConfig(2))

	_, err := e.Embed(context.Background(), "text")

	require.Error(t, err)
	assert.Equal(t, 3, inner.attempts) // initial + 2 retries
}

func TestRetryEmbedder_NonRetryableFailsImmediately(t *testing.T) {
	// Given: a backend failing with a validation error
	inner := &flakyEmbedder{
		StaticEmbedder: NewStaticEmbedder(),
		failures:       10,
		err:            rserrors.InvalidInputError("bad input", nil),
	}
	e := NewRetryEmbedder(inner, fastRetryConfig(3))

	_, err := e.Embed(context.Background(), "text")

	// Then: no retries happen
	require.Error(t, err)
	assert.Equal(t, 1, inner.attempts)
	assert.Equal(t, rserrors.ErrCodeInvalidInput, rserrors.GetCode(err))
}

func TestRetryEmbedder_ContextCancellationAborts(t *testing.T) {
	inner := &flakyEmbedder{
		StaticEmbedder: NewStaticEmbedder(),
		failures:       10,
		err:            rserrors.New(rserrors.ErrCodeNetworkTimeout, "timeout", nil),
	}
	e := NewRetryEmbedder(inner, RetryConfig{
		MaxRetries:   5,
		InitialDelay: time.Hour, // would block without cancellation
		MaxDelay:     time.Hour,
		Multiplier:   2.0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := e.Embed(ctx, "text")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
